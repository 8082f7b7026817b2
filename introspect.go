package hxmodel

// Introspect describes the exposed surface of a class for a remote peer:
// its exposed static properties, the exposed properties of its instances,
// the classes it provides and the names it consumes. It returns nil when
// nothing is exposed.
func (c *Component) Introspect() map[string]any {
	return c.Class().introspect(map[*Component]bool{})
}

func (c *Component) introspect(seen map[*Component]bool) map[string]any {
	if seen[c] {
		return nil
	}
	seen[c] = true

	out := map[string]any{
		"name": c.name,
		"type": "Component",
	}
	exposed := false

	if props := introspectProperties(c.Properties()); len(props) > 0 {
		out["properties"] = props
		exposed = true
	}

	var instanceProps []Property
	for _, name := range c.prototype.names() {
		instanceProps = append(instanceProps, c.prototype.lookup(name))
	}
	if props := introspectProperties(instanceProps); len(props) > 0 {
		out["prototype"] = map[string]any{"properties": props}
		exposed = true
	}

	var provided []any
	for _, p := range c.ProvidedComponents() {
		if desc := p.introspect(seen); desc != nil {
			provided = append(provided, desc)
		}
	}
	if len(provided) > 0 {
		out["providedComponents"] = provided
		exposed = true
	}

	if consumed := c.ConsumedComponents(); len(consumed) > 0 && exposed {
		out["consumedComponents"] = consumed
	}

	if !exposed {
		return nil
	}
	return out
}

func introspectProperties(props []Property) []any {
	var out []any
	for _, p := range props {
		if p.Exposure().IsZero() {
			continue
		}
		out = append(out, p.Introspect())
	}
	return out
}
