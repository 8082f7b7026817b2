package hxmodel

import (
	"fmt"
	"math"

	"github.com/pthm/hxmodel/lib/valuecodec"
)

// IdentityMap indexes the attached instances of a class by identifier value,
// one index per identifier attribute.
//
// The identity map of a forked class starts empty and reads through to the
// map of the origin class. An index bucket is copied into the fork the
// first time the fork writes to it. Instances found through the origin are
// forked into the forked class before being returned, so a fork never hands
// out instances of another class.
type IdentityMap struct {
	parent  *Component
	origin  *IdentityMap
	indexes map[string]map[any]*Component
}

// IdentityMap returns the identity map of the class of c, creating it on
// first use.
func (c *Component) IdentityMap() *IdentityMap {
	cls := c.Class()
	if cls.identityMap == nil {
		var origin *IdentityMap
		if cls.origin != nil {
			origin = cls.origin.IdentityMap()
		}
		cls.identityMap = &IdentityMap{
			parent:  cls,
			origin:  origin,
			indexes: map[string]map[any]*Component{},
		}
	}
	return cls.identityMap
}

// Parent returns the class owning the map.
func (m *IdentityMap) Parent() *Component { return m.parent }

// identifierKey normalizes an identifier value into an index key. Integral
// numbers of every Go type share exact int64 keys, uint64 keys above the
// int64 range; other numbers use float64 keys.
func identifierKey(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return unsignedKey(uint64(x)), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return unsignedKey(x), true
	}

	f, ok := valuecodec.ToFloat64(v)
	if !ok {
		return nil, false
	}
	if f == math.Trunc(f) {
		switch {
		case f >= math.MinInt64 && f < 1<<63:
			return int64(f), true
		case f >= 1<<63 && f < 1<<64:
			return uint64(f), true
		}
	}
	return f, true
}

func unsignedKey(u uint64) any {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}

func (m *IdentityMap) effectiveIndex(name string) map[any]*Component {
	for x := m; x != nil; x = x.origin {
		if idx, ok := x.indexes[name]; ok {
			return idx
		}
	}
	return nil
}

func (m *IdentityMap) ownIndex(name string) map[any]*Component {
	if idx, ok := m.indexes[name]; ok {
		return idx
	}
	idx := map[any]*Component{}
	for k, v := range m.effectiveIndex(name) {
		idx[k] = v
	}
	m.indexes[name] = idx
	return idx
}

// GetComponent returns the instance matching identifiers, or nil. Each
// identifier attribute is tried in declaration order; the first hit wins.
func (m *IdentityMap) GetComponent(identifiers any) (*Component, error) {
	ids, err := m.parent.NormalizeIdentifiers(identifiers)
	if err != nil {
		return nil, err
	}

	for _, a := range m.parent.IdentifierAttributes() {
		value, ok := ids[a.Name()]
		if !ok {
			continue
		}
		key, _ := identifierKey(value)
		found := m.effectiveIndex(a.Name())[key]
		if found == nil {
			continue
		}
		if found.class == m.parent {
			metricsCollector().RecordLookup(m.parent.name, "hit")
			return found, nil
		}

		fork := found.ForkInto(m.parent)
		m.adopt(found, fork)
		metricsCollector().RecordLookup(m.parent.name, "fork")
		log().Debug().
			Str("component", m.parent.name).
			Interface("identifiers", ids).
			Msg("identity map forked instance from origin")
		return fork, nil
	}

	metricsCollector().RecordLookup(m.parent.name, "miss")
	return nil, nil
}

// adopt replaces every entry of found with its fork.
func (m *IdentityMap) adopt(found, fork *Component) {
	for name, value := range fork.Identifiers() {
		key, ok := identifierKey(value)
		if !ok {
			continue
		}
		if current := m.effectiveIndex(name)[key]; current == nil || current == found {
			m.ownIndex(name)[key] = fork
		}
	}
}

func (m *IdentityMap) collides(c *Component, name string, key any) bool {
	existing := m.effectiveIndex(name)[key]
	return existing != nil && existing != c && !c.IsForkOf(existing)
}

// AddComponent indexes every set identifier of c. An entry held by another
// instance fails with ErrIdentifierCollision and leaves the map unchanged.
func (m *IdentityMap) AddComponent(c *Component) error {
	if c.IsDetached() {
		return fmt.Errorf("%w: cannot add %s to the identity map", ErrDetachedComponent, c.name)
	}

	ids := c.Identifiers()
	keys := make(map[string]any, len(ids))
	for _, name := range sortedKeys(ids) {
		key, ok := identifierKey(ids[name])
		if !ok {
			return fmt.Errorf("%w: %s.%s holds %T", ErrTypeMismatch, c.name, name, ids[name])
		}
		if m.collides(c, name, key) {
			metricsCollector().RecordCollision(m.parent.name)
			return fmt.Errorf("%w: %s.%s = %v", ErrIdentifierCollision, c.name, name, ids[name])
		}
		keys[name] = key
	}

	for name, key := range keys {
		m.ownIndex(name)[key] = c
	}
	log().Debug().Str("component", m.parent.name).Interface("identifiers", ids).Msg("identity map add")
	return nil
}

// UpdateComponent moves the entry of identifier attribute name from
// previous to next. It does nothing for detached instances and unchanged
// values.
func (m *IdentityMap) UpdateComponent(c *Component, name string, previous, next any) error {
	if c.IsDetached() {
		return nil
	}

	prevKey, hasPrev := identifierKey(previous)
	nextKey, hasNext := identifierKey(next)
	if next != nil && !hasNext {
		return fmt.Errorf("%w: %s.%s holds %T", ErrTypeMismatch, c.name, name, next)
	}
	if hasPrev == hasNext && prevKey == nextKey {
		return nil
	}

	if hasNext && m.collides(c, name, nextKey) {
		metricsCollector().RecordCollision(m.parent.name)
		return fmt.Errorf("%w: %s.%s = %v", ErrIdentifierCollision, c.name, name, next)
	}

	if hasPrev && m.effectiveIndex(name)[prevKey] == c {
		delete(m.ownIndex(name), prevKey)
	}
	if hasNext {
		m.ownIndex(name)[nextKey] = c
	}
	log().Debug().
		Str("component", m.parent.name).
		Str("attribute", name).
		Interface("previous", previous).
		Interface("next", next).
		Msg("identity map update")
	return nil
}

// RemoveComponent removes every entry pointing at c.
func (m *IdentityMap) RemoveComponent(c *Component) error {
	if c.IsDetached() {
		return fmt.Errorf("%w: cannot remove %s from the identity map", ErrDetachedComponent, c.name)
	}
	for name, value := range c.Identifiers() {
		key, ok := identifierKey(value)
		if !ok {
			continue
		}
		if m.effectiveIndex(name)[key] == c {
			delete(m.ownIndex(name), key)
		}
	}
	log().Debug().Str("component", m.parent.name).Interface("identifiers", c.Identifiers()).Msg("identity map remove")
	return nil
}

// Len returns the number of distinct instances reachable through the map.
func (m *IdentityMap) Len() int {
	seen := map[*Component]bool{}
	for _, a := range m.parent.IdentifierAttributes() {
		for _, c := range m.effectiveIndex(a.Name()) {
			seen[c] = true
		}
	}
	return len(seen)
}
