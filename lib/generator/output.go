package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"unicode"
)

// initialisms are written in upper case inside generated names.
var initialisms = map[string]bool{
	"id":   true,
	"ids":  true,
	"url":  true,
	"uuid": true,
	"ulid": true,
	"json": true,
	"http": true,
}

// generateFile writes the *_hxmodel.go file for a schema file.
func (g *Generator) generateFile(pkgPath, pkgName string, file *SchemaFile) error {
	base := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
	outputFile := filepath.Join(pkgPath, base+GeneratedSuffix)

	fmt.Fprintf(g.opts.Out, "generating %s\n", outputFile)

	if g.opts.DryRun {
		return nil
	}

	code, err := renderTemplate(pkgName, file)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	formatted, err := format.Source(code)
	if err != nil {
		if writeErr := os.WriteFile(outputFile+".unformatted", code, 0644); writeErr == nil {
			fmt.Fprintf(g.opts.Out, "  wrote unformatted code to %s.unformatted for debugging\n", outputFile)
		}
		return fmt.Errorf("format source: %w", err)
	}

	return os.WriteFile(outputFile, formatted, 0644)
}

// renderTemplate renders the generated code template.
func renderTemplate(pkgName string, file *SchemaFile) ([]byte, error) {
	tmpl, err := template.New("hxmodel").Funcs(template.FuncMap{
		"quote":      strconv.Quote,
		"unexport":   unexportedName,
		"sourceName": func(path string) string { return filepath.Base(path) },
	}).Parse(fileTemplate)
	if err != nil {
		return nil, err
	}

	data := struct {
		Package string
		File    *SchemaFile
	}{
		Package: pkgName,
		File:    file,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// exportedName converts "movie-catalog" to "MovieCatalog" and "id" to "ID".
func exportedName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, part := range parts {
		for _, word := range splitCamel(part) {
			if initialisms[strings.ToLower(word)] {
				b.WriteString(strings.ToUpper(word))
				continue
			}
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "X" + name
	}
	return name
}

// unexportedName lower-cases the leading word of an exported name.
func unexportedName(s string) string {
	runes := []rune(s)
	i := 0
	for i < len(runes) && unicode.IsUpper(runes[i]) {
		i++
	}
	if i == 0 {
		return s
	}
	if i > 1 && i < len(runes) {
		i--
	}
	return strings.ToLower(string(runes[:i])) + string(runes[i:])
}

// splitCamel splits "slugHistory" into "slug" and "History".
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > start && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// dirPackageName derives a package name from a directory name.
func dirPackageName(dir string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(dir) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		return "models"
	}
	return name
}

const fileTemplate = `// Code generated by hxmodel generate from {{sourceName .File.Path}}. DO NOT EDIT.

package {{.Package}}

import (
	"fmt"

	"github.com/pthm/hxmodel"
	"github.com/pthm/hxmodel/lib/schema"
)

const {{unexport .File.TypeName}}Schema = {{quote .File.Source}}

// {{.File.TypeName}} holds the classes declared in {{sourceName .File.Path}}.
type {{.File.TypeName}} struct {
{{- range .File.Components}}
	{{.Field}} *hxmodel.Component
{{- end}}
}

// New{{.File.TypeName}} declares a fresh set of the classes in {{sourceName .File.Path}}.
func New{{.File.TypeName}}() (*{{.File.TypeName}}, error) {
	docs, err := schema.Parse([]byte({{unexport .File.TypeName}}Schema))
	if err != nil {
		return nil, fmt.Errorf("parse {{sourceName .File.Path}}: %w", err)
	}
	classes, err := schema.Build(docs)
	if err != nil {
		return nil, fmt.Errorf("build {{sourceName .File.Path}}: %w", err)
	}
	return &{{.File.TypeName}}{
{{- range $i, $c := .File.Components}}
		{{$c.Field}}: classes[{{$i}}],
{{- end}}
	}, nil
}
{{range .File.Components}}{{if .Properties}}
// {{.Name}} property names.
const (
{{- range .Properties}}
	{{.Const}} = {{quote .Name}}
{{- end}}
)
{{end}}{{end}}`
