package generator

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const catalogYAML = `
component: Movie
attributes:
  - { name: id, identifier: primary }
  - { name: title, type: string }
  - { name: releaseDate, type: Date? }
methods:
  - { name: play }
provides: [Person]
---
component: Person
attributes:
  - { name: id, identifier: primary }
  - { name: name, type: string }
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "movie-catalog.yaml"), catalogYAML)
	writeFile(t, filepath.Join(dir, "doc.go"), "package movies\n")

	var out bytes.Buffer
	g := New(Options{Out: &out})
	if err := g.Generate(dir); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	outputFile := filepath.Join(dir, "movie-catalog_hxmodel.go")
	if !strings.Contains(out.String(), "generating "+outputFile) {
		t.Errorf("output = %q, want a line for %s", out.String(), outputFile)
	}

	src, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("read generated file: %v", err)
	}

	file, err := parser.ParseFile(token.NewFileSet(), outputFile, src, 0)
	if err != nil {
		t.Fatalf("generated file does not parse: %v", err)
	}
	if file.Name.Name != "movies" {
		t.Errorf("package = %q, want %q", file.Name.Name, "movies")
	}

	decls := map[string]bool{}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			decls[d.Name.Name] = true
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					decls[s.Name.Name] = true
				case *ast.ValueSpec:
					for _, name := range s.Names {
						decls[name.Name] = true
					}
				}
			}
		}
	}
	for _, name := range []string{
		"movieCatalogSchema",
		"MovieCatalog",
		"NewMovieCatalog",
		"MovieID",
		"MovieTitle",
		"MovieReleaseDate",
		"MoviePlay",
		"PersonID",
		"PersonName",
	} {
		if !decls[name] {
			t.Errorf("generated file is missing %s", name)
		}
	}

	for _, want := range []string{
		"// Code generated by hxmodel generate from movie-catalog.yaml. DO NOT EDIT.",
		"Movie:  classes[0],",
		"Person: classes[1],",
		`MovieReleaseDate = "releaseDate"`,
	} {
		if !strings.Contains(string(src), want) {
			t.Errorf("generated file missing %q:\n%s", want, src)
		}
	}
}

func TestGenerate_PackageNameFromDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Box-Office")
	writeFile(t, filepath.Join(dir, "catalog.yml"), catalogYAML)

	g := New(Options{Out: &bytes.Buffer{}})
	if err := g.Generate(dir); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	file, err := parser.ParseFile(token.NewFileSet(), filepath.Join(dir, "catalog_hxmodel.go"), nil, parser.PackageClauseOnly)
	if err != nil {
		t.Fatalf("parse generated file: %v", err)
	}
	if file.Name.Name != "boxoffice" {
		t.Errorf("package = %q, want %q", file.Name.Name, "boxoffice")
	}
}

func TestGenerate_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "catalog.yaml"), catalogYAML)

	var out bytes.Buffer
	g := New(Options{DryRun: true, Out: &out})
	if err := g.Generate(dir); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !strings.Contains(out.String(), "generating") {
		t.Errorf("dry run should report what it would generate, got %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "catalog_hxmodel.go")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote a file (stat error = %v)", err)
	}
}

func TestGenerate_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "component: Movie\nprovides: [Studio]\n")

	g := New(Options{Out: &bytes.Buffer{}})
	err := g.Generate(dir)
	if err == nil {
		t.Fatal("Generate() error = nil, want an error for an unknown provided component")
	}
	if !strings.Contains(err.Error(), "Studio") {
		t.Errorf("error = %v, want it to name the unknown component", err)
	}
}

func TestGenerateAndClean_Recursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "catalog.yaml"), catalogYAML)
	writeFile(t, filepath.Join(root, "b", "c", "catalog.yaml"), catalogYAML)
	writeFile(t, filepath.Join(root, "testdata", "catalog.yaml"), catalogYAML)
	writeFile(t, filepath.Join(root, "empty", "none.yaml"), "")

	g := New(Options{Out: &bytes.Buffer{}})
	if err := g.Generate(root + "/..."); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, path := range []string{
		filepath.Join(root, "a", "catalog_hxmodel.go"),
		filepath.Join(root, "b", "c", "catalog_hxmodel.go"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to be generated: %v", path, err)
		}
	}
	for _, path := range []string{
		filepath.Join(root, "testdata", "catalog_hxmodel.go"),
		filepath.Join(root, "empty", "none_hxmodel.go"),
	} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s not to be generated", path)
		}
	}

	if err := g.Clean(root + "/..."); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	for _, path := range []string{
		filepath.Join(root, "a", "catalog_hxmodel.go"),
		filepath.Join(root, "b", "c", "catalog_hxmodel.go"),
	} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", path)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "a", "catalog.yaml")); err != nil {
		t.Errorf("Clean() removed a schema file: %v", err)
	}
}

func TestExportedName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"movie", "Movie"},
		{"movie-catalog", "MovieCatalog"},
		{"id", "ID"},
		{"releaseDate", "ReleaseDate"},
		{"externalUrl", "ExternalURL"},
		{"snake_case", "SnakeCase"},
		{"2024", "X2024"},
	}

	for _, tt := range tests {
		if got := exportedName(tt.input); got != tt.want {
			t.Errorf("exportedName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestUnexportedName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MovieCatalog", "movieCatalog"},
		{"IDCard", "idCard"},
		{"ID", "id"},
		{"movies", "movies"},
	}

	for _, tt := range tests {
		if got := unexportedName(tt.input); got != tt.want {
			t.Errorf("unexportedName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
