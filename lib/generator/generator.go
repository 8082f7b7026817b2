// Package generator writes Go declarations for component schema files.
//
// For every schema file (movies.yaml) in a package directory the generator
// writes a sibling movies_hxmodel.go holding the schema source, a struct with
// one field per declared class, a constructor that builds a fresh set of
// classes and constants for attribute and method names.
package generator

import (
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pthm/hxmodel/lib/schema"
)

// GeneratedSuffix is the file name suffix of generated files.
const GeneratedSuffix = "_hxmodel.go"

// Options configures the generator.
type Options struct {
	DryRun bool

	// Out receives progress lines. Defaults to os.Stdout.
	Out io.Writer
}

// Generator generates hxmodel declarations.
type Generator struct {
	opts Options
	fset *token.FileSet
}

// New creates a new generator.
func New(opts Options) *Generator {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Generator{
		opts: opts,
		fset: token.NewFileSet(),
	}
}

// Generate generates code for the given package patterns.
func (g *Generator) Generate(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.generatePackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// Clean removes generated files for the given package patterns.
func (g *Generator) Clean(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.cleanPackage(pkg); err != nil {
			return fmt.Errorf("package %s: %w", pkg, err)
		}
	}

	return nil
}

// findPackages resolves package patterns to directory paths. A recursive
// pattern matches directories holding schema or generated files.
func (g *Generator) findPackages(patterns []string) ([]string, error) {
	var packages []string

	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			packages = append(packages, pattern)
			continue
		}

		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") || base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return nil
			}
			for _, entry := range entries {
				if !entry.IsDir() && (isSchemaFile(entry.Name()) || strings.HasSuffix(entry.Name(), GeneratedSuffix)) {
					packages = append(packages, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return packages, nil
}

// generatePackage generates code for every schema file of a package.
func (g *Generator) generatePackage(pkgPath string) error {
	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		return err
	}

	var files []*SchemaFile
	for _, entry := range entries {
		if entry.IsDir() || !isSchemaFile(entry.Name()) {
			continue
		}
		file, err := loadSchemaFile(filepath.Join(pkgPath, entry.Name()))
		if err != nil {
			return err
		}
		if len(file.Components) == 0 {
			continue
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil
	}

	pkgName, err := g.packageName(pkgPath)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := g.generateFile(pkgPath, pkgName, file); err != nil {
			return err
		}
	}

	return nil
}

// packageName reads the package clause of the Go files in pkgPath, falling
// back to a name derived from the directory.
func (g *Generator) packageName(pkgPath string) (string, error) {
	pkgs, err := parser.ParseDir(g.fset, pkgPath, func(info os.FileInfo) bool {
		name := info.Name()
		return !strings.HasSuffix(name, "_test.go") && !strings.HasSuffix(name, GeneratedSuffix)
	}, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	if len(names) > 0 {
		sort.Strings(names)
		return names[0], nil
	}

	abs, err := filepath.Abs(pkgPath)
	if err != nil {
		return "", err
	}
	return dirPackageName(filepath.Base(abs)), nil
}

// cleanPackage removes generated files from a package.
func (g *Generator) cleanPackage(pkgPath string) error {
	entries, err := os.ReadDir(pkgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), GeneratedSuffix) {
			path := filepath.Join(pkgPath, entry.Name())
			fmt.Fprintf(g.opts.Out, "removing %s\n", path)
			if !g.opts.DryRun {
				if err := os.Remove(path); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// SchemaFile holds a parsed schema file.
type SchemaFile struct {
	Path       string
	Source     string
	TypeName   string // e.g., "MovieCatalog" for movie-catalog.yaml
	Components []ComponentInfo
}

// ComponentInfo describes one class declared by a schema file.
type ComponentInfo struct {
	Name       string
	Field      string
	Properties []PropertyInfo
}

// PropertyInfo describes an attribute or method name constant.
type PropertyInfo struct {
	Name  string
	Const string
}

// loadSchemaFile parses a schema file and checks that its classes build.
func loadSchemaFile(path string) (*SchemaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	docs, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := schema.Build(docs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	file := &SchemaFile{
		Path:     path,
		Source:   string(data),
		TypeName: exportedName(base),
	}
	for _, doc := range docs {
		comp := ComponentInfo{
			Name:  doc.Component,
			Field: exportedName(doc.Component),
		}
		for _, attr := range doc.Attributes {
			comp.Properties = append(comp.Properties, PropertyInfo{Name: attr.Name, Const: comp.Field + exportedName(attr.Name)})
		}
		for _, m := range doc.Methods {
			comp.Properties = append(comp.Properties, PropertyInfo{Name: m.Name, Const: comp.Field + exportedName(m.Name)})
		}
		file.Components = append(file.Components, comp)
	}
	return file, nil
}

func isSchemaFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
