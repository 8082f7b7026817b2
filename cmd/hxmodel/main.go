package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/pthm/hxmodel"
	"github.com/pthm/hxmodel/lib/generator"
	"github.com/pthm/hxmodel/lib/schema"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(args)
	case "clean":
		err = runClean(args)
	case "check":
		err = runCheck(args)
	case "introspect":
		err = runIntrospect(args)
	case "version":
		fmt.Printf("hxmodel version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hxmodel - component schema tooling

Usage:
  hxmodel <command> [arguments]

Commands:
  generate [packages]          Generate Go declarations for schema files (e.g., ./... or ./models)
  clean [packages]             Remove generated files (*_hxmodel.go)
  check [dirs]                 Parse and build every schema file
  introspect <dir> [component] Print the introspection of built classes as JSON
  version                      Print version
  help                         Show this help

Options:
  --dry-run                    Show what would be generated without writing files (generate)
  --debug                      Log model events to stderr (check, introspect)

Examples:
  hxmodel generate ./...                 Generate for all packages
  hxmodel generate --dry-run ./models    Preview generation
  hxmodel check ./models                 Validate schema files
  hxmodel introspect ./models Movie      Describe the Movie class
  hxmodel clean ./...                    Remove all generated files`)
}

// splitFlags separates --flags from positional arguments.
func splitFlags(args []string) (map[string]bool, []string) {
	flags := map[string]bool{}
	var rest []string
	for _, arg := range args {
		if len(arg) > 2 && arg[:2] == "--" {
			flags[arg[2:]] = true
		} else {
			rest = append(rest, arg)
		}
	}
	return flags, rest
}

func setupLogging(flags map[string]bool) {
	if !flags["debug"] {
		return
	}
	hxmodel.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger())
}

func runGenerate(args []string) error {
	flags, patterns := splitFlags(args)
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	gen := generator.New(generator.Options{
		DryRun: flags["dry-run"],
	})

	return gen.Generate(patterns...)
}

func runClean(args []string) error {
	flags, patterns := splitFlags(args)
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	gen := generator.New(generator.Options{
		DryRun: flags["dry-run"],
	})
	return gen.Clean(patterns...)
}

func build(dir string) ([]*hxmodel.Component, error) {
	docs, err := schema.ParseDir(dir)
	if err != nil {
		return nil, err
	}
	return schema.Build(docs)
}

func runCheck(args []string) error {
	flags, dirs := splitFlags(args)
	setupLogging(flags)
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	for _, dir := range dirs {
		classes, err := build(dir)
		if err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}
		fmt.Printf("%s: %d components ok\n", dir, len(classes))
	}
	return nil
}

func runIntrospect(args []string) error {
	flags, rest := splitFlags(args)
	setupLogging(flags)
	if len(rest) == 0 || len(rest) > 2 {
		return fmt.Errorf("usage: hxmodel introspect <dir> [component]")
	}

	classes, err := build(rest[0])
	if err != nil {
		return err
	}

	out := map[string]any{}
	for _, class := range classes {
		if len(rest) == 2 && class.Name() != rest[1] {
			continue
		}
		out[class.Name()] = class.Introspect()
	}
	if len(rest) == 2 && len(out) == 0 {
		return fmt.Errorf("%w: %s", hxmodel.ErrUnknownComponent, rest[1])
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
