package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm/pagetree"
	"github.com/pthm/pagetree/lib/ctxlog"
	"github.com/pthm/pagetree/lib/definition"
	"github.com/pthm/pagetree/lib/propsource"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "render", "validate":
		if err := run(context.Background(), cmd, args, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("pagetree version %s\n", version)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `pagetree - render component trees from placement records

Usage:
  pagetree <command> [arguments]

Commands:
  render [options] <definitions.yaml> <records.json>
                        Render a page and print it
  validate [options] <definitions.yaml> <records.json>
                        Check that records form a valid tree
  version               Print version
  help                  Show this help

Options:
  --preview             Render in draft preview mode
  --format=html|json    Output format for render (default html)
  --data=<file.yaml>    Data sources for prop expressions
  --skip-broken         Drop subtrees whose definition cannot be resolved

Records may be JSON or YAML (by extension).

Environment:
  PAGETREE_SIGNING_KEY    Key for draft URL tokens
  PAGETREE_ENCRYPT_DRAFTS Encrypt draft URL tokens instead of signing them
  PAGETREE_ASSET_PREFIX   Published script prefix (default /pagetree/assets)
  PAGETREE_DRAFT_PREFIX   Draft script prefix (default /pagetree/draft)
  PAGETREE_LOG_LEVEL      debug, info, warn or error (default info)
  PAGETREE_LOG_FORMAT     text or json (default text)
  PAGETREE_OTEL_ENDPOINT  OTLP/HTTP endpoint for pass traces

Examples:
  pagetree render defs.yaml page.json
  pagetree render --preview --format=json --data=site.yaml defs.yaml page.json
  pagetree validate defs.yaml page.json`)
}

// flags are the parsed command arguments.
type flags struct {
	preview    bool
	format     string
	data       string
	skipBroken bool
	defs       string
	records    string
}

func parseFlags(args []string) (flags, error) {
	f := flags{format: "html"}
	var positional []string

	for _, arg := range args {
		switch {
		case arg == "--preview":
			f.preview = true
		case arg == "--skip-broken":
			f.skipBroken = true
		case strings.HasPrefix(arg, "--format="):
			f.format = strings.TrimPrefix(arg, "--format=")
		case strings.HasPrefix(arg, "--data="):
			f.data = strings.TrimPrefix(arg, "--data=")
		case strings.HasPrefix(arg, "--"):
			return flags{}, fmt.Errorf("unknown option %s", arg)
		default:
			positional = append(positional, arg)
		}
	}

	if f.format != "html" && f.format != "json" {
		return flags{}, fmt.Errorf("--format must be html or json, got %q", f.format)
	}
	if len(positional) != 2 {
		return flags{}, errors.New("expected <definitions.yaml> <records.json>")
	}
	f.defs, f.records = positional[0], positional[1]
	return f, nil
}

func run(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	shutdown, err := setupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	defs := definition.New()
	if err := defs.LoadFile(f.defs); err != nil {
		return err
	}
	records, err := loadRecords(f.records)
	if err != nil {
		return err
	}

	var opts []pagetree.Option
	if f.skipBroken {
		opts = append(opts, pagetree.WithSkipBrokenSubtrees())
	}

	if cmd == "validate" {
		return validate(ctx, stdout, records, defs, opts)
	}

	props, err := propsource.New()
	if err != nil {
		return err
	}
	if f.data != "" {
		if err := props.LoadFile(f.data); err != nil {
			return err
		}
	}

	locator, err := pagetree.NewSignedLocator(cfg.AssetPrefix, cfg.DraftPrefix, []byte(cfg.SigningKey))
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	locator.Encrypt = cfg.EncryptDrafts
	opts = append(opts, pagetree.WithLocator(locator))

	page, err := pagetree.New(defs, props, opts...).Run(ctx, records, f.preview)
	if err != nil {
		return err
	}
	for _, d := range page.Diagnostics {
		logger.Warn("diagnostic", "error", d)
	}

	if f.format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(page.Roots)
	}
	for _, root := range page.Roots {
		if err := pagetree.Markup(root, nil).Render(ctx, stdout); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(stdout)
	return err
}

func validate(ctx context.Context, stdout io.Writer, records []pagetree.PlacementRecord, defs pagetree.DefinitionResolver, opts []pagetree.Option) error {
	roots, diags, err := pagetree.Linearize(ctx, records, defs, opts...)
	if err != nil {
		return err
	}
	nodes := 0
	for _, r := range roots {
		r.Walk(func(pagetree.CanonicalNode) { nodes++ })
	}
	fmt.Fprintf(stdout, "ok: %d roots, %d nodes\n", len(roots), nodes)
	for _, d := range diags {
		fmt.Fprintf(stdout, "skipped: %v\n", d)
	}
	return nil
}

// loadRecords reads a record snapshot from a JSON or YAML file.
func loadRecords(path string) ([]pagetree.PlacementRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []pagetree.PlacementRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		err = json.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("records %s: %w", path, err)
	}
	return records, nil
}
