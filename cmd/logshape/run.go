package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/juliosaraiva/logshape/internal/args"
	"github.com/juliosaraiva/logshape/internal/emitter"
	"github.com/juliosaraiva/logshape/internal/logging"
	"github.com/juliosaraiva/logshape/internal/parser"
	"github.com/juliosaraiva/logshape/internal/reader"
	"github.com/juliosaraiva/logshape/internal/schema"
)

// Config holds all CLI configuration options.
type Config struct {
	// Input options
	Inputs      []string // Files or glob patterns; "-" is stdin
	Pairs       []string // key=value external arguments
	EnvFile     string   // dotenv file with external arguments
	SchemaPath  string   // YAML schema
	MaxLineSize int      // Reader line limit
	Jobs        int      // Files parsed concurrently

	// Parsing options
	KeepGoing     bool // Collect field errors instead of stopping
	StrictNumbers bool // Fail number types that match no format

	// Output options
	Format     string // json, ndjson or sqlite
	Output     string // Output path; empty is stdout
	Flat       bool   // Merge fields into the record
	WithSource bool   // Add the input path to records

	// General options
	Verbose bool // Debug output
	Quiet   bool // Errors only
}

// dumper prints the compiled schema in verbose mode.
var dumper = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                4,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// fileResult is the outcome of parsing one input.
type fileResult struct {
	records []parser.Record
	errs    []error
}

// runPipeline executes the conversion with explicit I/O. Nothing is
// written to output unless every input parsed.
func runPipeline(ctx context.Context, cfg Config, stdin io.Reader, stdout, stderr io.Writer) error {
	log := logging.Setup(stderr, cfg.Verbose, cfg.Quiet)

	if err := validateOutput(cfg); err != nil {
		return err
	}

	if cfg.SchemaPath == "" {
		cfg.SchemaPath = schema.DefaultPath
	}
	s, err := schema.LoadFile(cfg.SchemaPath)
	if err != nil {
		return err
	}
	if log.IsLevelEnabled(logrus.DebugLevel) {
		log.WithField("component", "schema").Debug("compiled schema\n" + dumper.Sdump(s))
	}

	completed, err := buildArgs(s, cfg)
	if err != nil {
		return err
	}

	if len(cfg.Inputs) == 0 {
		return errors.New("no input file given")
	}
	files, err := reader.Expand(cfg.Inputs)
	if err != nil {
		return err
	}

	var resolverOpts []parser.ResolverOption
	if cfg.StrictNumbers {
		resolverOpts = append(resolverOpts, parser.WithStrictNumbers())
	}
	resolver := parser.NewResolver(completed, resolverOpts...)

	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Jobs, 1))
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := parseFile(s, resolver, cfg, path, stdin)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	records := []parser.Record{}
	var fieldErrs []error
	for _, res := range results {
		records = append(records, res.records...)
		fieldErrs = append(fieldErrs, res.errs...)
	}

	if err := emit(cfg, records, stdout); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"component": "pipeline",
		"files":     len(files),
		"records":   len(records),
		"errors":    len(fieldErrs),
	}).Debug("conversion finished")

	if len(fieldErrs) > 0 {
		return fmt.Errorf("%d field error(s) skipped: %w", len(fieldErrs), errors.Join(fieldErrs...))
	}
	return nil
}

// buildArgs merges the argument file and command-line pairs (pairs win) and
// completes them against the schema.
func buildArgs(s *schema.Schema, cfg Config) (map[string]any, error) {
	supplied := map[string]any{}
	if cfg.EnvFile != "" {
		fromFile, err := args.LoadEnvFile(cfg.EnvFile)
		if err != nil {
			return nil, err
		}
		supplied = fromFile
	}

	pairs, err := args.ParsePairs(cfg.Pairs)
	if err != nil {
		return nil, err
	}

	return args.Complete(s.Args, args.Merge(supplied, pairs))
}

func parseFile(s *schema.Schema, resolver *parser.Resolver, cfg Config, path string, stdin io.Reader) (fileResult, error) {
	in, err := reader.Open(path, stdin)
	if err != nil {
		return fileResult{}, err
	}
	defer in.Close()

	var opts []parser.Option
	if cfg.KeepGoing {
		opts = append(opts, parser.WithKeepGoing())
	}
	if cfg.WithSource {
		opts = append(opts, parser.WithSource(path))
	}

	logging.WithFile(path).Debug("parsing")

	a := parser.NewAssembler(s, resolver, opts...)
	records, err := a.ParseAll(reader.New(in, reader.WithMaxLineSize(cfg.MaxLineSize)))
	if err != nil {
		return fileResult{}, err
	}
	return fileResult{records: records, errs: a.Errors()}, nil
}

// validateOutput fails fast on output settings instead of after parsing.
func validateOutput(cfg Config) error {
	switch emitter.Format(cfg.Format) {
	case "", emitter.FormatJSON, emitter.FormatNDJSON:
		return nil
	case emitter.FormatSQLite:
		if cfg.Output == "" {
			return errors.New("--format sqlite requires --output")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q; use json, ndjson or sqlite", cfg.Format)
	}
}

func emit(cfg Config, records []parser.Record, stdout io.Writer) (err error) {
	opts := emitter.Options{Flat: cfg.Flat}
	format := emitter.Format(cfg.Format)

	var em emitter.Emitter
	switch {
	case format == emitter.FormatSQLite:
		em, err = emitter.NewSQLite(cfg.Output, opts)
	case cfg.Output != "":
		f, ferr := os.Create(cfg.Output)
		if ferr != nil {
			return fmt.Errorf("failed to create output: %w", ferr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		em, err = emitter.New(format, f, opts)
	default:
		em, err = emitter.New(format, stdout, opts)
	}
	if err != nil {
		return err
	}

	if err := em.Emit(records); err != nil {
		return errors.Join(fmt.Errorf("output error: %w", err), em.Close())
	}
	if err := em.Close(); err != nil {
		return err
	}

	if db, ok := em.(*emitter.SQLiteEmitter); ok {
		logging.WithComponent("emitter").WithFields(logrus.Fields{
			"path":    cfg.Output,
			"run_id":  db.RunID(),
			"records": len(records),
		}).Info("records stored")
	}
	return nil
}
