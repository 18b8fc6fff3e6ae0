// logshape converts semi-structured text logs into typed JSON records using
// an external YAML schema of line patterns and field types.
//
// Usage:
//
//	logshape access.log
//	logshape --config schema.yml --flat 'logs/**/*.log' offset=3600
//	logshape --format sqlite --output records.db app.log
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/juliosaraiva/logshape/internal/args"
	"github.com/juliosaraiva/logshape/internal/logging"
	"github.com/juliosaraiva/logshape/internal/reader"
	"github.com/juliosaraiva/logshape/internal/schema"
)

// Version information (set via build flags)
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		logging.WithError(err, "main").Error("conversion failed")
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command. Every flag can also be set through a
// LOGSHAPE_* environment variable (LOGSHAPE_MAX_LINE_SIZE for
// --max-line-size).
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "logshape <file|glob|-> ... [key=value ...]",
		Short: "Convert text logs to typed records with a YAML schema",
		Long: `logshape matches every line of the input against the line types declared in
a schema, converts captured fields through the schema's field types and
writes one record per match.

Arguments containing '=' are external arguments made available to the
schema's normalize rules; every other argument is an input file, a glob
(including ** for recursive matches) or '-' for stdin.`,
		Example: `  logshape access.log
  logshape -c nginx.yml --flat 'logs/**/*.log' offset=3600
  logshape --format ndjson --with-source a.log b.log
  logshape --format sqlite -o records.db app.log`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			cfg := configFromViper(v)
			for _, a := range positional {
				if args.IsPair(a) {
					cfg.Pairs = append(cfg.Pairs, a)
				} else {
					cfg.Inputs = append(cfg.Inputs, a)
				}
			}
			return runPipeline(cmd.Context(), cfg, stdin, stdout, stderr)
		},
	}

	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringP("config", "c", schema.DefaultPath, "schema file")
	flags.Bool("flat", false, "merge fields into the record instead of nesting them")
	flags.StringP("format", "f", "json", "output format: json, ndjson, sqlite")
	flags.StringP("output", "o", "", "output path (default stdout; required for sqlite)")
	flags.String("env-file", "", "dotenv file with external arguments (command-line pairs win)")
	flags.Bool("keep-going", false, "skip matches with field errors and report them at the end")
	flags.Bool("strict-numbers", false, "fail number fields that match no format instead of leaving them empty")
	flags.Bool("with-source", false, "add the input path to every record")
	flags.IntP("jobs", "j", 1, "input files parsed concurrently")
	flags.Int("max-line-size", reader.DefaultMaxLineSize, "longest accepted input line in bytes")
	flags.BoolP("verbose", "v", false, "debug output to stderr")
	flags.BoolP("quiet", "q", false, "only report errors")

	v.SetEnvPrefix("LOGSHAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func configFromViper(v *viper.Viper) Config {
	return Config{
		SchemaPath:    v.GetString("config"),
		Flat:          v.GetBool("flat"),
		Format:        v.GetString("format"),
		Output:        v.GetString("output"),
		EnvFile:       v.GetString("env-file"),
		KeepGoing:     v.GetBool("keep-going"),
		StrictNumbers: v.GetBool("strict-numbers"),
		WithSource:    v.GetBool("with-source"),
		Jobs:          v.GetInt("jobs"),
		MaxLineSize:   v.GetInt("max-line-size"),
		Verbose:       v.GetBool("verbose"),
		Quiet:         v.GetBool("quiet"),
	}
}
