// Command phenoetl runs, validates and probes table pipelines.
//
//	phenoetl run --config configs/pipelines/seedlings.yaml
//	phenoetl validate --config configs/pipelines/seedlings.yaml
//	phenoetl probe --config configs/pipelines/seedlings.yaml --input phenotype
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"phenoetl/internal/config"
	"phenoetl/internal/logging"
	"phenoetl/internal/pipeline"
	"phenoetl/internal/probe"

	// config picks the sink backend; all of them are linked in.
	_ "phenoetl/internal/storage/all"
)

// deps are external seams for tests.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	Getenv    func(string) string
	NewLogger func(verbose bool) (*zap.Logger, error)

	// NewMetrics installs a metrics backend and returns its shutdown func.
	NewMetrics func(ctx context.Context, sel metricsSelection, log *zap.Logger) (func() error, error)

	// Runner is used for run and probe. Nil means a default runner.
	Runner *pipeline.Runner
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], deps{})
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: run failed or config invalid.
func execute(ctx context.Context, args []string, d deps) int {
	d = d.withDefaults()
	root := newRootCmd(d)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(d.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (d deps) withDefaults() deps {
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.NewLogger == nil {
		d.NewLogger = logging.New
	}
	if d.NewMetrics == nil {
		d.NewMetrics = installMetrics
	}
	return d
}

func newRootCmd(d deps) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "phenoetl",
		Short:         "Turn raw phenotype observations into analysis-ready tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(d.Stdout)
	root.SetErr(d.Stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	logger := func() (*zap.Logger, error) {
		l, err := d.NewLogger(verbose)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		return l, nil
	}

	root.AddCommand(newRunCmd(d, logger), newValidateCmd(d), newProbeCmd(d, logger))
	return root
}

func newRunCmd(d deps, logger func() (*zap.Logger, error)) *cobra.Command {
	var (
		cfgPath string
		sel     metricsSelection
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load inputs, run flows and write outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			sel.Job = p.Job
			sel = sel.resolve(d.Getenv)
			shutdown, err := d.NewMetrics(cmd.Context(), sel, log)
			if err != nil {
				log.Warn("metrics disabled", zap.String("backend", sel.Backend), zap.Error(err))
				shutdown = func() error { return nil }
			}
			defer func() {
				if err := shutdown(); err != nil {
					log.Warn("metrics flush failed", zap.Error(err))
				}
			}()

			r := d.Runner
			if r == nil {
				r = &pipeline.Runner{}
			}
			r.Logger = log

			start := time.Now()
			res, err := r.Run(cmd.Context(), p)
			var ve *pipeline.ValidationError
			if errors.As(err, &ve) {
				printIssues(d.Stderr, ve.Issues)
			}
			if err != nil {
				return err
			}

			for i, o := range p.Outputs {
				fmt.Fprintf(d.Stdout, "%s\t%s\t%d rows\n", o.Flow, o.Sink.Kind, res.Written[i])
			}
			log.Info("completed", zap.String("run_id", res.RunID), zap.Duration("duration", time.Since(start)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/pipelines/seedlings.yaml", "pipeline config (YAML or JSON)")
	cmd.Flags().StringVar(&sel.Backend, "metrics-backend", "", "metrics backend: none, datadog, pushgateway (env METRICS_BACKEND)")
	cmd.Flags().StringVar(&sel.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	cmd.Flags().DurationVar(&sel.FlushEvery, "flush-every", 60*time.Second, "Datadog flush interval")
	return cmd
}

func newValidateCmd(d deps) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline config without reading any data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			issues := config.Validate(p)
			printIssues(d.Stderr, issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("config %s is invalid", cfgPath)
			}
			if _, err := pipeline.CompileFlows(p.Flows); err != nil {
				return err
			}
			fmt.Fprintf(d.Stdout, "config ok: %s (%d inputs, %d flows, %d outputs)\n", cfgPath, len(p.Inputs), len(p.Flows), len(p.Outputs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/pipelines/seedlings.yaml", "pipeline config (YAML or JSON)")
	return cmd
}

func newProbeCmd(d deps, logger func() (*zap.Logger, error)) *cobra.Command {
	var (
		cfgPath string
		input   string
		types   bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Profile configured inputs: kinds, missing values, key candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			ins := p.Inputs
			if input != "" {
				in, ok := p.InputByName(input)
				if !ok {
					return fmt.Errorf("no input named %q", input)
				}
				ins = []config.Input{in}
			}

			r := d.Runner
			if r == nil {
				r = &pipeline.Runner{}
			}
			for _, in := range ins {
				t, err := r.LoadInput(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("input %s: %w", in.Name, err)
				}
				rep, err := probe.Profile(t)
				if err != nil {
					return err
				}
				log.Debug("probed", zap.String("input", in.Name), zap.Int("rows", rep.Rows))

				fmt.Fprintf(d.Stdout, "# %s\n%s\n", in.Name, probe.Format(rep))
				if types {
					if err := writeTypes(d.Stdout, probe.SuggestTypes(rep)); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/pipelines/seedlings.yaml", "pipeline config (YAML or JSON)")
	cmd.Flags().StringVar(&input, "input", "", "input name (default: all inputs)")
	cmd.Flags().BoolVar(&types, "types", false, "also print a parser types block")
	return cmd
}

// writeTypes prints a YAML `types:` block ready to paste under parser options.
func writeTypes(w io.Writer, types map[string]string) error {
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: types[k]},
		)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]*yaml.Node{"types": node}); err != nil {
		return fmt.Errorf("encode types: %w", err)
	}
	return enc.Close()
}

func printIssues(w io.Writer, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintln(w, iss.String())
	}
}
