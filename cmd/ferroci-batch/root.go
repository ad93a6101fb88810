package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"ferroci/internal/config"
	"ferroci/internal/infrastructure"
	"ferroci/internal/metrics"
	"ferroci/internal/services"
	"ferroci/pkg/contracts"
	"ferroci/pkg/contracts/events"
)

// cliOptions are the persistent flags shared by every subcommand
type cliOptions struct {
	configFile      string
	logLevel        string
	alignment       string
	metrics         []string
	noPlot          bool
	metadataColumns bool
	quiet           bool
}

// runtimeDeps is what a subcommand needs to analyze files
type runtimeDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *services.AnalysisService
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "ferroci-batch",
		Short:         "Analyze cyclic-voltammetry CSV exports without the GUI",
		Long:          "ferroci-batch compares CSV exports against the reference curve of their folder and appends one metrics row per file to data.csv and data.xlsx.",
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(contracts.GetFullVersionString() + "\n")

	f := root.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "config file (default: config.yaml next to the executable)")
	f.StringVar(&opts.logLevel, "log-level", "", "stderr log level: debug, info, warn, error (default warn)")
	f.StringVar(&opts.alignment, "alignment", "", "alignment policy: strict, truncate, interpolate (overrides config)")
	f.StringSliceVar(&opts.metrics, "metrics", nil, "metric names in column order (overrides config)")
	f.BoolVar(&opts.noPlot, "no-plot", false, "do not write plot.png")
	f.BoolVar(&opts.metadataColumns, "metadata-columns", false, "add ReferenceFilename and preamble fields to each row (overrides config)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only print errors")

	root.AddCommand(newProcessCmd(opts))
	root.AddCommand(newWatchCmd(opts))

	return root
}

// setup loads configuration, applies flag overrides and builds the service
func setup(cmd *cobra.Command, opts *cliOptions) (*runtimeDeps, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFrom(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("alignment") {
		cfg.Analysis.Alignment = opts.alignment
	}
	if flags.Changed("metrics") {
		cfg.Analysis.Metrics = opts.metrics
	}
	if opts.noPlot {
		cfg.Analysis.SavePlot = false
	}
	if flags.Changed("metadata-columns") {
		cfg.Analysis.MetadataColumns = opts.metadataColumns
	}

	// Logs go to stderr so stdout carries only the status lines. The status
	// lines already cover info-level events.
	logCfg := cfg.Logging
	logCfg.Output = "console"
	logCfg.Level = "warn"
	if flags.Changed("log-level") {
		logCfg.Level = opts.logLevel
	}
	logger, _, err := infrastructure.NewLogger(logCfg, "", cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry, err := metrics.RegistryFromConfig(cfg.Analysis)
	if err != nil {
		return nil, err
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.quiet {
		out = io.Discard
	}
	notifier := &consoleNotifier{out: out, errOut: cmd.ErrOrStderr()}

	return &runtimeDeps{
		cfg:     cfg,
		logger:  logger,
		service: services.NewAnalysisService(cfg.Analysis, registry, notifier, nil, logger),
	}, nil
}

// consoleNotifier prints the status log the GUI would show
type consoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func (n *consoleNotifier) Report(_ context.Context, entry events.StatusEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()

	w := n.out
	if entry.Level == events.LevelError {
		w = n.errOut
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(w, "%s %-7s %s\n", ts.Format("15:04:05"), entry.Level, entry.Message)
}

func (n *consoleNotifier) Broadcast(events.MessageType, interface{}, string) {}

func (n *consoleNotifier) BroadcastResults(_ context.Context, update events.ResultsUpdated) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s results  %s (%d rows)\n", time.Now().Format("15:04:05"), update.Directory, update.RowCount)
}
