// Package cli is the qpss command line: it loads configuration, wires the
// adapters and runs one flow per invocation.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/qpss/middleware/internal/infrastructure/config"
	"github.com/qpss/middleware/internal/infrastructure/logger"
	"github.com/qpss/middleware/internal/infrastructure/metrics"
	"github.com/qpss/middleware/internal/infrastructure/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServiceName identifies the process in traces
const ServiceName = "qpss-middleware"

// App holds the process-wide state shared by all commands
type App struct {
	version string
	in      io.Reader
	out     io.Writer

	configPath string
	dryRun     bool

	cfg     *config.Config
	logger  *zap.Logger
	cleanup []func()
	now     func() time.Time
}

// Option customizes an App
type Option func(*App)

// WithIO replaces stdin and stdout, which carry prompts and tables
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New creates an App
func New(version string, opts ...Option) *App {
	a := &App{
		version: version,
		in:      os.Stdin,
		out:     os.Stdout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs the command line with args
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "qpss",
		Short: "QuikPAK and ShipStation order reconciliation",
		Long: `qpss moves orders between QuikPAK and ShipStation.

flow1 submits QuikPAK order files to ShipStation and records each order in
the holding tank. flow2 polls ShipStation for shipped labels and writes the
confirmation files QuikPAK picks up.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is ./config.toml)")
	root.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "parse, map and match without calling ShipStation or moving files")
	root.SetVersionTemplate("qpss {{.Version}}\n")

	root.AddCommand(
		a.flow1Command(),
		a.flow2Command(),
		a.listStoresCommand(),
		a.cleanupPendingCommand(),
	)
	return root
}

// setup loads configuration and starts the run logger for a command
func (a *App) setup(ctx context.Context, flow string) (context.Context, error) {
	cfg, err := config.Load(a.configPath, a.dryRun)
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg

	base, closeLog, err := logger.NewRunLogger(logger.RunConfig{
		Console: &logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     "stderr",
			TimeFormat: "2006-01-02 15:04:05",
		},
		Dir: cfg.Paths.LogDir,
		Now: a.now,
	})
	if err != nil {
		return ctx, err
	}
	a.cleanup = append(a.cleanup, closeLog)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, base)
	if err != nil {
		base.Warn("Tracing disabled", zap.Error(err))
	} else if tp.IsEnabled() {
		a.cleanup = append(a.cleanup, func() { _ = tp.Shutdown(context.Background()) })
	}

	runID := uuid.NewString()
	ctx, a.logger = logger.WithRunID(ctx, base, runID, flow)
	ctx, span := telemetry.StartSpan(ctx, "qpss."+flow, telemetry.SpanAttrRunID, runID)
	a.cleanup = append(a.cleanup, func() { span.End() })

	a.logger.Info("QPSS Middleware starting",
		zap.String("version", a.version),
		zap.String("config", cfg.File),
		zap.Bool("dry_run", a.dryRun),
	)
	if a.dryRun {
		a.logger.Info("DRY RUN: no API calls, no file moves, state not updated")
	}
	return ctx, nil
}

// finish exports a run to the metrics textfile when configured. A failed
// run also prints the IDs that find it in the log and the trace backend.
func (a *App) finish(ctx context.Context, counts map[string]int, started time.Time, runErr error) {
	if runErr != nil {
		ref := "run_id=" + logger.GetRunID(ctx)
		if traceID := logger.GetTraceID(ctx); traceID != "" {
			ref += " trace_id=" + traceID
		}
		a.printf("Run failed, see %s in the log\n", ref)
	}
	if a.cfg == nil || a.cfg.Metrics.Textfile == "" || a.dryRun {
		return
	}
	flow := logger.GetFlow(ctx)
	m := metrics.NewRunMetrics()
	finished := a.now()
	m.Observe(flow, counts, finished.Sub(started), finished, runErr)
	if err := m.WriteTextfile(metrics.FlowTextfile(a.cfg.Metrics.Textfile, flow)); err != nil {
		logger.L(ctx).Warn("Failed to write metrics textfile", zap.Error(err))
	}
}

// close runs cleanups in reverse order
func (a *App) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}
