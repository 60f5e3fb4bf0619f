package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xtxerr/rrdsink/config"
	"github.com/xtxerr/rrdsink/internal/feed"
	"github.com/xtxerr/rrdsink/internal/loader"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/manager"
	"github.com/xtxerr/rrdsink/internal/metrics"
	"github.com/xtxerr/rrdsink/internal/rrd/command"
	"github.com/xtxerr/rrdsink/internal/rrd/dsname"
	"github.com/xtxerr/rrdsink/internal/rrd/runner"
	"github.com/xtxerr/rrdsink/internal/rrd/template"
	"github.com/xtxerr/rrdsink/internal/sample"
	"github.com/xtxerr/rrdsink/internal/scheduler"
)

var (
	cfgPath  string
	logLevel string
	feedPath string

	dsGroup     string
	dsTypeName  string
	dsTypeNames []string

	createTemplate string
	createOutput   string
	createBinDir   string
	createTimeout  time.Duration
	createDryRun   bool

	rootCmd = &cobra.Command{
		Use:           "rrdsinkd",
		Short:         "Write collected metric results into rrdtool databases",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Write the results feed to every output at the cycle interval",
		RunE:  runDaemon,
	}

	writeCmd = &cobra.Command{
		Use:   "write",
		Short: "Write the results feed to every output once",
		RunE:  runWriteOnce,
	}

	dsnameCmd = &cobra.Command{
		Use:   "dsname <metric> [subkey]",
		Short: "Print the data source name derived for a metric",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDSName,
	}

	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a database from a template",
		RunE:  runCreate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "rrdsink.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	for _, cmd := range []*cobra.Command{runCmd, writeCmd} {
		cmd.Flags().StringVar(&feedPath, "feed", "", "results feed path (overrides config)")
	}

	dsnameCmd.Flags().StringVar(&dsGroup, "group", "", "series group, used as is")
	dsnameCmd.Flags().StringVar(&dsTypeName, "type-name", "", `type name such as "name=Eden,type=MemoryPool"`)
	dsnameCmd.Flags().StringSliceVar(&dsTypeNames, "type-names", nil, "type-name keys forming the series group")

	createCmd.Flags().StringVar(&createTemplate, "template", "", "template file (XML or YAML)")
	createCmd.Flags().StringVar(&createOutput, "output", "", "database path, defaults to the template's path")
	createCmd.Flags().StringVar(&createBinDir, "binary-dir", config.DefaultBinaryPath, "directory containing rrdtool")
	createCmd.Flags().DurationVar(&createTimeout, "timeout", config.DefaultRunTimeout, "rrdtool timeout, 0 for none")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "print the command instead of running it")
	_ = createCmd.MarkFlagRequired("template")

	rootCmd.AddCommand(runCmd, writeCmd, dsnameCmd, createCmd)
}

// =============================================================================
// Setup
// =============================================================================

// setup loads and validates the host configuration and initializes logging.
func setup() (*loader.Config, error) {
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if feedPath != "" {
		cfg.Feed.Path = feedPath
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Feed.Path == "" {
		return nil, errors.New("feed.path is required (or use --feed)")
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Init(level, strings.ToLower(cfg.Log.Format))

	return cfg, nil
}

// cycle reads the feed and hands it to every output.
func cycle(ctx context.Context, mgr *manager.Manager, path string) error {
	results, err := feed.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn("results feed not present, cycle skipped", "path", path)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = mgr.Cycle(ctx, results)
	return err
}

// =============================================================================
// run
// =============================================================================

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	log := logging.Component("main")
	log.Info("rrdsinkd starting", "version", Version, "outputs", len(cfg.Outputs))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mgr, err := manager.New(loader.ToWriterConfigs(cfg), metrics.New(reg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle(config.DefaultMetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
		log.Info("metrics endpoint listening", "addr", cfg.Metrics.Listen)
	}

	sched := scheduler.New(&scheduler.Config{
		Interval:       cfg.Cycle.Interval.Duration(),
		DrainTimeout:   cfg.Cycle.DrainTimeout.Duration(),
		RunImmediately: true,
	})
	sched.SetCycleFunc(func(ctx context.Context) {
		if err := cycle(ctx, mgr, cfg.Feed.Path); err != nil {
			log.Error("cycle failed", "error", err)
		}
	})
	sched.Start()

	<-ctx.Done()
	log.Info("shutdown signal received")

	sched.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	for _, s := range mgr.Stats() {
		log.Info("output summary",
			"output", s.Name,
			"state", s.State.String(),
			"cycles", s.Stats.CyclesTotal,
			"failed", s.Stats.CyclesFailed,
			"updates", s.Stats.Updates,
			"dropped", s.Stats.Dropped,
			"p95_ms", s.Stats.P95Ms)
	}

	return nil
}

// =============================================================================
// write
// =============================================================================

func runWriteOnce(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	mgr, err := manager.New(loader.ToWriterConfigs(cfg), nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := feed.Load(cfg.Feed.Path)
	if err != nil {
		return err
	}

	res, err := mgr.Cycle(ctx, results)
	for i, r := range res.Reports {
		if r == nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\twritten=%d\tdropped=%d\tcreated=%t\n",
			mgr.Writers()[i].Name(), len(r.Identifiers), r.Dropped, r.Created)
	}
	return err
}

// =============================================================================
// dsname
// =============================================================================

func runDSName(cmd *cobra.Command, args []string) error {
	group := dsGroup
	if group == "" && dsTypeName != "" {
		group = sample.SeriesGroup(dsTypeName, dsTypeNames)
	}

	subKey := ""
	if len(args) > 1 {
		subKey = args[1]
	}

	fmt.Fprintln(cmd.OutOrStdout(), dsname.Derive(group, args[0], subKey))
	return nil
}

// =============================================================================
// create
// =============================================================================

func runCreate(cmd *cobra.Command, args []string) error {
	t, err := template.Load(createTemplate)
	if err != nil {
		return err
	}

	path := createOutput
	if path == "" {
		path = t.Path
	}
	if path == "" {
		return errors.New("no --output given and the template has no path")
	}

	argv, err := command.BuildCreate(t, path, createBinDir)
	if err != nil {
		return err
	}
	if createDryRun {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(argv, " "))
		return nil
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	r := runner.New(runner.WithTimeout(createTimeout))
	if err := r.Run(cmd.Context(), argv); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "created", path)
	return nil
}
