package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"CovidSentinel/internal/collector"
	"CovidSentinel/internal/config"
	"CovidSentinel/internal/display"
	"CovidSentinel/internal/httpapi"
	"CovidSentinel/internal/ingest"
	"CovidSentinel/internal/metrics"
	"CovidSentinel/internal/model"
	"CovidSentinel/internal/notifier"
	"CovidSentinel/internal/recorder"
	"CovidSentinel/internal/scheduler"
	"CovidSentinel/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfgPath string

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] no .env file found, relying on environment variables")
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:           "covid-sentinel",
		Short:         "Daily UK COVID-19 statistics bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "path to the YAML config")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(peaksCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openLog mirrors the log to cfg.Log.File when set. A "{date}" in the name
// is replaced by the start date, giving one file per run day.
func openLog(cfg *config.Config) func() {
	if cfg.Log.File == "" {
		return func() {}
	}
	path := strings.ReplaceAll(cfg.Log.File, "{date}", time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[WARN] create log dir: %v", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("[WARN] open log file %s: %v", path, err)
		return func() {}
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() { f.Close() }
}

func openRecorder(cfg *config.Config) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		log.Printf("[WARN] create database dir: %v", err)
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

// newService assembles the ingestion service from cfg. The notifier and
// metrics are left for the caller.
func newService(cfg *config.Config, rec recorder.Recorder) *ingest.Service {
	opts := store.Options{WriteAttempts: cfg.Store.WriteAttempts}
	fetcher := collector.NewCovidAPIFetcher(
		cfg.DataSource.BaseURL,
		cfg.DataSource.AreaType,
		cfg.DataSource.AreaName,
		cfg.Proxy,
		time.Duration(cfg.DataSource.TimeoutMS)*time.Millisecond,
	)
	log.Printf("[INFO] data source: %s", fetcher.Name())

	return &ingest.Service{
		Records:  store.NewRecordStore(cfg.Store.RecordsFile, opts),
		Peaks:    store.NewPeakStore(cfg.Store.PeaksFile, opts),
		Fetcher:  fetcher,
		Notifier: notifier.LogNotifier{},
		Recorder: rec,
		Opts: ingest.Options{
			Excluded:         cfg.Excluded(),
			RebuildOnInvalid: cfg.Store.RebuildOnInvalid,
			WaitTime:         cfg.WaitDuration(),
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// defaultLastOutput is used when the config cannot be loaded.
const defaultLastOutput = "data/LastOutput.txt"

var fatalf = log.Fatalf

// newPanel builds the status panel from cfg, which may be nil.
func newPanel(cfg *config.Config) *display.Panel {
	path := defaultLastOutput
	if cfg != nil && cfg.Display.LastOutputFile != "" {
		path = cfg.Display.LastOutputFile
	}
	return display.NewPanel(display.WriterDevice{W: os.Stdout}, path)
}

// die latches the error indicator on panel and exits.
func die(panel *display.Panel, format string, args ...any) {
	if err := panel.SetError(true); err != nil {
		log.Printf("[WARN] display: %v", err)
	}
	fatalf("[FATAL] "+format, args...)
}

// restorePanel brings back the previous output; a panel that cannot be drawn
// is fatal.
func restorePanel(panel *display.Panel, latest func() (model.DailyRecord, error)) {
	if err := panel.Reload(latest); err != nil {
		die(panel, "display: %v", err)
	}
}

func runCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot: daily search, chat commands and HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			panel := newPanel(cfg)
			if err != nil {
				die(panel, "%v", err)
				return err
			}
			if !dryRun {
				if err := cfg.Validate(); err != nil {
					die(panel, "config validation: %v", err)
					return err
				}
			}
			defer openLog(cfg)()
			log.Printf("[INFO] CovidSentinel %s starting...", version)
			return run(cfg, panel, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log messages instead of sending them to Telegram")
	return cmd
}

func run(cfg *config.Config, panel *display.Panel, dryRun bool) error {
	rec := openRecorder(cfg)
	defer rec.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := newService(cfg, rec)
	svc.Metrics = metrics.New(reg)
	svc.Panel = panel
	restorePanel(panel, svc.Records.Latest)

	var tn *notifier.TelegramNotifier
	if !dryRun {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		svc.Notifier = tn
	}

	// Context for graceful shutdown
	ctx, cancel := signalContext()
	defer cancel()

	if err := svc.Startup(ctx); err != nil {
		log.Printf("[ERROR] startup verification: %v", err)
	}

	sched := scheduler.NewScheduler(ctx, svc, cfg, version)
	if err := sched.RegisterAll(); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if cfg.HTTP.Listen != "" {
		srv := &httpapi.Server{
			Records:  svc.Records,
			Peaks:    svc.Peaks,
			Panel:    svc.Panel,
			Gatherer: reg,
			Healthy:  svc.Valid,
		}
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTP.Listen); err != nil {
				log.Printf("[ERROR] http server: %v", err)
			}
		}()
	}

	go sched.RunNow()

	log.Println("[INFO] CovidSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")
	return nil
}

func rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Refetch the full history and recompute every record and peak",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rec := openRecorder(cfg)
			defer rec.Close()

			ctx, cancel := signalContext()
			defer cancel()
			n, err := newService(cfg, rec).Rebuild(ctx, "manual")
			if err != nil {
				return err
			}
			fmt.Printf("rebuilt %d records into %s\n", n, cfg.Store.RecordsFile)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "CovidSentinel %s\n", version)
		},
	}
}
