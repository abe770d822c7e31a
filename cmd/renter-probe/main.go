// renter-probe drives a renter through upload scenarios and checks that its
// reported namespace matches what was written.
//
// Configuration comes from the environment (see internal/config); flags
// override it. The exit code is 0 when the run passed, 1 when it failed and
// 2 on bad configuration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/renterprobe/internal/config"
	"github.com/fruitsalade/renterprobe/internal/harness"
	"github.com/fruitsalade/renterprobe/internal/logging"
	"github.com/fruitsalade/renterprobe/internal/metrics"
	"github.com/fruitsalade/renterprobe/internal/results"
	"github.com/fruitsalade/renterprobe/internal/results/postgres"
	s3results "github.com/fruitsalade/renterprobe/internal/results/s3"
	"github.com/fruitsalade/renterprobe/pkg/client"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}

	flag.StringVar(&cfg.RenterAddr, "addr", cfg.RenterAddr, "Renter API base URL")
	flag.StringVar(&cfg.Suite, "suite", cfg.Suite, "Suite to run: multi-upload, properties or all")
	flag.StringVar(&cfg.ScenarioFile, "scenario", cfg.ScenarioFile, "INI scenario file")
	flag.StringVar(&cfg.FilesDir, "files", cfg.FilesDir, "Directory for synthetic files")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for file sizes (0 = time-based)")
	flag.DurationVar(&cfg.WaitReady, "wait", cfg.WaitReady, "How long to wait for the renter to come up")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request timeout (0 = none)")
	flag.StringVar(&cfg.ShareWith, "share-with", cfg.ShareWith, "Peer alias for the share check")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	jsonOut := flag.Bool("json", false, "Print the full report as JSON")
	history := flag.Int("history", 0, "Print the last N runs from RESULTS_DATABASE_URL and exit")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}

	// Logs go to stderr; stdout carries the report.
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "logging init: %v\n", err)
		return 2
	}
	defer logging.Sync()
	logger := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		return printHistory(ctx, os.Stdout, cfg.ResultsDatabaseURL, *history)
	}

	sc, err := config.LoadScenario(cfg.ScenarioFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scenario error: %v\n", err)
		return 2
	}
	if suiteOverridden() {
		sc.Suite = cfg.Suite
	}

	m := metrics.New()
	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: m.InstrumentTransport(http.DefaultTransport.(*http.Transport).Clone()),
	}
	c, err := client.New(client.Config{BaseURL: cfg.RenterAddr, HTTPClient: httpClient})
	if err != nil {
		fmt.Fprintf(os.Stderr, "client error: %v\n", err)
		return 2
	}

	h, err := harness.New(c, sc, harness.Options{
		Dir:       cfg.FilesDir,
		Seed:      cfg.Seed,
		WaitReady: cfg.WaitReady,
		ShareWith: cfg.ShareWith,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "scenario error: %v\n", err)
		return 2
	}

	if _, err := h.WaitReady(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "FAIL renter not reachable: %v\n", err)
		return 1
	}

	rep, runErr := h.RunSuite(ctx)

	writeErr := writeReport(os.Stdout, rep, *jsonOut)
	if writeErr != nil {
		logger.Error("writing report failed", zap.Error(writeErr))
	}

	saveReport(ctx, cfg, rep, logger)
	exportMetrics(ctx, cfg, m, logger)

	if runErr != nil || writeErr != nil {
		return 1
	}
	return 0
}

func writeReport(w io.Writer, rep *harness.Report, asJSON bool) error {
	if !asJSON {
		printReport(w, rep)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// suiteOverridden reports whether the suite was chosen on the command line
// or in the environment, in which case it beats the scenario file.
func suiteOverridden() bool {
	set := os.Getenv("PROBE_SUITE") != ""
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "suite" {
			set = true
		}
	})
	return set
}

func printReport(w io.Writer, rep *harness.Report) {
	fmt.Fprintf(w, "run %s (%s) against %s\n", rep.RunID, rep.Suite, rep.BaseURL)
	for _, p := range rep.Phases {
		status := "ok"
		if !p.OK {
			status = "FAILED"
		}
		fmt.Fprintf(w, "  %-22s %-7s %s\n", p.Name, status, p.Duration.Round(time.Millisecond))
	}
	for _, c := range rep.Checks {
		if !c.Passed {
			fmt.Fprintf(w, "  check %s: %s\n", c.Name, c.Detail)
		}
	}
	for _, p := range rep.Missing {
		fmt.Fprintf(w, "  missing: %s\n", p)
	}

	if f := rep.Failure; f != nil {
		if f.Protocol() {
			fmt.Fprintf(w, "FAIL %s: %s %s returned %d: %s\n", f.Phase, f.Method, f.Endpoint, f.StatusCode, f.Message)
			if f.Body != f.Message {
				fmt.Fprintf(w, "  body: %s\n", f.Body)
			}
		} else {
			fmt.Fprintf(w, "FAIL %s: %s\n", f.Phase, f.Message)
		}
		return
	}
	if rep.Passed {
		fmt.Fprintln(w, "PASS")
	}
}

func saveReport(ctx context.Context, cfg *config.Config, rep *harness.Report, logger *zap.Logger) {
	var sinks []results.Sink

	if cfg.ReportBucket != "" {
		archive, err := s3results.New(ctx, s3results.Config{
			Endpoint:  cfg.ReportEndpoint,
			Bucket:    cfg.ReportBucket,
			Prefix:    cfg.ReportPrefix,
			AccessKey: cfg.ReportAccessKey,
			SecretKey: cfg.ReportSecretKey,
			Region:    cfg.ReportRegion,
		}, logger)
		if err != nil {
			logger.Warn("report archive unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, archive)
		}
	}

	if cfg.ResultsDatabaseURL != "" {
		store, err := postgres.New(cfg.ResultsDatabaseURL)
		if err == nil {
			defer store.Close()
			err = store.Migrate(ctx)
		}
		if err != nil {
			logger.Warn("run history unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, store)
		}
	}

	if err := results.SaveAll(ctx, rep, sinks...); err != nil {
		logger.Warn("saving report failed", zap.Error(err))
	}
}

func exportMetrics(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) {
	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("writing metrics textfile failed", zap.Error(err))
		}
	}
	if cfg.MetricsPushURL != "" {
		if err := m.Push(ctx, cfg.MetricsPushURL, "renter_probe"); err != nil {
			logger.Warn("pushing metrics failed", zap.Error(err))
		}
	}
}

func printHistory(ctx context.Context, w io.Writer, databaseURL string, n int) int {
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "RESULTS_DATABASE_URL is required for -history")
		return 2
	}
	store, err := postgres.New(databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run history: %v\n", err)
		return 1
	}
	defer store.Close()

	runs, err := store.Recent(ctx, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run history: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSUITE\tRESULT\tUPLOADS\tMISSING\tFAILED PHASE\tRUN")
	for _, r := range runs {
		result := "PASS"
		if !r.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Suite, result,
			r.Uploads, len(r.Missing), r.FailedPhase, r.RunID)
	}
	tw.Flush()
	return 0
}
