package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/v0xg/profilecheck/internal/artifact"
	"github.com/v0xg/profilecheck/internal/browser"
	"github.com/v0xg/profilecheck/internal/config"
	"github.com/v0xg/profilecheck/internal/logging"
	"github.com/v0xg/profilecheck/internal/report"
	"github.com/v0xg/profilecheck/internal/runner"
	"github.com/v0xg/profilecheck/internal/scenario"
	"github.com/v0xg/profilecheck/internal/trace"
	"go.uber.org/zap"
)

var (
	configFile string
	list       bool
	grep       string
	verbose    bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd(config.NewViper()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "profilecheck [scenario-id...]",
		Short: "Acceptance checks for a web application's profile update form",
		Long: `profilecheck logs into the target site in a headless browser, opens the
profile form and runs the profile-update scenarios against it. Every
scenario runs in its own incognito session.

Credentials come from PROFILECHECK_USERNAME and PROFILECHECK_PASSWORD
(a .env file in the working directory is honoured).

Example:
  profilecheck --base-url https://buggy.justtestit.org CP-01 CP-05`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (yaml, json or toml)")
	flags.BoolVar(&list, "list", false, "List the selected scenarios without running them")
	flags.StringVarP(&grep, "grep", "g", "", "Only run scenarios whose id or title matches this regexp")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every lookup strategy")
	flags.String("base-url", "", "Target site")
	flags.Bool("headless", true, "Run Chromium headless")
	flags.Int("workers", 1, "Scenarios run in parallel")
	flags.Int("retries", 1, "Extra attempts for a failed scenario")
	flags.String("trace", config.TraceOnFirstRetry, "Trace policy: off, on-first-retry, always")
	flags.String("debug-dir", "debug", "Directory for failure screenshots and markup")
	flags.String("report-dir", "profilecheck-report", "Directory for the HTML and JSON reports")

	for key, flag := range map[string]string{
		"base_url":         "base-url",
		"browser.headless": "headless",
		"workers":          "workers",
		"retries":          "retries",
		"trace":            "trace",
		"debug_dir":        "debug-dir",
		"report_dir":       "report-dir",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return rootCmd
}

func run(cmd *cobra.Command, v *viper.Viper, args []string) error {
	out := cmd.OutOrStdout()

	selected, err := scenario.Select(scenario.All(), args, grep)
	if err != nil {
		return err
	}
	if list {
		for _, sc := range selected {
			fmt.Fprintf(out, "  %s\n", sc.Name())
		}
		fmt.Fprintf(out, "Total: %d scenarios\n", len(selected))
		return nil
	}
	if len(selected) == 0 {
		return fmt.Errorf("no scenarios selected")
	}

	if verbose {
		v.Set("log.level", "debug")
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "→ Launching browser... ")
	b, err := browser.Launch(ctx, browser.Options{
		Headless:      cfg.Browser.Headless,
		Stealth:       cfg.Browser.Stealth,
		Bin:           cfg.Browser.Bin,
		Width:         cfg.Browser.Width,
		Height:        cfg.Browser.Height,
		ActionTimeout: cfg.Timeouts.Action,
		Log:           log.Named("browser"),
	})
	if err != nil {
		fmt.Fprintln(out, "failed")
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("close browser", zap.Error(err))
		}
	}()
	fmt.Fprintln(out, "done")

	open := func(ctx context.Context, rec *trace.Recorder) (runner.Page, error) {
		s, err := b.Open(ctx, rec)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	fmt.Fprintf(out, "→ Running %d scenarios against %s using %d workers\n\n", len(selected), cfg.BaseURL, max(1, cfg.Workers))
	started := time.Now()
	sink := artifact.NewWriter(cfg.DebugDir, log.Named("artifact"))
	results := runner.New(cfg, open, sink, log).Run(ctx, selected)

	report.List(out, results)
	htmlPath, _, err := report.Write(cfg.ReportDir, report.NewRun(cfg.BaseURL, started, results))
	if err != nil {
		log.Error("report not written", zap.Error(err))
	} else {
		fmt.Fprintf(out, "\n✓ Report written to %s\n", htmlPath)
	}

	if report.Failed(results) {
		return fmt.Errorf("%d of %d scenarios failed", report.Summarize(results).Failed, len(results))
	}
	return nil
}
