package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hexelier/immoharvest/config"
	"github.com/hexelier/immoharvest/engine"
	"github.com/hexelier/immoharvest/extract"
	"github.com/hexelier/immoharvest/session"
	"github.com/hexelier/immoharvest/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load() // optional .env; absence is fine
	cfg := config.Load()

	start := flag.Int("start", cfg.Scrape.StartPage, "first page of the range")
	end := flag.Int("end", cfg.Scrape.EndPage, "last page of the range (inclusive)")
	workers := flag.Int("workers", cfg.Browser.Tabs, "parallel tabs (1-10)")
	output := flag.String("output", cfg.Output.File, "CSV filename (default derived from the page range)")
	headless := flag.Bool("headless", cfg.Browser.Headless, "run the browser headless (skips the manual consent click)")
	debug := flag.Bool("debug", cfg.Scrape.Debug, "save HTML/screenshots for problem pages and cards")
	dsn := flag.String("db", cfg.Database.DSN, "postgres DSN; enables the database sink")
	flag.Parse()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	// ── 3. Resolve the page range ───────────────────────────────────
	cfg.Scrape.StartPage = *start
	cfg.Scrape.EndPage = *end
	cfg.Browser.Tabs = config.ClampTabs(*workers)
	cfg.Browser.Headless = *headless
	cfg.Scrape.Debug = *debug
	cfg.Database.DSN = *dsn

	if cfg.Scrape.StartPage < 1 || cfg.Scrape.EndPage < 1 {
		if err := promptRange(cfg); err != nil {
			slog.Error("could not read page range", "error", err)
			return 1
		}
	}
	if cfg.Scrape.EndPage < cfg.Scrape.StartPage {
		slog.Error("invalid page range",
			"start", cfg.Scrape.StartPage, "end", cfg.Scrape.EndPage)
		return 1
	}

	if *output == "" {
		cfg.Output.File = fmt.Sprintf("listings_p%d-p%d.csv",
			cfg.Scrape.StartPage, cfg.Scrape.EndPage)
	} else {
		cfg.Output.File = *output
	}

	slog.Info("immoharvest starting",
		"start", cfg.Scrape.StartPage,
		"end", cfg.Scrape.EndPage,
		"tabs", cfg.Browser.Tabs,
		"headless", cfg.Browser.Headless,
		"output", cfg.Output.File,
	)

	// ── 4. Signal handling ──────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		slog.Warn("shutdown signal received, finishing current pages", "signal", sig.String())
		cancel()
	}()

	// ── 5. Open sinks ───────────────────────────────────────────────
	csvSink, err := sink.NewCSVSink(cfg.Output.Dir, cfg.Output.File)
	if err != nil {
		slog.Error("failed to open output file", "error", err)
		return 1
	}
	sinks := sink.Multi{csvSink}
	if cfg.Database.DSN != "" {
		pg, err := sink.NewPostgresSink(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			return 1
		}
		sinks = append(sinks, pg)
		slog.Info("postgres sink enabled")
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Warn("sink close reported an error", "error", err)
		}
	}()

	var diag *engine.Diagnostics
	if cfg.Scrape.Debug {
		diag, err = engine.NewDiagnostics(cfg.Output.Dir)
		if err != nil {
			slog.Error("failed to create diagnostic dirs", "error", err)
			return 1
		}
	}

	// ── 6. Launch the browser session ───────────────────────────────
	sess := session.New(cfg.Browser, cfg.RateLimit, cfg.Site, cfg.Timing)
	defer sess.Close()

	if err := sess.Open(ctx); err != nil {
		slog.Error("failed to open browser session", "error", err)
		return 1
	}
	if err := sess.AwaitConsent(ctx); err != nil {
		slog.Error("aborted while waiting for consent", "error", err)
		return 1
	}
	if err := sess.EnsureTabs(ctx, cfg.Browser.Tabs); err != nil {
		slog.Error("failed to prepare tab pool", "error", err)
		return 1
	}
	tabs := sess.TabCount()
	if tabs < cfg.Browser.Tabs {
		slog.Warn("running with a reduced tab pool", "tabs", tabs, "requested", cfg.Browser.Tabs)
	}

	// ── 7. Run the pipeline ─────────────────────────────────────────
	worker := engine.NewWorker(
		sess,
		extract.New(cfg.Site.Origin),
		sinks,
		diag,
		cfg.Site,
		cfg.Scrape,
		cfg.Validation,
		cfg.Timing,
	)
	orch := engine.NewOrchestrator(worker, tabs, cfg.Retry, cfg.Timing)
	report := orch.Run(ctx, cfg.Scrape.StartPage, cfg.Scrape.EndPage)

	// ── 8. Final summary ────────────────────────────────────────────
	slog.Info("run finished",
		"totalListings", report.TotalListings,
		"pages", len(report.Outcomes),
		"elapsed", report.Elapsed.Round(time.Second),
		"output", csvSink.Path(),
	)
	if report.AllSucceeded() {
		slog.Info("all pages succeeded")
	} else {
		slog.Error("some pages failed permanently", "pages", report.SortedFailedPages())
	}
	return 0
}

// promptRange asks interactively for any page bound the flags/env left
// unset.
func promptRange(cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)
	var err error
	if cfg.Scrape.StartPage < 1 {
		cfg.Scrape.StartPage, err = promptInt(reader, "First page to scrape: ")
		if err != nil {
			return err
		}
	}
	if cfg.Scrape.EndPage < 1 {
		cfg.Scrape.EndPage, err = promptInt(reader, "Last page to scrape: ")
		if err != nil {
			return err
		}
	}
	return nil
}

func promptInt(reader *bufio.Reader, prompt string) (int, error) {
	for {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 {
			return n, nil
		}
		fmt.Println("please enter a positive number")
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
