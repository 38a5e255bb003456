package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/umputun/newswatch/pkg/agent"
	"github.com/umputun/newswatch/pkg/config"
	"github.com/umputun/newswatch/pkg/content"
	"github.com/umputun/newswatch/pkg/feed"
	"github.com/umputun/newswatch/pkg/filter"
	"github.com/umputun/newswatch/pkg/history"
	"github.com/umputun/newswatch/pkg/llm"
	"github.com/umputun/newswatch/pkg/monitor"
	"github.com/umputun/newswatch/pkg/report"
	"github.com/umputun/newswatch/pkg/scrape"
	"github.com/umputun/newswatch/pkg/search"
)

// Opts with all CLI options
type Opts struct {
	Config    string `short:"c" long:"config" env:"NEWSWATCH_CONFIG" default:"config.yml" description:"config file path"`
	Output    string `short:"o" long:"output" env:"NEWSWATCH_OUTPUT" description:"CSV report path, overrides config"`
	Summarize bool   `short:"s" long:"summarize" description:"summarize the report with the LLM after the run"`
	Ask       string `short:"a" long:"ask" description:"skip the pipeline, run the agent with this prompt instead"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug)

	log.Printf("[INFO] starting newswatch version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run loads the config and executes either the agent conversation or the
// monitoring pipeline
func run(ctx context.Context, opts Opts) error {
	// .env is optional, config expansion picks the variables up
	if err := godotenv.Load(); err == nil {
		log.Printf("[DEBUG] loaded .env file")
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Output != "" {
		cfg.Output.File = opts.Output
	}

	// re-init logging with credentials masked
	setupLog(opts.Debug, cfg.Search.APIKey, cfg.LLM.APIKey)

	reader := feed.NewReader(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)

	scraper := scrape.NewScraper(scrape.Opts{
		Timeout:    cfg.Scrape.Timeout,
		UserAgent:  cfg.Scrape.UserAgent,
		MaxEntries: cfg.Scrape.MaxEntries,
		MinTextLen: cfg.Scrape.MinTextLen,
	})

	var searcher *search.Client
	if len(cfg.Search.Keywords) > 0 {
		var err error
		searcher, err = search.NewClient(search.Opts{
			APIKey:       cfg.Search.APIKey,
			EngineID:     cfg.Search.EngineID,
			DateRestrict: cfg.Search.DateRestrict,
			Results:      cfg.Search.Results,
			Timeout:      cfg.Search.Timeout,
		})
		if err != nil {
			return fmt.Errorf("search client: %w", err)
		}
	}

	if opts.Ask != "" {
		return runAgent(ctx, cfg, opts.Ask, reader, searcher, scraper)
	}
	return runPipeline(ctx, cfg, opts, reader, searcher, scraper)
}

// runPipeline does one fetch-filter-report pass, optionally followed by summarization
func runPipeline(ctx context.Context, cfg *config.Config, opts Opts,
	reader *feed.Reader, searcher *search.Client, scraper *scrape.Scraper) error {

	if opts.Summarize && !cfg.LLMConfigured() {
		return fmt.Errorf("llm.api_key is required for summarization")
	}

	kwFilter := filter.New(filter.Lists{
		Primary:   cfg.Keywords.Primary,
		Secondary: cfg.Keywords.Secondary,
		Exclusion: cfg.Keywords.Exclusion,
		Region:    cfg.Keywords.Region,
	})

	params := monitor.Params{
		Reader:         reader,
		Scraper:        scraper,
		Filter:         kwFilter,
		Feeds:          cfg.Feeds,
		SearchKeywords: cfg.Search.Keywords,
		ScrapePages:    cfg.Scrape.Pages,
		OutputFile:     cfg.Output.File,
	}
	if searcher != nil {
		params.Searcher = searcher
	}
	if cfg.Extraction.Enabled {
		params.Extractor = content.NewExtractor(cfg.Extraction.Timeout,
			cfg.Extraction.UserAgent, cfg.Extraction.MinTextLength)
		params.MinExcerptLen = cfg.Extraction.MinTextLength
	}
	if cfg.History.DSN != "" {
		journal, err := history.New(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open history journal: %w", err)
		}
		defer journal.Close()
		params.Journal = journal
	}

	stats, _, err := monitor.New(params).Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[INFO] run finished in %s, %d items fetched, %d matches",
		stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond), stats.ItemsFetched, stats.ItemsMatched)

	if !opts.Summarize {
		return nil
	}

	csvText, err := report.ReadFileText(cfg.Output.File)
	if err != nil {
		return fmt.Errorf("read report for summarization: %w", err)
	}
	summarizer := llm.NewSummarizer(cfg.GetLLMConfig(), cfg.Keywords)
	summary, err := summarizer.Summarize(ctx, csvText)
	if err != nil {
		return fmt.Errorf("summarize report: %w", err)
	}
	fmt.Println(summary)
	return nil
}

// runAgent answers a single prompt, letting the model call the collectors as tools
func runAgent(ctx context.Context, cfg *config.Config, prompt string,
	reader *feed.Reader, searcher *search.Client, scraper *scrape.Scraper) error {

	if !cfg.LLMConfigured() {
		return fmt.Errorf("llm.api_key is required for agent mode")
	}

	registry := agent.NewRegistry(agent.NewFeedTool(reader, cfg.Feeds))
	if searcher != nil {
		registry.Register(agent.NewSearchTool(searcher))
	}
	if len(cfg.Scrape.Pages) > 0 {
		registry.Register(agent.NewScrapeTool(scraper, cfg.Scrape.Pages))
	}

	answer, err := agent.New(cfg.GetLLMConfig(), registry).Run(ctx, prompt)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	fmt.Println(answer)
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	for _, s := range secs {
		if s != "" {
			logOpts = append(logOpts, lgr.Secret(s))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
