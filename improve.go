package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/plancache"
	"github.com/mickamy/queryguard/internal/rewrite"
	"github.com/mickamy/queryguard/internal/runner"
	"github.com/mickamy/queryguard/internal/scorer"
)

func improveCommand(args []string) error {
	fs := flag.NewFlagSet("improve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: queryguard improve --url <url> (--sql file.sql | --query \"SELECT ...\") [--provider name] [--variants n]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		urlFlag     = fs.String("url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string; defaults to $DATABASE_URL")
		sqlPath     = fs.String("sql", "", "Path to the SQL file to improve")
		inlineSQL   = fs.String("query", "", "Inline SQL string to improve")
		provider    = fs.String("provider", "", "LLM provider name from the config (default from config)")
		variants    = fs.Int("variants", 0, "Number of rewrite candidates to request (default from config)")
		temperature = fs.Float64("temperature", -1, "Sampling temperature (default from config)")
		dialect     = fs.String("dialect", "", "SQL dialect hint sent to the model")
		timeout     = fs.Duration("timeout", 0, "Optional per-EXPLAIN timeout, e.g. 45s")
		cacheDir    = fs.String("cache", "", "Directory of a persistent plan cache (disabled if empty)")
		cacheTTL    = fs.Duration("cache-ttl", 24*time.Hour, "Lifetime of cached plans")
		metricsFile = fs.String("metrics-file", "", "Write Prometheus metrics in text format to this file")
		verbose     = fs.Bool("verbose", false, "Enable debug logging")
		configPath  = fs.String("config", "", "Path to configuration file (JSON). Falls back to $QUERYGUARD_CONFIG")
		rf          = addRenderFlags(fs)
	)
	if help, err := parseFlags(fs, args, configPath); help || err != nil {
		return err
	}

	dsn, err := resolveDSN(*urlFlag)
	if err != nil {
		return err
	}
	sqlText, err := resolveSQL(*sqlPath, *inlineSQL)
	if err != nil {
		return err
	}
	cfg := config.Active()
	if err := cfg.LLM.CheckProvider(*provider); err != nil {
		return err
	}
	logger := newLogger(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	explainer, err := runner.NewExplainer(ctx, dsn, runner.Options{Timeout: *timeout})
	if err != nil {
		return err
	}
	defer explainer.Close()

	var plans planSource = explainer
	if *cacheDir != "" {
		cache, err := plancache.Open(*cacheDir, plancache.Options{TTL: *cacheTTL})
		if err != nil {
			return err
		}
		defer func() {
			if err := cache.Close(); err != nil {
				level.Warn(logger).Log("msg", "closing plan cache", "err", err)
			}
		}()
		plans = plancache.NewProvider(cache, explainer, runner.DSNLabel(dsn), logger)
	}

	r, err := analyzeStatement(ctx, plans, explainer, sqlText, runner.DSNLabel(dsn), logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	client := rewrite.New(rewrite.Config{
		Providers: cfg.LLM.ResolveProviders(os.Getenv),
		Timeout:   cfg.LLM.Timeout(),
		Logger:    log.With(logger, "component", "rewrite"),
	})
	s := scorer.New(client, logger, scorer.NewMetrics(reg))

	opts := scorer.DefaultOptions()
	if *provider != "" {
		opts.Provider = *provider
	}
	if *variants > 0 {
		opts.Variants = *variants
	}
	if *temperature >= 0 {
		opts.Temperature = *temperature
	}
	if *dialect != "" {
		opts.Dialect = *dialect
	}

	res, scoreErr := s.FilterAndRank(ctx, plans, sqlText, r.Profile, opts)
	if res != nil {
		r.AttachScoring(res)
	}
	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			level.Warn(logger).Log("msg", "writing metrics file", "path", *metricsFile, "err", err)
		}
	}
	if scoreErr != nil {
		if res == nil {
			return scoreErr
		}
		level.Warn(logger).Log("msg", "scoring interrupted; rendering partial results", "err", scoreErr)
	}
	return rf.render(r)
}
