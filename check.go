package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mickamy/queryguard/internal/render/html"
	"github.com/mickamy/queryguard/internal/report"
	"github.com/mickamy/queryguard/internal/runner"
	"github.com/mickamy/queryguard/internal/sqlfile"
)

func checkCommand(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: queryguard check --url <url> --dir queries/ --out reports/ [--recursive]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		urlFlag    = fs.String("url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string; defaults to $DATABASE_URL")
		dir        = fs.String("dir", "", "Directory (or single file) containing .sql files")
		outDir     = fs.String("out", "", "Directory to write per-file HTML reports, manifest.json and index.html")
		recursive  = fs.Bool("recursive", false, "Descend into subdirectories")
		title      = fs.String("title", "", "Index page title")
		timeout    = fs.Duration("timeout", 0, "Optional per-EXPLAIN timeout, e.g. 45s")
		verbose    = fs.Bool("verbose", false, "Enable debug logging")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $QUERYGUARD_CONFIG")
	)
	if help, err := parseFlags(fs, args, configPath); help || err != nil {
		return err
	}
	if *dir == "" || *outDir == "" {
		return fmt.Errorf("--dir and --out are required")
	}

	dsn, err := resolveDSN(*urlFlag)
	if err != nil {
		return err
	}
	files, err := sqlfile.Collect(*dir, *recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no SQL files found under %s", *dir)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	logger := newLogger(*verbose)

	ctx := context.Background()
	explainer, err := runner.NewExplainer(ctx, dsn, runner.Options{Timeout: *timeout})
	if err != nil {
		return err
	}
	defer explainer.Close()

	items := make([]report.IndexItem, 0, len(files))
	for i, file := range files {
		items = append(items, checkFile(ctx, explainer, file, *outDir, i, logger))
	}

	if err := report.WriteManifest(*outDir, items); err != nil {
		return err
	}
	index, err := os.Create(filepath.Join(*outDir, "index.html"))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() {
		_ = index.Close()
	}()
	if err := html.RenderIndex(index, items, html.Options{Title: *title, IncludeStyles: true}); err != nil {
		return err
	}

	failed := 0
	for _, item := range items {
		if item.Error != "" {
			failed++
		}
	}
	level.Info(logger).Log("msg", "check finished", "files", len(items), "failed", failed, "out", *outDir)
	if failed == len(items) {
		return fmt.Errorf("all %d files failed; see %s", failed, filepath.Join(*outDir, report.ManifestFile))
	}
	return nil
}

// checkFile never fails the batch; errors are recorded on the returned item.
func checkFile(ctx context.Context, explainer *runner.Explainer, file, outDir string, seq int, logger log.Logger) report.IndexItem {
	sqlText, err := sqlfile.ReadFile(file)
	if err != nil {
		level.Warn(logger).Log("msg", "skipping file", "file", file, "err", err)
		return report.FailedItem(file, "", err)
	}
	r, err := analyzeStatement(ctx, explainer, explainer, sqlText, file, logger)
	if err != nil {
		level.Warn(logger).Log("msg", "analysis failed", "file", file, "err", err)
		return report.FailedItem(file, sqlText, err)
	}
	r.Title = filepath.Base(file)

	name := fmt.Sprintf("%03d-%s.html", seq+1, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
	out, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return report.FailedItem(file, sqlText, err)
	}
	defer func() {
		_ = out.Close()
	}()
	if err := html.Render(out, r, html.Options{Title: r.Title, IncludeStyles: true}); err != nil {
		return report.FailedItem(file, sqlText, err)
	}
	return r.Item(file, name)
}
