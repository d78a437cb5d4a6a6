package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mickamy/queryguard/internal/advisor"
	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/diff"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/parser"
	"github.com/mickamy/queryguard/internal/render/html"
	"github.com/mickamy/queryguard/internal/render/tui"
	"github.com/mickamy/queryguard/internal/report"
	"github.com/mickamy/queryguard/internal/runner"
	"github.com/mickamy/queryguard/internal/sqlfile"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "analyze":
		err = analyzeCommand(args)
	case "report":
		err = reportCommand(args)
	case "diff":
		err = diffCommand(args)
	case "improve":
		err = improveCommand(args)
	case "check":
		err = checkCommand(args)
	case "version":
		err = versionCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`queryguard - PostgreSQL query risk, index advice and rewrite scoring

Usage:
  queryguard <command> [options]

Commands:
  run      Print EXPLAIN (FORMAT JSON) for a query
  analyze  EXPLAIN a query and render its cost profile, risk and index advice
  report   Render the same report offline from a saved plan
  diff     Compare the estimates of two saved plans
  improve  Analyze a query, request rewrites from an LLM and keep the cheaper ones
  check    Analyze every .sql file in a directory and write an index
  version  Show CLI version information

Use "queryguard <command> -h" for command-specific help.`)
}

func applyConfigPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("QUERYGUARD_CONFIG"))
	}
	return config.Apply(path)
}

func newLogger(verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowWarn())
}

// parseFlags handles -h uniformly; the boolean reports that help was printed.
func parseFlags(fs *flag.FlagSet, args []string, configPath *string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return true, nil
		}
		return false, err
	}
	if configPath == nil {
		return false, nil
	}
	return false, applyConfigPath(*configPath)
}

func resolveDSN(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("--url is required or set $DATABASE_URL")
	}
	return runner.NormalizeDSN(raw)
}

func resolveSQL(path, inline string) (string, error) {
	if path != "" && inline != "" {
		return "", fmt.Errorf("specify only one of --sql or --query")
	}
	var sqlText string
	switch {
	case path != "":
		stmt, err := sqlfile.ReadFile(path)
		if err != nil {
			return "", err
		}
		sqlText = stmt
	case inline != "":
		stmt, err := sqlfile.FirstStatement([]byte(inline))
		if err != nil {
			return "", err
		}
		sqlText = stmt
	default:
		return "", fmt.Errorf("--sql or --query is required")
	}
	if strings.TrimSpace(sqlText) == "" {
		return "", fmt.Errorf("no SQL statement found")
	}
	return sqlText, nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: queryguard run --url <url> (--sql <file> | --query \"SELECT ...\") [--out plan.json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		urlFlag    = fs.String("url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string; defaults to $DATABASE_URL")
		sqlPath    = fs.String("sql", "", "Path to the SQL file to EXPLAIN")
		inlineSQL  = fs.String("query", "", "Inline SQL string to EXPLAIN")
		outPath    = fs.String("out", "", "Path to write the resulting JSON (defaults to stdout)")
		timeout    = fs.Duration("timeout", 0, "Optional EXPLAIN timeout, e.g. 45s")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $QUERYGUARD_CONFIG")
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

	result, err := runner.Run(context.Background(), dsn, sqlText, runner.Options{Timeout: *timeout})
	if err != nil {
		return err
	}
	pretty, err := indentJSON(result)
	if err != nil {
		return err
	}
	return writeOutput(*outPath, pretty)
}

// renderFlags are shared by every command that renders a report.
type renderFlags struct {
	mode       *string
	out        *string
	title      *string
	color      *bool
	maxDepth   *int
	warnings   *bool
	includeCSS *bool
}

func addRenderFlags(fs *flag.FlagSet) renderFlags {
	return renderFlags{
		mode:       fs.String("mode", "tui", "Output mode: tui, html, md or json"),
		out:        fs.String("out", "", "Output path (stdout if omitted)"),
		title:      fs.String("title", "", "Report title"),
		color:      fs.Bool("color", true, "Enable ANSI colors for TUI output"),
		maxDepth:   fs.Int("max-depth", 0, "Limit tree depth (TUI)"),
		warnings:   fs.Bool("warnings", true, "Highlight warnings (TUI)"),
		includeCSS: fs.Bool("css", true, "Include inline styles (HTML)"),
	}
}

func (f renderFlags) render(r *report.Report) error {
	if *f.title != "" {
		r.Title = *f.title
	}
	target := io.Writer(os.Stdout)
	if *f.out != "" {
		file, err := os.Create(*f.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		target = file
	}

	switch *f.mode {
	case "tui":
		return tui.Render(target, r, tui.Options{
			EnableColor:  *f.color,
			MaxDepth:     *f.maxDepth,
			ShowWarnings: *f.warnings,
		})
	case "html":
		return html.Render(target, r, html.Options{
			Title:         r.Title,
			IncludeStyles: *f.includeCSS,
		})
	case "md", "markdown":
		_, err := io.WriteString(target, r.Markdown())
		return err
	case "json":
		payload, err := r.JSON()
		if err != nil {
			return err
		}
		_, err = target.Write(append(payload, '\n'))
		return err
	default:
		return fmt.Errorf("unknown mode %q (expected tui, html, md or json)", *f.mode)
	}
}

func analyzeCommand(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: queryguard analyze --url <url> (--sql file.sql | --query \"SELECT ...\") [--mode tui|html|md|json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		urlFlag    = fs.String("url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string; defaults to $DATABASE_URL")
		sqlPath    = fs.String("sql", "", "Path to the SQL file to EXPLAIN")
		inlineSQL  = fs.String("query", "", "Inline SQL string to EXPLAIN")
		timeout    = fs.Duration("timeout", 0, "Optional EXPLAIN timeout, e.g. 45s")
		verbose    = fs.Bool("verbose", false, "Enable debug logging")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $QUERYGUARD_CONFIG")
		rf         = addRenderFlags(fs)
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
	logger := newLogger(*verbose)

	ctx := context.Background()
	explainer, err := runner.NewExplainer(ctx, dsn, runner.Options{Timeout: *timeout})
	if err != nil {
		return err
	}
	defer explainer.Close()

	r, err := analyzeStatement(ctx, explainer, explainer, sqlText, runner.DSNLabel(dsn), logger)
	if err != nil {
		return err
	}
	return rf.render(r)
}

// statsSource reads catalog statistics for the advisor.
type statsSource interface {
	TableStats(ctx context.Context, relations []string) (model.TableStats, error)
}

// planSource returns parsed plans; runner.Explainer and plancache.Provider satisfy it.
type planSource interface {
	Explain(ctx context.Context, sql string) (*model.Explain, error)
}

func analyzeStatement(ctx context.Context, plans planSource, stats statsSource, sqlText, source string, logger log.Logger) (*report.Report, error) {
	explain, err := plans.Explain(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	tableStats, err := stats.TableStats(ctx, explain.Plan.Relations())
	if err != nil {
		level.Warn(logger).Log("msg", "table statistics unavailable; sequential scan advice disabled", "err", err)
		tableStats = model.TableStats{}
	}
	cfg := config.Active()
	return report.Build(report.Input{
		Source:       source,
		SQL:          sqlText,
		Explain:      explain,
		Stats:        tableStats,
		WorkMemBytes: cfg.Profile.WorkMemBytes,
		Advisor: advisor.Options{
			SeqScanMinPages: cfg.Advisor.SeqScanMinPages,
			BRINMinPages:    cfg.Advisor.BRINMinPages,
		},
	})
}

func reportCommand(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: queryguard report --input plan.json [--stats stats.json] [--mode tui|html|md|json] [--out file]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Path to EXPLAIN JSON input")
		statsPath  = fs.String("stats", "", "Optional JSON file mapping relation to {relpages, reltuples}")
		sqlPath    = fs.String("sql", "", "Optional SQL file shown alongside the plan")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $QUERYGUARD_CONFIG")
		rf         = addRenderFlags(fs)
	)
	if help, err := parseFlags(fs, args, configPath); help || err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	explain, err := loadPlan(*input)
	if err != nil {
		return err
	}
	stats := model.TableStats{}
	if *statsPath != "" {
		if stats, err = loadStats(*statsPath); err != nil {
			return err
		}
	}
	var sqlText string
	if *sqlPath != "" {
		if sqlText, err = sqlfile.ReadFile(*sqlPath); err != nil {
			return err
		}
	}

	cfg := config.Active()
	r, err := report.Build(report.Input{
		Source:       *input,
		SQL:          sqlText,
		Explain:      explain,
		Stats:        stats,
		WorkMemBytes: cfg.Profile.WorkMemBytes,
		Advisor: advisor.Options{
			SeqScanMinPages: cfg.Advisor.SeqScanMinPages,
			BRINMinPages:    cfg.Advisor.BRINMinPages,
		},
	})
	if err != nil {
		return err
	}
	return rf.render(r)
}

func diffCommand(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: queryguard diff --base base.json --target target.json [--format md|json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		basePath   = fs.String("base", "", "Path to baseline EXPLAIN JSON")
		targetPath = fs.String("target", "", "Path to target EXPLAIN JSON")
		format     = fs.String("format", "md", "Output format (md or json)")
		output     = fs.String("out", "", "Output path (stdout if omitted)")
		minDelta   = fs.Float64("min-delta", 0, "Minimum self-cost delta to report (default from config)")
		minPct     = fs.Float64("min-percent", 0, "Minimum percent change to report (default from config)")
		maxItems   = fs.Int("limit", 0, "Maximum rows per section (default from config)")
		configPath = fs.String("config", "", "Path to configuration file (JSON). Falls back to $QUERYGUARD_CONFIG")
	)
	if help, err := parseFlags(fs, args, configPath); help || err != nil {
		return err
	}
	if *basePath == "" || *targetPath == "" {
		return fmt.Errorf("--base and --target are required")
	}

	base, err := loadPlan(*basePath)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	target, err := loadPlan(*targetPath)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}

	d, err := diff.Compare(base.Plan, target.Plan, diff.Options{
		MinCostDelta:     *minDelta,
		MinPercentChange: *minPct,
		MaxItems:         *maxItems,
	})
	if err != nil {
		return err
	}

	switch *format {
	case "md", "markdown":
		return writeOutput(*output, []byte(d.Markdown()))
	case "json":
		payload, err := d.JSON()
		if err != nil {
			return err
		}
		return writeOutput(*output, append(payload, '\n'))
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func versionCommand(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	short := fs.Bool("short", false, "Print only the version number")
	if help, err := parseFlags(fs, args, nil); help || err != nil {
		return err
	}

	v, meta := resolveVersion()
	if *short {
		fmt.Println(v)
		return nil
	}
	if meta != "" {
		fmt.Printf("queryguard %s (%s)\n", v, meta)
	} else {
		fmt.Printf("queryguard %s\n", v)
	}
	return nil
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		short := commit
		if len(short) > 12 {
			short = short[:12]
		}
		if dirty {
			short += "*"
		}
		details = append(details, fmt.Sprintf("commit %s", short))
	}
	if buildTime != "" {
		details = append(details, fmt.Sprintf("built %s", buildTime))
	}
	return v, strings.Join(details, ", ")
}

func loadPlan(path string) (*model.Explain, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return parser.ParseJSON(file)
}

func loadStats(path string) (model.TableStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return parser.ParseTableStats(file)
}

func indentJSON(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indent json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
