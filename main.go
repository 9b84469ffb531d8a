package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"countrytimeline/internal/platform/config"
	"countrytimeline/internal/platform/logger"
	"countrytimeline/internal/render"
	"countrytimeline/internal/timeline"
	"countrytimeline/internal/visit"
)

// cliOptions are the command line arguments of a one-off render.
type cliOptions struct {
	visitsFile string
	birth      string
	outputFile string
	format     string
	today      string
}

func main() {
	// Parse command line arguments
	debugFlag := flag.Bool("debug", false, "Enable debug mode for verbose output")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of rendering a single chart")
	visitsFile := flag.String("visits", "", "CSV file with visited countries (required unless --serve)")
	birth := flag.String("birth", "", "Birth month as YYYY-MM (required unless --serve)")
	configFile := flag.String("config", "", "YAML configuration file (optional)")
	envFile := flag.String("env", ".env", "Environment file with COUNTRYTIMELINE_* overrides (optional)")
	outputFile := flag.String("output", "", "Output image filename (optional)")
	format := flag.String("format", "", "Output format: svg or png (optional)")
	today := flag.String("today", "", "Render as of this date, YYYY-MM-DD (optional)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		fmt.Fprintf(os.Stderr, "  --debug             Enable debug mode for verbose output\n")
		fmt.Fprintf(os.Stderr, "  --serve             Run the HTTP API instead of rendering a single chart\n")
		fmt.Fprintf(os.Stderr, "  --visits <file>     CSV file with visited countries (required unless --serve)\n")
		fmt.Fprintf(os.Stderr, "  --birth <YYYY-MM>   Birth month (required unless --serve)\n")
		fmt.Fprintf(os.Stderr, "  --config <file>     YAML configuration file (optional)\n")
		fmt.Fprintf(os.Stderr, "  --env <file>        Environment file, default .env (optional)\n")
		fmt.Fprintf(os.Stderr, "  --output <file>     Output image filename (optional)\n")
		fmt.Fprintf(os.Stderr, "  --format <svg|png>  Output format (optional)\n")
		fmt.Fprintf(os.Stderr, "  --today <date>      Render as of YYYY-MM-DD instead of today (optional)\n")
		fmt.Fprintf(os.Stderr, "\nThe CSV file needs a country column (alpha-2 code) and either an age column\n")
		fmt.Fprintf(os.Stderr, "or visit_year/visit_month columns for the first visit.\n")
		fmt.Fprintf(os.Stderr, "If no config file is specified, default settings will be used.\n")
		fmt.Fprintf(os.Stderr, "If no output file is specified, the CSV filename with the format's extension will be used.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --visits visits.csv --birth 1990-01 --format png\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --serve --config config.yaml\n", os.Args[0])
	}

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.ApplyEnv(&cfg, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format, *debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
	log.Debug("configuration loaded",
		"catalog", cfg.Catalog.Provider,
		"flag_cache_dir", cfg.Flags.CacheDir,
		"redis", cfg.Flags.RedisURL != "",
		"format", cfg.Chart.Format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveFlag {
		if err := serve(ctx, cfg, log); err != nil {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	// Validate required arguments
	if *visitsFile == "" || *birth == "" {
		fmt.Fprintf(os.Stderr, "Error: --visits and --birth are required. Use --serve to run the HTTP API.\n\n")
		flag.Usage()
		os.Exit(1)
	}

	opts := cliOptions{
		visitsFile: *visitsFile,
		birth:      *birth,
		outputFile: *outputFile,
		format:     *format,
		today:      *today,
	}
	if err := run(ctx, opts, cfg, log, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run renders one chart from a CSV file of visits.
func run(ctx context.Context, opts cliOptions, cfg config.Config, log *slog.Logger, stdout, stderr io.Writer) error {
	if opts.format == "" {
		opts.format = cfg.Chart.Format
	}
	format, err := render.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	birth, err := visit.ParseYearMonth(opts.birth)
	if err != nil {
		return fmt.Errorf("invalid --birth: %w", err)
	}
	now, err := parseToday(opts.today)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.visitsFile)
	if err != nil {
		return fmt.Errorf("error opening CSV file: %w", err)
	}
	selections, err := visit.ParseCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("error parsing CSV file: %w", err)
	}
	log.Debug("parsed visits", "file", opts.visitsFile, "rows", len(selections))

	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	resolved, err := visit.Resolve(visit.Request{Birth: birth, Visits: selections}, a.catalog, now)
	if errors.Is(err, timeline.ErrNothingToRender) {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Loaded %d countries from %s\n", len(resolved.Records), opts.visitsFile)

	layout, err := a.renderer.Render(ctx, resolved.Records, resolved.CurrentAge)
	if err != nil {
		return err
	}
	for _, w := range layout.Warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w.Message)
	}

	body, err := render.Encode(format, layout, render.NewStyle(cfg.Chart))
	if err != nil {
		return err
	}

	// Determine output filename
	outputPath := getOutputFilename(opts.visitsFile, opts.outputFile, format)
	if err := os.WriteFile(outputPath, body, 0644); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}

	fmt.Fprintln(stdout, layout.Summary)
	fmt.Fprintf(stdout, "Timeline %s generated successfully: %s\n", strings.ToUpper(string(format)), outputPath)
	return nil
}

// parseToday parses the --today override, defaulting to the current time.
func parseToday(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --today: unable to parse date '%s': %w", s, err)
	}
	return t, nil
}

// getOutputFilename determines the output filename for the chart.
// If outputFile is provided and not empty, it returns that filename.
// Otherwise, it derives the filename from the CSV file by replacing
// the extension with the format's (e.g., "visits.csv" becomes "visits.svg").
func getOutputFilename(csvFile, outputFile string, format render.Format) string {
	if outputFile != "" {
		return outputFile
	}

	// Use CSV filename with the format's extension
	base := filepath.Base(csvFile)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + format.Extension()
}
