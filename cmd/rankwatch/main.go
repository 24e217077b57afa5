package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-rank-watch/config"
	"github.com/aluiziolira/go-rank-watch/diff"
	"github.com/aluiziolira/go-rank-watch/models"
	"github.com/aluiziolira/go-rank-watch/ranking"
	"github.com/aluiziolira/go-rank-watch/snapshot"
	"github.com/aluiziolira/go-rank-watch/upload"
)

func main() {
	// .env is a developer convenience; absence is normal under cron or CI.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()

	appIDDefault := defaultCfg.AppID
	if value, ok := config.EnvString("APP_ID"); ok {
		appIDDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("RANKWATCH_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid RANKWATCH_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	dataDirDefault := defaultCfg.DataDir
	if value, ok := config.EnvString("RANKWATCH_DATA_DIR"); ok {
		dataDirDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("RANKWATCH_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	appID := flag.String("app-id", appIDDefault, "Ranking API application ID (env APP_ID)")
	maxPages := flag.Int("pages", pagesDefault, "Maximum ranking pages to fetch")
	pageSize := flag.Int("page-size", defaultCfg.PageSize, "Items requested per page")
	genreID := flag.Int("genre", defaultCfg.GenreID, "Ranking genre ID")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Ranking API endpoint")
	minItems := flag.Int("min-items", defaultCfg.MinItems, "Minimum items for a snapshot to be accepted")
	dataDir := flag.String("data-dir", dataDirDefault, "Directory for snapshots and change reports")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "HTTP request timeout")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per page")
	retryBackoffMs := flag.Int("retry-backoff", 500, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 5000, "Maximum retry backoff (milliseconds)")
	fetchInterval := flag.Duration("fetch-interval", defaultCfg.FetchInterval, "Pause between page requests")
	surgeThreshold := flag.Int("surge-threshold", defaultCfg.SurgeThreshold, "Rank move magnitude reported as a surge")
	fetchOnly := flag.Bool("fetch-only", false, "Fetch and persist a snapshot without diffing")
	diffOnly := flag.Bool("diff-only", false, "Diff the recorded snapshots without fetching")
	uploadEnabled := flag.Bool("upload", false, "Upload the snapshot to the configured object store")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *fetchOnly && *diffOnly {
		slog.Error("-fetch-only and -diff-only are mutually exclusive")
		os.Exit(1)
	}

	cfg := buildConfigFromFlags(*baseURL, *appID, *genreID, *maxPages, *pageSize, *minItems,
		*timeout, *maxRetries, *retryBackoffMs, *retryBackoffMaxMs, *fetchInterval,
		*dataDir, *surgeThreshold, *metricsAddr, *verbose)
	if err := applyUploadEnv(cfg, *uploadEnabled); err != nil {
		slog.Error("invalid upload configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if !*diffOnly {
		if err := cfg.RequireAppID(); err != nil {
			slog.Error("invalid configuration", slog.Any("error", err))
			os.Exit(1)
		}
	}

	slog.Info("starting ranking run",
		slog.Int("genre", cfg.GenreID),
		slog.Int("pages", cfg.MaxPages),
		slog.Bool("fetch_only", *fetchOnly),
		slog.Bool("diff_only", *diffOnly),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current step")
	}()

	metrics := ranking.NewMetrics()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()
	summary, err := run(ctx, cfg, metrics, *fetchOnly, *diffOnly)
	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(summary, time.Since(startTime))
}

// runSummary collects everything the end-of-run report prints.
type runSummary struct {
	snapshotPath string
	items        int
	fetch        *models.FetchResult
	report       *diff.Report
	changesCSV   string
	changesJSON  string
	uploaded     bool
}

// run executes one fetch-and-diff cycle. The manifest rotation at the end is
// the commit point: it happens only after the snapshot and both change
// reports are safely on disk, so a crash mid-run never moves the baseline.
func run(ctx context.Context, cfg *config.Config, metrics *ranking.Metrics, fetchOnly, diffOnly bool) (*runSummary, error) {
	store, err := snapshot.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	summary := &runSummary{}

	var (
		curr     *models.Snapshot
		currPath string
	)
	if diffOnly {
		path, ok, err := store.Resolve(snapshot.ManifestLatest)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no snapshot recorded yet; run a fetch first")
		}
		currPath = path
		if curr, err = store.Load(path); err != nil {
			return nil, err
		}
	} else {
		client := ranking.NewClient(cfg, metrics)
		fetcher := ranking.NewFetcher(cfg, client, metrics)

		snap, result, err := fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		summary.fetch = result

		curr = snap
		if currPath, err = store.Write(snap); err != nil {
			return nil, err
		}
		slog.Info("snapshot written",
			slog.String("path", currPath),
			slog.Int("items", snap.Len()),
			slog.Int("duplicates_dropped", result.DuplicateCount),
		)
	}
	summary.snapshotPath = currPath
	summary.items = curr.Len()

	if !fetchOnly {
		report, err := detectChanges(store, cfg, curr, currPath)
		if err != nil {
			return nil, err
		}
		for _, kind := range diff.Kinds() {
			metrics.AddChanges(string(kind), report.CountByKind(kind))
		}

		date := curr.CapturedAt
		if date.IsZero() {
			date = time.Now().UTC()
		}
		changesDir := filepath.Join(cfg.DataDir, "changes")
		summary.changesCSV = filepath.Join(changesDir, fmt.Sprintf("changes_%s.csv", date.UTC().Format("2006-01-02")))
		summary.changesJSON = filepath.Join(changesDir, fmt.Sprintf("changes_%s.json", date.UTC().Format("2006-01-02")))
		if err := diff.WriteCSV(summary.changesCSV, report); err != nil {
			return nil, err
		}
		if err := diff.WriteJSON(summary.changesJSON, report); err != nil {
			return nil, err
		}
		summary.report = report
	}

	if !diffOnly {
		if err := store.Rotate(currPath); err != nil {
			return nil, err
		}
		summary.uploaded = maybeUpload(ctx, cfg, currPath)
	}

	return summary, nil
}

// detectChanges loads the baseline the manifest points at and compares the
// current snapshot against it. A missing or unreadable baseline downgrades
// to first-run semantics instead of failing.
func detectChanges(store *snapshot.Store, cfg *config.Config, curr *models.Snapshot, currPath string) (*diff.Report, error) {
	baselinePath, ok, err := store.Baseline(currPath)
	if err != nil {
		return nil, err
	}

	var prev *models.Snapshot
	var prevFile string
	if !ok {
		slog.Info("no baseline snapshot recorded, treating every item as new")
	} else if loaded, err := store.LoadBaseline(baselinePath); err != nil {
		var missing snapshot.BaselineMissingError
		if errors.As(err, &missing) {
			slog.Warn("baseline snapshot gone, treating every item as new",
				slog.String("path", baselinePath))
		} else {
			slog.Warn("baseline unusable, treating every item as new",
				slog.String("path", baselinePath),
				slog.Any("error", err),
			)
		}
	} else {
		prev = loaded
		prevFile = filepath.Base(baselinePath)
	}

	report := diff.Compare(prev, curr, cfg.SurgeThreshold)
	report.CurrentFile = filepath.Base(currPath)
	report.PreviousFile = prevFile

	slog.Info("changes detected",
		slog.String("baseline", prevFile),
		slog.Int("new", report.Summary.NewCount),
		slog.Int("dropped", report.Summary.DroppedCount),
		slog.Int("risen", report.Summary.RisenCount),
		slog.Int("fallen", report.Summary.FallenCount),
		slog.Int("surges", len(report.Summary.Surges)),
	)
	return report, nil
}

// maybeUpload mirrors the snapshot to the object store when configured.
// Upload failures are logged and swallowed: the local file is the source of
// truth and the run still succeeds.
func maybeUpload(ctx context.Context, cfg *config.Config, path string) bool {
	if !cfg.Upload.Enabled {
		return false
	}

	uploader, err := upload.New(cfg.Upload)
	if err != nil {
		slog.Warn("object store upload skipped", slog.Any("error", err))
		return false
	}
	if err := uploader.UploadSnapshot(ctx, path); err != nil {
		slog.Warn("object store upload failed, keeping local snapshot only", slog.Any("error", err))
		return false
	}

	slog.Info("snapshot uploaded",
		slog.String("bucket", cfg.Upload.Bucket),
		slog.String("alias", cfg.Upload.LatestAlias),
	)
	return true
}

func buildConfigFromFlags(baseURL, appID string, genreID, maxPages, pageSize, minItems int,
	timeout time.Duration, maxRetries, retryBackoffMs, retryBackoffMaxMs int,
	fetchInterval time.Duration, dataDir string, surgeThreshold int,
	metricsAddr string, verbose bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.AppID = appID
	cfg.GenreID = genreID
	cfg.MaxPages = maxPages
	cfg.PageSize = pageSize
	cfg.MinItems = minItems
	cfg.Timeout = timeout
	cfg.MaxRetries = maxRetries
	cfg.RetryBackoff = time.Duration(retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(retryBackoffMaxMs) * time.Millisecond
	cfg.FetchInterval = fetchInterval
	cfg.DataDir = dataDir
	cfg.SurgeThreshold = surgeThreshold
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose
	return cfg
}

// applyUploadEnv fills the upload block from the S3 environment variables.
// The upload is enabled by the -upload flag or automatically when the whole
// credential block is present.
func applyUploadEnv(cfg *config.Config, flagEnabled bool) error {
	if value, ok := config.EnvString("RANKWATCH_S3_ENDPOINT"); ok {
		cfg.Upload.Endpoint = value
	}
	if value, ok := config.EnvString("RANKWATCH_S3_BUCKET"); ok {
		cfg.Upload.Bucket = value
	}
	if value, ok := config.EnvString("RANKWATCH_S3_PREFIX"); ok {
		cfg.Upload.Prefix = value
	}
	if value, ok := config.EnvString("RANKWATCH_S3_ACCESS_KEY"); ok {
		cfg.Upload.AccessKey = value
	}
	if value, ok := config.EnvString("RANKWATCH_S3_SECRET_KEY"); ok {
		cfg.Upload.SecretKey = value
	}
	if value, ok := config.EnvString("RANKWATCH_S3_REGION"); ok {
		cfg.Upload.Region = value
	}
	if value, ok := config.EnvString("RANKWATCH_S3_ALIAS"); ok {
		cfg.Upload.LatestAlias = value
	}
	if value, ok, err := config.EnvBool("RANKWATCH_S3_USE_SSL"); err != nil {
		return err
	} else if ok {
		cfg.Upload.UseSSL = value
	}

	envComplete := cfg.Upload.Endpoint != "" && cfg.Upload.Bucket != "" &&
		cfg.Upload.AccessKey != "" && cfg.Upload.SecretKey != ""
	cfg.Upload.Enabled = flagEnabled || envComplete
	return nil
}

func printSummary(summary *runSummary, duration time.Duration) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Ranking run complete")

	fmt.Printf("  Items:         %d\n", summary.items)
	if fetch := summary.fetch; fetch != nil {
		fmt.Printf("  Pages:         %d\n", fetch.PageCount)
		fmt.Printf("  Requests:      %d\n", fetch.RequestCount)
		fmt.Printf("  Retries:       %d\n", fetch.RetryCount)
		fmt.Printf("  Duplicates:    %d\n", fetch.DuplicateCount)
		if fetch.ErrorCount > 0 {
			fmt.Printf("  Skipped:       %d\n", fetch.ErrorCount)
		}
	}
	if report := summary.report; report != nil {
		s := report.Summary
		if report.BaselineMissing {
			fmt.Println("  Baseline:      none (first run)")
		} else {
			fmt.Printf("  Baseline:      %s\n", report.PreviousFile)
		}
		fmt.Printf("  Changes:       NEW=%d DROPPED=%d RISEN=%d FALLEN=%d UNCHANGED=%d\n",
			s.NewCount, s.DroppedCount, s.RisenCount, s.FallenCount, s.UnchangedCount)
		fmt.Printf("  Surges:        %d\n", len(s.Surges))
		fmt.Printf("  Turnover:      %.1f%%\n", s.TurnoverRatePct)
		fmt.Printf("  Price change:  %+.1f%%\n", s.PriceChangePct)
		fmt.Printf("  Changes CSV:   %s\n", summary.changesCSV)
		fmt.Printf("  Changes JSON:  %s\n", summary.changesJSON)
	}
	fmt.Printf("  Snapshot:      %s\n", summary.snapshotPath)
	if summary.uploaded {
		fmt.Println("  Uploaded:      yes")
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
