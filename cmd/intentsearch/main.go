// Package main is the IntentSearch CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Skynet843/IntentSearch/internal/cli"
	"github.com/Skynet843/IntentSearch/internal/config"
	"github.com/Skynet843/IntentSearch/internal/embedding"
	"github.com/Skynet843/IntentSearch/internal/idmap"
	"github.com/Skynet843/IntentSearch/internal/ingest"
	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/rerank"
	"github.com/Skynet843/IntentSearch/internal/retrieval"
	"github.com/Skynet843/IntentSearch/internal/server"
	"github.com/Skynet843/IntentSearch/internal/store"
	"github.com/Skynet843/IntentSearch/internal/textcache"
	"github.com/Skynet843/IntentSearch/internal/vector"
	"github.com/Skynet843/IntentSearch/internal/watcher"
	"github.com/Skynet843/IntentSearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/intentsearch/config.yaml"

// loadConfig loads config from path. When path is the default and ./config.yaml exists,
// that file is used instead so the binary can be run from a project directory.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "status":
		runStatus()
	case "reload":
		runReload()
	case "version", "--version", "-v":
		fmt.Printf("intentsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	engine, err := initializeEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	defer engine.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var inbox *watcher.Watcher
	if len(cfg.Ingest.Directories) > 0 {
		inbox, err = startInbox(watchCtx, cfg, engine, logger)
		if err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(engine, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if inbox != nil {
		inbox.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// startInbox watches the ingest directories and imports every matching file once it
// settles. Imported files are renamed with a .done suffix, failed ones with .failed.
func startInbox(ctx context.Context, cfg *config.Config, engine *retrieval.Engine, logger *zap.Logger) (*watcher.Watcher, error) {
	importer := ingest.NewImporter(engine, cfg.Ingest.BatchSize,
		ingest.WithLogger(logger),
		ingest.WithSkipExisting(cfg.Ingest.SkipExistingOrDefault()),
	)
	timeout := time.Duration(cfg.Ingest.TimeoutSecs) * time.Second
	onFile := func(path string) {
		// A file can be handed over twice (create + sync); the first pass renames it.
		if _, err := os.Stat(path); err != nil {
			return
		}
		importCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, importErr := importer.ImportFile(importCtx, path)
		if importErr != nil {
			logger.Warn("inbox import failed", zap.String("path", path), zap.Error(importErr))
		}
		if renamed, err := watcher.MarkProcessed(path, importErr == nil); err != nil {
			logger.Warn("inbox rename failed", zap.String("path", path), zap.Error(err))
		} else {
			logger.Debug("inbox file processed", zap.String("path", renamed))
		}
	}
	w, err := watcher.NewWatcher(cfg.Ingest.Directories, cfg.Ingest.Patterns, onFile, watcher.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	w.SyncExistingFiles()
	logger.Info("inbox watcher started", zap.Strings("directories", w.Directories()))
	return w, nil
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: intentsearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  intentsearch search waterproof hiking boots
  intentsearch search --top-k 5 --scores "gift for a coffee lover"
  intentsearch search --rerank=false --output compact yoga mat
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// rerankOverride returns nil when the flag was not given, so the configured default applies.
func rerankOverride(fs *flag.FlagSet, value bool) *bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "rerank" {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &value
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the snapshot directly)")
	topK := fs.Int("top-k", 0, "number of results (0 = configured default)")
	withScores := fs.Bool("scores", false, "include similarity and rerank scores")
	rerankFlag := fs.Bool("rerank", true, "apply the cross-encoder reranker (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact (one id per line) or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Query:      queryStr,
		TopK:       *topK,
		WithScores: *withScores,
		Rerank:     rerankOverride(fs, *rerankFlag),
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = newAPIClient(*serverURL).Search(context.Background(), searchQuery)
	} else {
		response, err = withDirectEngine(*configPath, func(ctx context.Context, engine *retrieval.Engine) (*models.SearchResponse, error) {
			return engine.Search(ctx, searchQuery)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the snapshot directly)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var stats *retrieval.Stats
	if *serverURL != "" {
		stats, err = newAPIClient(*serverURL).Status(context.Background())
	} else {
		stats, err = withDirectEngine(*configPath, func(_ context.Context, engine *retrieval.Engine) (*retrieval.Stats, error) {
			s := engine.Stats()
			return &s, nil
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStats(os.Stdout, *stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReload() {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	stats, err := newAPIClient(*serverURL).Reload(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reloaded %d products\n", stats.Products)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "append through a running server instead of opening the snapshot")
	batchSize := fs.Int("batch-size", 0, "products per append batch (0 = configured default)")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Printf("Usage: intentsearch index [flags] <file.jsonl|file.csv|file.xlsx>\n")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	products, err := ingest.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	var target ingest.Appender
	skipExisting := cfg.Ingest.SkipExistingOrDefault()
	if *serverURL != "" {
		target = newAPIClient(*serverURL)
		// The server rejects already-indexed ids; there is no lookup endpoint to pre-filter.
		skipExisting = false
	} else {
		engine, err := initializeEngine(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer engine.Close()
		target = engine
	}

	size := cfg.Ingest.BatchSize
	if *batchSize > 0 {
		size = *batchSize
	}
	opts := []ingest.ImporterOption{ingest.WithLogger(logger), ingest.WithSkipExisting(skipExisting)}
	var bar *progressbar.ProgressBar
	if !*noProgress {
		bar = newProgressBar(len(products))
		opts = append(opts, ingest.WithProgress(func(appended int) { _ = bar.Add(appended) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Ingest.TimeoutSecs)*time.Second)
	defer cancel()
	stats, err := ingest.NewImporter(target, size, opts...).Import(ctx, products)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		fmt.Printf("Import failed after %d products: %v\n", stats.Appended, err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d products from %s (%d read, %d skipped, %d batches)\n",
		stats.Appended, path, stats.Read, stats.Skipped, stats.Batches)
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// withDirectEngine opens the snapshot named by the config at path, runs fn and closes the engine.
func withDirectEngine[T any](path string, fn func(context.Context, *retrieval.Engine) (T, error)) (T, error) {
	var zero T
	cfg, _, err := loadConfig(path)
	if err != nil {
		return zero, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return zero, fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	engine, err := initializeEngine(cfg, logger)
	if err != nil {
		return zero, err
	}
	defer engine.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Search.TimeoutSecs)*time.Second)
	defer cancel()
	return fn(ctx, engine)
}

// initializeEngine builds the embedders, reranker, index and store described by cfg and
// loads the persisted snapshot.
// newEmbedder is replaced in tests to observe embedder lifetimes.
var newEmbedder = embedding.New

func initializeEngine(cfg *config.Config, logger *zap.Logger) (_ *retrieval.Engine, err error) {
	// Components opened so far; the engine owns them once it is built.
	var opened []io.Closer
	defer func() {
		if err != nil {
			for i := len(opened) - 1; i >= 0; i-- {
				_ = opened[i].Close()
			}
		}
	}()

	dims := cfg.Embedding.Dimensions
	docEmb, err := newEmbedder(cfg.Embedding.Document, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document embedder: %w", err)
	}
	opened = append(opened, docEmb)
	queryEmb, err := newEmbedder(cfg.Embedding.Query, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize query embedder: %w", err)
	}
	opened = append(opened, queryEmb)

	var opts []retrieval.EngineOption
	opts = append(opts, retrieval.WithLogger(logger))
	reranker, rerankErr := rerank.New(cfg.Rerank)
	switch {
	case rerankErr != nil:
		logger.Warn("reranker unavailable; results will use embedding order",
			zap.String("provider", cfg.Rerank.Provider), zap.Error(rerankErr))
	case reranker != nil:
		opts = append(opts, retrieval.WithReranker(reranker))
		opened = append(opened, reranker)
	}

	index, err := vector.NewVectorIndex(cfg.Search.IndexType, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	opened = append(opened, index)
	logger.Debug("vector index initialized",
		zap.String("type", index.Type()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))
	st, err := store.New(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	opened = append(opened, st)

	engine, err := retrieval.NewEngine(index, idmap.New(), textcache.New(), st, docEmb, queryEmb, &cfg.Search, opts...)
	if err != nil {
		return nil, err
	}
	opened = nil
	if err := engine.Open(context.Background()); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	logger.Info("engine initialized",
		zap.String("document_model", cfg.Embedding.Document.Model),
		zap.String("query_model", cfg.Embedding.Query.Model),
		zap.String("store", st.Type()),
		zap.Int("dimensions", dims),
		zap.Int("products", engine.Size()),
	)
	return engine, nil
}

func printUsage() {
	fmt.Println(`intentsearch - Semantic product search with cross-encoder reranking

Usage:
  intentsearch server [flags]           Start the HTTP server (and the inbox watcher)
  intentsearch search [flags] <query>   Search products
  intentsearch index [flags] <file>     Bulk import products from .jsonl, .csv or .xlsx
  intentsearch status [flags]           Show index and store status
  intentsearch reload [flags]           Ask a running server to reload its snapshot
  intentsearch version                  Show version
  intentsearch help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/intentsearch/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the snapshot directly.
  --top-k int        Number of results (default from config)
  --scores           Include similarity and rerank scores
  --rerank           Apply the reranker (default from config)
  --output string    Output format: text, compact or json (default: text)

Index Flags:
  --config string    Config file path
  --server string    Append through a running server
  --batch-size int   Products per append batch
  --no-progress      Disable the progress bar

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --output string    Output format: text, compact or json (default: text)

Examples:
  intentsearch server
  intentsearch index products.jsonl
  intentsearch search "running shoes for flat feet"
  intentsearch search --output json --scores "standing desk"
  intentsearch status --output json`)
}
