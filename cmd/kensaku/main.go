// Package main is the kensaku CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/hyperjump/kensaku/internal/backoff"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/fetcher"
	"github.com/hyperjump/kensaku/internal/ingest"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/store"
	"github.com/hyperjump/kensaku/internal/upstream"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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
	case "status":
		runStatus()
	case "refresh":
		runRefresh()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (per-request fetch and search details)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Upstream.BaseURL == "" {
		fmt.Println("upstream.base_url must be set in the config")
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
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Bool("debug", debugMode),
	)

	st := store.New()
	loader := buildLoader(cfg, st, logger)

	// Initial load runs in the background; queries return 503 until the
	// first generation is installed.
	loadCtx, loadCancel := context.WithCancel(context.Background())
	defer loadCancel()
	go func() {
		if err := loader.Refresh(loadCtx); err != nil {
			logger.Error("initial load failed", zap.Error(err))
		}
	}()

	srv := server.NewServer(search.NewEngine(), st, loader, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	loadCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildLoader wires the upstream client, fetcher, and pipeline from config.
func buildLoader(cfg *config.Config, st *store.Store, logger *zap.Logger) *ingest.Loader {
	client := upstream.NewHTTPClient(
		cfg.Upstream.BaseURL,
		cfg.Upstream.RequestTimeout.Std(),
		upstream.WithLogger(logger),
	)
	policy := backoff.Policy{
		RateLimitBase:    cfg.Backoff.RateLimitBase.Std(),
		TransientBase:    cfg.Backoff.TransientBase.Std(),
		Factor:           cfg.Backoff.Factor,
		MaxDelay:         cfg.Backoff.MaxDelay.Std(),
		TransientRetries: cfg.Backoff.TransientRetries,
		RateLimitRetries: cfg.Backoff.RateLimitRetries,
	}
	f := fetcher.New(
		client,
		policy,
		cfg.Upstream.PageSize,
		cfg.Upstream.MinInterval.Std(),
		cfg.Upstream.RequestTimeout.Std(),
		fetcher.WithLogger(logger),
	)
	pipeline := ingest.NewPipeline(
		f,
		cfg.Upstream.LoadTimeout.Std(),
		ingest.WithLogger(logger),
	)
	return ingest.NewLoader(pipeline, st, logger)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	skip := fs.Int("skip", 0, "number of matches to skip")
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku search [flags] <query>")
		os.Exit(1)
	}
	query := fs.Arg(0)

	u := fmt.Sprintf("%s/search?%s", *serverURL, url.Values{
		"q":     {query},
		"skip":  {strconv.Itoa(*skip)},
		"limit": {strconv.Itoa(*limit)},
	}.Encode())
	resp, err := http.Get(u)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var result models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("%d match(es), showing %d (skip %d, %.2fms)\n",
			result.Total, len(result.Items), result.Skip, result.QueryTime)
		for _, item := range result.Items {
			fmt.Printf("  [%s] %s: %s\n", item.ID, item.Author, utils.Truncate(item.Text, 120))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

func runRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/refresh", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		fmt.Fprintf(os.Stderr, "Refresh failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("Refresh started")
}

func printUsage() {
	fmt.Println(`kensaku - In-memory message search over a rate-limited upstream

Usage:
  kensaku server [flags]           Start the HTTP server (loads the dataset on startup)
  kensaku search [flags] <query>   Search messages via a running server
  kensaku status [flags]           Show dataset/load status
  kensaku refresh [flags]          Trigger a full dataset reload
  kensaku version                  Show version
  kensaku help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kensaku/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --skip int         Number of matches to skip (default: 0)
  --limit int        Number of results (default: 10)
  --output string    Output format: text or json (default: text)

Examples:
  kensaku server
  kensaku search "paris"
  kensaku search --skip 20 --limit 20 --output json "paris"
  kensaku status
  kensaku refresh`)
}
