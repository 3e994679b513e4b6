package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/askbridge/askbridge/internal/agent"
	"github.com/askbridge/askbridge/internal/api"
	"github.com/askbridge/askbridge/internal/config"
	"github.com/askbridge/askbridge/internal/llm"
	"github.com/askbridge/askbridge/internal/memory"
	"github.com/askbridge/askbridge/internal/ratelimit"
	"github.com/askbridge/askbridge/internal/retrieval"
	"github.com/askbridge/askbridge/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// app holds the wired service and its closable resources.
type app struct {
	cfg   config.Config
	store *storage.Store
	sales *storage.SalesDB
	mem   *memory.Store
	orch  *agent.Orchestrator
}

func buildApp(cfg config.Config) (*app, error) {
	client, err := llm.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	if _, err := os.Stat(cfg.Storage.SalesDBPath); err != nil {
		store.Close()
		return nil, fmt.Errorf("sales database not found at %s; run `askbridge load-sales` first", cfg.Storage.SalesDBPath)
	}
	sales, err := storage.OpenSales(cfg.Storage.SalesDBPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening sales database: %w", err)
	}

	embedder := retrieval.NewEmbedder(client)
	vectors := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectors)

	limiter := ratelimit.New(store, cfg.RateLimit.DailyLimit, cfg.RateLimit.Enabled, cfg.RateLimit.FailOpen)
	mem := memory.NewStore(cfg.Memory.ParsedTTL(), cfg.Memory.MaxTurns)

	structured := agent.NewStructuredPipeline(client, sales, cfg.Query.MaxRows)
	docs := agent.NewDocsPipeline(client, retriever, cfg.Retrieval.TopK)
	hybrid := agent.NewHybridPipeline(client, structured, docs)
	orch := agent.NewOrchestrator(limiter, mem, agent.NewRouter(client), structured, docs, hybrid)

	return &app{
		cfg:   cfg,
		store: store,
		sales: sales,
		mem:   mem,
		orch:  orch,
	}, nil
}

func (a *app) Close() {
	if err := a.sales.Close(); err != nil {
		slog.Warn("closing sales database", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

// evictLoop drops expired sessions periodically so memory does not grow with
// abandoned conversations.
func (a *app) evictLoop(ctx context.Context) {
	interval := a.cfg.Memory.ParsedTTL()
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.mem.EvictExpired(); n > 0 {
				slog.Debug("expired sessions evicted", "count", n)
			}
		}
	}
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "askbridge version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.evictLoop(ctx)

	handler := api.NewHandler(api.Deps{
		Orchestrator:   a.orch,
		Usage:          a.store,
		APIKey:         cfg.Server.APIKey,
		AdminToken:     cfg.Server.AdminToken,
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigins),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("askbridge listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Stdout carries the MCP transport, so logs must stay on stderr.
	setupLogging(cfg.Log.Level)

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.evictLoop(ctx)

	stdioSrv := server.NewStdioServer(api.NewMCPServer(a.orch, version))
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
