package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"backtestgpt/internal/backtest"
	"backtestgpt/internal/cache"
	"backtestgpt/internal/catalog"
	"backtestgpt/internal/config"
	"backtestgpt/internal/db"
	"backtestgpt/internal/extract"
	"backtestgpt/internal/marketdata"
	mcpserver "backtestgpt/internal/mcp"
	"backtestgpt/internal/repository"
	"backtestgpt/internal/service"
	"backtestgpt/internal/validator"
	"backtestgpt/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newCatalogFunc          = catalog.New
	newMarketDataClientFunc = marketdata.NewClient
	newExtractorFunc        = func(tracer trace.Tracer, apiKey, model string) *extract.Extractor {
		return extract.NewExtractor(tracer, extract.NewOpenAIGenerator(apiKey, model))
	}
	newMCPServerFunc  = mcpserver.NewServer
	newMCPHandlerFunc = mcpserver.NewHTTPTransportHandler

	runStdioFunc = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	cat, err := newCatalogFunc()
	if err != nil {
		log.Fatalf("failed to build catalog: %v", err)
	}

	var runRecorder service.RunRecorder
	var runHistory mcpserver.RunHistoryAPI
	if db.Pool != nil {
		runRepo := repository.NewRunRepository(db.Pool, tracer)
		runRecorder = runRepo
		runHistory = runRepo
	}

	bars := marketdata.NewCachedBars(tracer, newMarketDataClientFunc(tracer, cfg.MarketDataURL), cache.Client)
	extractor := newExtractorFunc(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	tickers := validator.NewTickerValidator(tracer, bars, cache.Client)
	checker := validator.NewStrategyValidator(tracer, cat, tickers, extractor, cfg.DefaultTicker)
	runner := service.NewBacktestService(tracer, bars, backtest.NewEngine(), runRecorder)

	mcpSrv := newMCPServerFunc(tracer, cat, checker, runner, runHistory, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPTimeoutSecs) * time.Second,
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp http server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if !cfg.MCPHTTPEnabled {
		return fmt.Errorf("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRatePerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
