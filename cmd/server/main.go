package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"backtestgpt/internal/backtest"
	"backtestgpt/internal/bot"
	"backtestgpt/internal/cache"
	"backtestgpt/internal/catalog"
	"backtestgpt/internal/chart"
	"backtestgpt/internal/config"
	"backtestgpt/internal/conversation"
	"backtestgpt/internal/db"
	"backtestgpt/internal/extract"
	"backtestgpt/internal/handler"
	"backtestgpt/internal/job"
	"backtestgpt/internal/marketdata"
	"backtestgpt/internal/repository"
	"backtestgpt/internal/service"
	"backtestgpt/internal/sshserver"
	"backtestgpt/internal/validator"
	"backtestgpt/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "backtestgpt/docs"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	migrateFunc      = db.Migrate

	newCatalogFunc           = catalog.New
	newMarketDataClientFunc  = marketdata.NewClient
	newTickerValidatorFunc   = validator.NewTickerValidator
	newStrategyValidatorFunc = validator.NewStrategyValidator
	newExtractorFunc         = func(tracer trace.Tracer, apiKey, model string) *extract.Extractor {
		return extract.NewExtractor(tracer, extract.NewOpenAIGenerator(apiKey, model))
	}
	newBacktestServiceFunc = service.NewBacktestService
	newChatServiceFunc     = service.NewChatService
	newChartRendererFunc   = chart.NewRenderer
	newSweeperFunc         = job.NewSessionSweeper
	startSweeperFunc       = func(s *job.SessionSweeper, ctx context.Context) { go s.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newSSHServerFunc       = sshserver.New
	startSSHServerFunc     = func(s *sshserver.Server, ctx context.Context) {
		go func() {
			if err := s.Start(ctx); err != nil {
				log.Printf("ssh server failed: %v", err)
			}
		}()
	}
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           BacktestGPT API
// @version         1.0
// @description     Conversational strategy backtesting service.

// @host      localhost:8080
// @BasePath  /
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

	if db.Pool != nil {
		if err := migrateFunc(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	cat, err := newCatalogFunc()
	if err != nil {
		log.Fatalf("failed to build catalog: %v", err)
	}

	// Repositories are wired only when a database is configured; every
	// consumer treats them as optional.
	var recorder service.ConversationRecorder
	var runRecorder service.RunRecorder
	var runLister handler.RunLister
	var sshUsers sshserver.UserAuthenticator
	if db.Pool != nil {
		recorder = repository.NewConversationRepository(db.Pool, tracer)
		runRepo := repository.NewRunRepository(db.Pool, tracer)
		runRecorder = runRepo
		runLister = runRepo
		sshUsers = repository.NewSSHUserRepository(db.Pool, tracer)
	}

	bars := marketdata.NewCachedBars(tracer, newMarketDataClientFunc(tracer, cfg.MarketDataURL), cache.Client)
	extractor := newExtractorFunc(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)

	tickers := newTickerValidatorFunc(tracer, bars, cache.Client)
	checker := newStrategyValidatorFunc(tracer, cat, tickers, extractor, cfg.DefaultTicker)

	engine := backtest.NewEngine()
	backtestService := newBacktestServiceFunc(tracer, bars, engine, runRecorder)

	sessions := conversation.NewMemoryStore()
	chatService := newChatServiceFunc(tracer, sessions, extractor, checker, backtestService, recorder)

	sweeper := newSweeperFunc(tracer, sessions,
		time.Duration(cfg.SessionTTLMins)*time.Minute,
		time.Duration(cfg.SweepPollSecs)*time.Second,
	)
	startSweeperFunc(sweeper, ctx)

	renderer := newChartRendererFunc(cfg.ChartWidthPx, cfg.ChartHeightPx)
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(chatService, sessions, cat, renderer)

	if cfg.SSHEnabled {
		sshSrv, err := newSSHServerFunc(tracer, sshUsers, chatService, runLister, cat, sshserver.Config{
			Bind:        cfg.SSHBind,
			Port:        cfg.SSHPort,
			HostKeyPath: cfg.SSHHostKeyPath,
		})
		if err != nil {
			log.Fatalf("failed to start ssh server: %v", err)
		}
		startSSHServerFunc(sshSrv, ctx)
	}

	h := newHandlerFunc(tracer, chatService, backtestService, cat, runLister)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("backtestgpt"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddr(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func httpAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
