package handler

import (
	"context"
	"net/http"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// RunLister exposes recent persisted runs. nil when Postgres is absent.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.BacktestRun, error)
}

type Handler struct {
	tracer          trace.Tracer
	chatService     *service.ChatService
	backtestService *service.BacktestService
	catalog         *catalog.Catalog
	runs            RunLister
}

func New(
	tracer trace.Tracer,
	chatService *service.ChatService,
	backtestService *service.BacktestService,
	cat *catalog.Catalog,
	runs RunLister,
) *Handler {
	return &Handler{
		tracer:          tracer,
		chatService:     chatService,
		backtestService: backtestService,
		catalog:         cat,
		runs:            runs,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/api/chat", h.PostChat)
	r.GET("/api/chat/ws", h.ChatWebSocket)
	r.POST("/api/backtest", h.PostBacktest)
	r.GET("/api/catalog", h.GetCatalog)
	r.GET("/api/runs", h.GetRuns)
}

// Health godoc
// @Summary      Liveness check
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
