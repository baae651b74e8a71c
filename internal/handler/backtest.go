package handler

import (
	"net/http"
	"strconv"
	"strings"

	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type backtestRequest struct {
	Ticker      string                 `json:"ticker"`
	Indicators  []domain.IndicatorSpec `json:"indicators"`
	Entry       domain.RuleExpr        `json:"entry_conditions"`
	Exit        domain.RuleExpr        `json:"exit_conditions"`
	Start       string                 `json:"start_date"`
	End         string                 `json:"end_date"`
	InitialCash float64                `json:"initial_cash"`
	Fees        float64                `json:"fees"`
}

// PostBacktest godoc
// @Summary      Run a structured backtest
// @Description  Executes a fully specified strategy without the conversational flow
// @Tags         backtest
// @Accept       json
// @Produce      json
// @Param        request  body  backtestRequest  true  "Strategy and run window"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/backtest [post]
func (h *Handler) PostBacktest(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-backtest")
	defer span.End()

	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if len(req.Indicators) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "indicators are required"})
		return
	}
	if req.Entry.IsZero() || req.Exit.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry_conditions and exit_conditions are required"})
		return
	}

	spec := domain.StrategySpec{
		Ticker:     domain.NormalizeTicker(req.Ticker),
		Indicators: req.Indicators,
		Entry:      req.Entry,
		Exit:       req.Exit,
	}
	span.SetAttributes(attribute.String("ticker", spec.Ticker))

	result, warnings, err := h.backtestService.Run(ctx, service.RunRequest{
		Spec:        spec,
		Start:       req.Start,
		End:         req.End,
		InitialCash: req.InitialCash,
		Fees:        req.Fees,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := gin.H{
		"ticker":     result.Ticker,
		"metrics":    result.Metrics,
		"chart_data": result.ChartData,
	}
	if len(warnings) > 0 {
		payload["warnings"] = warnings
	}
	c.JSON(http.StatusOK, payload)
}

// GetCatalog godoc
// @Summary      List supported indicators, operators and templates
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/catalog [get]
func (h *Handler) GetCatalog(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-catalog")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{
		"indicators": h.catalog.Indicators(),
		"operators":  h.catalog.Operators(),
		"templates":  h.catalog.Templates(),
	})
}

// GetRuns godoc
// @Summary      List recent persisted backtest runs
// @Tags         backtest
// @Produce      json
// @Param        limit  query  int  false  "Number of runs (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/runs [get]
func (h *Handler) GetRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-runs")
	defer span.End()

	limit := 20
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRecent(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
