package handler

import (
	"log"
	"net/http"
	"strings"

	"backtestgpt/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// PostChat godoc
// @Summary      Send one conversational message
// @Description  Accumulates strategy fragments across turns; returns a follow-up question, a backtest result, or an error payload
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request  body  chatRequest  true  "Message and optional session id"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/chat [post]
func (h *Handler) PostChat(c *gin.Context) {
	if h.chatService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-chat")
	defer span.End()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	sessionKey := strings.TrimSpace(req.SessionID)
	if sessionKey == "" {
		sessionKey = "default"
	}
	span.SetAttributes(attribute.String("session", sessionKey))

	turn, err := h.chatService.HandleTurn(ctx, sessionKey, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, turnPayload(turn))
}

// ChatWebSocket godoc
// @Summary      Conversational chat over a websocket
// @Description  Each text frame is one user turn; each reply frame is the same JSON payload POST /api/chat returns
// @Tags         chat
// @Param        session_id  query  string  false  "Session id, defaults to the connection's remote address"
// @Router       /api/chat/ws [get]
func (h *Handler) ChatWebSocket(c *gin.Context) {
	if h.chatService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sessionKey := strings.TrimSpace(c.Query("session_id"))
	if sessionKey == "" {
		sessionKey = c.Request.RemoteAddr
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		text := strings.TrimSpace(string(message))
		if text == "" {
			continue
		}

		turn, err := h.chatService.HandleTurn(c.Request.Context(), sessionKey, text)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": err.Error()})
			continue
		}
		if err := conn.WriteJSON(turnPayload(turn)); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

// turnPayload shapes a turn into one of the three wire payloads.
func turnPayload(turn service.TurnResult) gin.H {
	switch turn.Kind {
	case service.TurnClarification:
		payload := gin.H{
			"conversation":        true,
			"needs_clarification": true,
			"message":             turn.Message,
		}
		if len(turn.Missing) > 0 {
			payload["missing_components"] = turn.Missing
		}
		return payload
	case service.TurnCompleted:
		payload := gin.H{
			"message":    turn.Message,
			"ticker":     turn.Result.Ticker,
			"metrics":    turn.Result.Metrics,
			"chart_data": turn.Result.ChartData,
		}
		if len(turn.Warnings) > 0 {
			payload["warnings"] = turn.Warnings
		}
		return payload
	default:
		return gin.H{"error": turn.Message}
	}
}
