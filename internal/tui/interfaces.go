package tui

import (
	"context"
	"fmt"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"
)

// TurnQuerier runs one conversational turn for the TUI chat screen.
type TurnQuerier interface {
	HandleTurn(ctx context.Context, sessionKey, text string) (service.TurnResult, error)
}

// RunQuerier provides persisted backtest run history to the TUI.
type RunQuerier interface {
	ListRecent(ctx context.Context, limit int) ([]domain.BacktestRun, error)
}

// CatalogQuerier exposes the capability catalog to the TUI.
type CatalogQuerier interface {
	Indicators() []catalog.Entry
	Operators() []catalog.OperatorGroup
	Templates() []catalog.Template
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Chat     TurnQuerier
	Runs     RunQuerier
	Catalog  CatalogQuerier
	UserID   int64
	Username string
}

// SessionKey returns the conversation key for this SSH session. Keys are
// namespaced so SSH sessions never collide with web or Telegram sessions.
func (s Services) SessionKey() string {
	return fmt.Sprintf("ssh:%d", s.UserID)
}
