package bot

import (
	"strings"
	"testing"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	StartTelegramBot(nil, nil, nil, nil)
}

func TestSessionKeyIsPerChat(t *testing.T) {
	if sessionKey(42) == sessionKey(43) {
		t.Fatal("expected distinct session keys per chat")
	}
	if sessionKey(42) != "tg:42" {
		t.Fatalf("unexpected key %q", sessionKey(42))
	}
}

func TestFormatResultIncludesMetricsAndWarnings(t *testing.T) {
	turn := service.TurnResult{
		Kind: service.TurnCompleted,
		Result: &domain.BacktestResult{
			Ticker: "AAPL",
			Metrics: &domain.Metrics{
				TotalReturn: 42.5,
				CAGR:        7.1,
				MaxDrawdown: 18.2,
				SharpeRatio: 1.3,
				WinRate:     60,
				TotalTrades: 10,
			},
		},
		Warnings: []string{"unresolved reference \"MACD.macd\" treated as zero"},
	}

	out := formatResult(turn)
	for _, want := range []string{"AAPL", "42.50%", "7.10%", "18.20%", "1.30", "10 trades", "Warning:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("formatted result %q missing %q", out, want)
		}
	}
}

func TestFormatCatalogListsCapabilities(t *testing.T) {
	cat, err := catalog.New()
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	out := formatCatalog(cat)
	for _, want := range []string{"SMA", "RSI", "cross_above", "RSI_Reversal"} {
		if !strings.Contains(out, want) {
			t.Fatalf("catalog text missing %q", want)
		}
	}
}
