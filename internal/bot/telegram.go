package bot

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/conversation"
	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"

	tele "gopkg.in/telebot.v3"
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionKey, text string) (service.TurnResult, error)
}

type ChartRenderer interface {
	RenderEquityChart(result *domain.BacktestResult) ([]byte, error)
}

// StartTelegramBot wires chat turns to Telegram messages. Each chat maps to
// its own accumulation session.
func StartTelegramBot(chat TurnHandler, sessions conversation.Store, cat *catalog.Catalog, renderer ChartRenderer) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/catalog", func(c tele.Context) error {
		if cat == nil {
			return c.Send("Catalog unavailable")
		}
		return c.Send(formatCatalog(cat))
	})

	b.Handle("/reset", func(c tele.Context) error {
		if sessions == nil || c.Chat() == nil {
			return c.Send("Nothing to reset")
		}
		session, err := sessions.Get(context.Background(), sessionKey(c.Chat().ID))
		if err != nil {
			return c.Send("Nothing to reset")
		}
		session.Lock()
		session.Draft = conversation.Draft{Stage: conversation.StageEmpty}
		session.Unlock()
		return c.Send("Strategy draft cleared. Describe a new strategy whenever you're ready.")
	})

	b.Handle(tele.OnText, func(c tele.Context) error {
		if chat == nil {
			return nil
		}
		text := strings.TrimSpace(c.Text())
		if text == "" || c.Chat() == nil {
			return nil
		}
		return handleChatTurn(c, chat, renderer, text)
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func handleChatTurn(c tele.Context, chat TurnHandler, renderer ChartRenderer, text string) error {
	_ = c.Notify(tele.Typing)

	turn, err := chat.HandleTurn(context.Background(), sessionKey(c.Chat().ID), text)
	if err != nil {
		log.Printf("chat turn error for chat %d: %v", c.Chat().ID, err)
		return c.Send("Sorry, I'm having trouble right now. Please try again.")
	}

	if turn.Kind != service.TurnCompleted || turn.Result == nil {
		return c.Send(turn.Message)
	}

	summary := formatResult(turn)
	if renderer != nil {
		if image, err := renderer.RenderEquityChart(turn.Result); err == nil && len(image) > 0 {
			photo := &tele.Photo{
				File:    tele.FromReader(bytes.NewReader(image)),
				Caption: summary,
			}
			return c.Send(photo)
		}
	}
	return c.Send(summary)
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

func formatResult(turn service.TurnResult) string {
	m := turn.Result.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "Backtest for %s\n", turn.Result.Ticker)
	if m != nil {
		fmt.Fprintf(&b, "Total return: %.2f%%\n", m.TotalReturn)
		fmt.Fprintf(&b, "CAGR: %.2f%%\n", m.CAGR)
		fmt.Fprintf(&b, "Max drawdown: %.2f%%\n", m.MaxDrawdown)
		fmt.Fprintf(&b, "Sharpe: %.2f\n", m.SharpeRatio)
		fmt.Fprintf(&b, "Win rate: %.1f%% over %d trades", m.WinRate, m.TotalTrades)
	}
	for _, w := range turn.Warnings {
		b.WriteString("\nWarning: ")
		b.WriteString(w)
	}
	return b.String()
}

func formatCatalog(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Supported indicators:\n")
	for _, entry := range cat.Indicators() {
		fmt.Fprintf(&b, "- %s: %s\n", entry.Key, entry.Description)
	}
	b.WriteString("Operators: ")
	b.WriteString(strings.Join(cat.AllOperators(), ", "))
	b.WriteString("\nTemplates: ")
	names := make([]string, 0)
	for _, t := range cat.Templates() {
		names = append(names, t.Key)
	}
	b.WriteString(strings.Join(names, ", "))
	return b.String()
}
