// Package validator checks candidate tickers against live market data and
// complete strategy candidates against the capability catalog.
package validator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"backtestgpt/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxTickerLen   = 10
	tickerCacheKey = "ticker:valid:"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// DataProber confirms that recent market data exists for a ticker.
type DataProber interface {
	HasRecentData(ctx context.Context, ticker string) (bool, error)
}

type tickerVerdict struct {
	Valid   bool
	Message string
}

// TickerValidator format-checks identifiers and confirms data availability
// through the market-data collaborator. Verdicts are cached per normalized
// ticker for the process lifetime; a redis client, when present, shares the
// cache across processes.
type TickerValidator struct {
	tracer trace.Tracer
	prober DataProber
	rdb    *redis.Client

	mu    sync.RWMutex
	cache map[string]tickerVerdict
}

func NewTickerValidator(tracer trace.Tracer, prober DataProber, rdb *redis.Client) *TickerValidator {
	return &TickerValidator{
		tracer: tracer,
		prober: prober,
		rdb:    rdb,
		cache:  make(map[string]tickerVerdict),
	}
}

// ValidFormat reports whether the identifier passes the offline shape check:
// non-empty, bounded length, restricted character set.
func ValidFormat(ticker string) bool {
	normalized := domain.NormalizeTicker(ticker)
	if normalized == "" || len(normalized) > maxTickerLen {
		return false
	}
	return tickerPattern.MatchString(normalized)
}

// Validate returns whether the ticker resolves to retrievable data, plus a
// user-facing message. Cache hits short-circuit the network probe.
func (v *TickerValidator) Validate(ctx context.Context, ticker string) (bool, string) {
	ctx, span := v.tracer.Start(ctx, "ticker-validator.validate")
	defer span.End()

	normalized := domain.NormalizeTicker(ticker)
	span.SetAttributes(attribute.String("ticker", normalized))

	if !ValidFormat(normalized) {
		return false, fmt.Sprintf("Ticker %q has invalid format", ticker)
	}

	if verdict, ok := v.lookup(ctx, normalized); ok {
		return verdict.Valid, verdict.Message
	}

	verdict, definitive := v.probe(ctx, normalized)
	if definitive {
		v.store(ctx, normalized, verdict)
	}
	return verdict.Valid, verdict.Message
}

// probe returns the verdict and whether it is definitive. A prober failure
// is not a statement about the ticker, so it must never enter the cache.
func (v *TickerValidator) probe(ctx context.Context, ticker string) (tickerVerdict, bool) {
	ok, err := v.prober.HasRecentData(ctx, ticker)
	if err != nil {
		return tickerVerdict{Valid: false, Message: fmt.Sprintf("Error validating ticker %q: %v", ticker, err)}, false
	}
	if !ok {
		return tickerVerdict{Valid: false, Message: fmt.Sprintf("No data available for ticker %q", ticker)}, true
	}
	return tickerVerdict{Valid: true, Message: fmt.Sprintf("Ticker %q is valid and has data", ticker)}, true
}

func (v *TickerValidator) lookup(ctx context.Context, ticker string) (tickerVerdict, bool) {
	v.mu.RLock()
	verdict, ok := v.cache[ticker]
	v.mu.RUnlock()
	if ok {
		return verdict, true
	}

	if v.rdb != nil {
		raw, err := v.rdb.Get(ctx, tickerCacheKey+ticker).Result()
		if err == nil {
			verdict := decodeVerdict(raw)
			v.mu.Lock()
			v.cache[ticker] = verdict
			v.mu.Unlock()
			return verdict, true
		}
	}
	return tickerVerdict{}, false
}

func (v *TickerValidator) store(ctx context.Context, ticker string, verdict tickerVerdict) {
	v.mu.Lock()
	v.cache[ticker] = verdict
	v.mu.Unlock()

	if v.rdb != nil {
		v.rdb.Set(ctx, tickerCacheKey+ticker, encodeVerdict(verdict), 0)
	}
}

func encodeVerdict(verdict tickerVerdict) string {
	flag := "0"
	if verdict.Valid {
		flag = "1"
	}
	return flag + "|" + verdict.Message
}

func decodeVerdict(raw string) tickerVerdict {
	flag, msg, _ := strings.Cut(raw, "|")
	return tickerVerdict{Valid: flag == "1", Message: msg}
}
