package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backtestgpt/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	barCacheKeyPrefix = "bars:daily:"
	barCacheTTL       = 6 * time.Hour
)

// BarFetcher is the upstream the cache wraps.
type BarFetcher interface {
	GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error)
	HasRecentData(ctx context.Context, ticker string) (bool, error)
}

// CachedBars is a read-through redis cache over a BarFetcher. Windows are
// cached whole, keyed by ticker and day bounds. A nil redis client degrades
// to a pass-through.
type CachedBars struct {
	tracer  trace.Tracer
	fetcher BarFetcher
	rdb     *redis.Client
}

func NewCachedBars(tracer trace.Tracer, fetcher BarFetcher, rdb *redis.Client) *CachedBars {
	return &CachedBars{tracer: tracer, fetcher: fetcher, rdb: rdb}
}

func (c *CachedBars) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	ctx, span := c.tracer.Start(ctx, "marketdata.cached-daily-bars")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker))

	key := barCacheKey(ticker, from, to)
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var bars []domain.Bar
			if err := json.Unmarshal(raw, &bars); err == nil {
				span.SetAttributes(attribute.Bool("cache_hit", true))
				return bars, nil
			}
		}
	}

	bars, err := c.fetcher.GetDailyBars(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil && len(bars) > 0 {
		if raw, err := json.Marshal(bars); err == nil {
			c.rdb.Set(ctx, key, raw, barCacheTTL)
		}
	}
	return bars, nil
}

// HasRecentData bypasses the cache. The probe window moves with the clock,
// so a cached answer would go stale within a day.
func (c *CachedBars) HasRecentData(ctx context.Context, ticker string) (bool, error) {
	return c.fetcher.HasRecentData(ctx, ticker)
}

func barCacheKey(ticker string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s",
		barCacheKeyPrefix, ticker,
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
}
