package marketdata

import (
	"context"
	"testing"
	"time"

	"backtestgpt/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

type countingFetcher struct {
	bars  []domain.Bar
	calls int
}

func (f *countingFetcher) GetDailyBars(context.Context, string, time.Time, time.Time) ([]domain.Bar, error) {
	f.calls++
	return f.bars, nil
}

func (f *countingFetcher) HasRecentData(context.Context, string) (bool, error) {
	f.calls++
	return len(f.bars) > 0, nil
}

func testBars() []domain.Bar {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return []domain.Bar{
		{Date: day, Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000},
		{Date: day.AddDate(0, 0, 1), Open: 101, High: 103, Low: 100, Close: 102.5, Volume: 1100},
	}
}

func TestCachedBarsSecondFetchHitsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fetcher := &countingFetcher{bars: testBars()}
	cached := NewCachedBars(trace.NewNoopTracerProvider().Tracer("test"), fetcher, rdb)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	first, err := cached.GetDailyBars(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cached.GetDailyBars(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", fetcher.calls)
	}
	if len(second) != len(first) || second[1].Close != 102.5 {
		t.Fatalf("cached bars differ: %+v", second)
	}
}

func TestCachedBarsDistinctWindowsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fetcher := &countingFetcher{bars: testBars()}
	cached := NewCachedBars(trace.NewNoopTracerProvider().Tracer("test"), fetcher, rdb)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := cached.GetDailyBars(context.Background(), "AAPL", from, from.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cached.GetDailyBars(context.Background(), "AAPL", from, from.AddDate(0, 0, 14)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected 2 upstream fetches for distinct windows, got %d", fetcher.calls)
	}
}

func TestCachedBarsNilRedisPassesThrough(t *testing.T) {
	fetcher := &countingFetcher{bars: testBars()}
	cached := NewCachedBars(trace.NewNoopTracerProvider().Tracer("test"), fetcher, nil)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, err := cached.GetDailyBars(context.Background(), "AAPL", from, from.AddDate(0, 0, 7)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected pass-through without redis, got %d calls", fetcher.calls)
	}
}

func TestCachedBarsProbeNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fetcher := &countingFetcher{bars: testBars()}
	cached := NewCachedBars(trace.NewNoopTracerProvider().Tracer("test"), fetcher, rdb)

	for i := 0; i < 2; i++ {
		ok, err := cached.HasRecentData(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatal("expected recent data")
		}
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected probe to bypass cache, got %d calls", fetcher.calls)
	}
}
