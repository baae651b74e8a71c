// Package marketdata fetches daily OHLCV history from a Yahoo-style chart
// API. It backs both the ticker existence probe and full backtest history.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"backtestgpt/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	requestTimeout = 15 * time.Second
	probeDays      = 7
)

type Client struct {
	tracer  trace.Tracer
	httpc   *http.Client
	baseURL string
}

func NewClient(tracer trace.Tracer, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		tracer:  tracer,
		httpc:   &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyBars returns the daily bars for ticker between from and to,
// oldest first. Positions with missing quote values are dropped.
func (c *Client) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	ctx, span := c.tracer.Start(ctx, "marketdata.get-daily-bars")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker))

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker))
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprintf("%d", from.Unix()))
	q.Set("period2", fmt.Sprintf("%d", to.Unix()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no data available for ticker %q", ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart api returned status %d for %s", resp.StatusCode, ticker)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode chart response for %s: %w", ticker, err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error for %s: %s", ticker, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no data available for ticker %q", ticker)
	}

	result := body.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := domain.Bar{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// HasRecentData reports whether at least one daily bar exists in the last
// few days, which is the existence confirmation the ticker validator needs.
func (c *Client) HasRecentData(ctx context.Context, ticker string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "marketdata.has-recent-data")
	defer span.End()

	now := time.Now().UTC()
	bars, err := c.GetDailyBars(ctx, ticker, now.AddDate(0, 0, -probeDays), now)
	if err != nil {
		return false, err
	}
	return len(bars) > 0, nil
}
