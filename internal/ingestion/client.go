// Package ingestion implements the Ingestion Workers (C6): one worker per
// symbol polling an external REST market-data endpoint for klines and
// order book depth, persisting through the Order State Store's
// MarketDataStore sibling repository, and publishing to the Pub/Sub Bus.
//
// Grounded on pkg/smartconnect/client.go's http.Client-plus-Timeout
// construction, and on original_source/data-collector/main.py's
// BinanceCollector — fetch_klines's status-code dispatch (200/429/other)
// and parse_klines's field layout are carried over directly, translated
// into Go's two-value (value, error) idiom instead of Python's
// exception-driven control flow.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/resilience"
)

// BinanceClient fetches klines and order book depth from a Binance-compatible
// REST market-data API. Every request runs behind a circuit breaker so a
// downstream outage stops being hammered with requests it can't serve.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewBinanceClient builds a client against baseURL (e.g.
// "https://api.binance.com"), sharing breaker across all calls the client
// makes so a string of failures for one symbol also protects the others.
func NewBinanceClient(baseURL string, breaker *resilience.CircuitBreaker) *BinanceClient {
	return &BinanceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
	}
}

// get performs a GET through the circuit breaker, returning the raw body
// and status code so callers can apply the 429-vs-other retry distinction
// themselves. A breaker trip (ErrOpen) is returned as-is.
func (c *BinanceClient) get(ctx context.Context, path string, query url.Values) ([]byte, int, error) {
	u := c.baseURL + path + "?" + query.Encode()

	var status int
	var body []byte
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, status, err
}

// FetchKlines requests 1-minute klines for symbol in [startMs, endMs),
// capped at limit rows. The second return value is the HTTP status code
// (0 if the request never reached the server, e.g. breaker-open or
// transport error) so the caller can apply Binance's documented 429 vs.
// other-error retry split.
func (c *BinanceClient) FetchKlines(ctx context.Context, symbol string, startMs, endMs int64, limit int) ([]model.Candle, int, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1m")
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("endTime", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(limit))

	body, status, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, status, err
	}
	if status != http.StatusOK {
		return nil, status, nil
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, status, fmt.Errorf("ingestion: decoding klines for %s: %w", symbol, err)
	}
	return parseKlines(symbol, raw), status, nil
}

// parseKlines maps Binance's fixed kline array layout onto model.Candle,
// skipping (not failing on) any malformed row — one bad bar must never
// abort the whole batch.
func parseKlines(symbol string, raw [][]interface{}) []model.Candle {
	candles := make([]model.Candle, 0, len(raw))
	for _, item := range raw {
		if len(item) < 11 {
			continue
		}
		openMs, ok := toInt64(item[0])
		if !ok {
			continue
		}
		trades, _ := toInt64(item[8])

		candles = append(candles, model.Candle{
			Symbol:        symbol,
			TimeframeMin:  1,
			BucketStartMs: openMs,
			Open:          decimal.NewDec8(item[1]),
			High:          decimal.NewDec8(item[2]),
			Low:           decimal.NewDec8(item[3]),
			Close:         decimal.NewDec8(item[4]),
			Volume:        decimal.NewDec8(item[5]),
			QuoteVolume:   decimal.NewDec8(item[7]),
			Trades:        int32(trades),
			Forming:       false,
		})
	}
	return candles
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// depthResponse is the wire shape of Binance's /api/v3/depth response.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// FetchDepth requests an order book snapshot for symbol truncated to
// levels entries per side.
func (c *BinanceClient) FetchDepth(ctx context.Context, symbol string, levels int) (*model.OrderbookSnapshot, int, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(levels))

	body, status, err := c.get(ctx, "/api/v3/depth", q)
	if err != nil {
		return nil, status, err
	}
	if status != http.StatusOK {
		return nil, status, nil
	}

	var raw depthResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, status, fmt.Errorf("ingestion: decoding depth for %s: %w", symbol, err)
	}

	snap := &model.OrderbookSnapshot{
		Symbol:       symbol,
		TimestampMs:  time.Now().UnixMilli(),
		LastUpdateID: raw.LastUpdateID,
		Bids:         toLevels(raw.Bids),
		Asks:         toLevels(raw.Asks),
	}
	snap.Truncate(levels)
	return snap, status, nil
}

func toLevels(rows [][]string) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		levels = append(levels, model.PriceLevel{
			Price:    decimal.NewDec8(row[0]),
			Quantity: decimal.NewDec8(row[1]),
		})
	}
	return levels
}
