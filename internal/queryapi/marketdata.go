package queryapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/linkora-dex/backend/internal/aggregator"
	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/gateway"
	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/timeframe"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	overall := "healthy"
	if err := s.Store.Ping(); err != nil {
		dbStatus = "unhealthy"
		overall = "unhealthy"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     overall,
		"timestamp":  time.Now().UnixMilli(),
		"database":   dbStatus,
		"components": map[string]string{"database": dbStatus},
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.Store.Symbols()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

// handleCandles serves GET /candles?symbol&timeframe&start_date?&limit=500.
// Historical rows are folded from the persisted 1-minute series; when Reg is
// set, the in-progress bucket is always appended too, per the "always
// hydrate on read" decision recorded for SPEC_FULL.md §9's open question.
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	tfMinutes, ok := timeframe.Parse(q.Get("timeframe"))
	if symbol == "" || !ok {
		writeError(w, http.StatusBadRequest, "invalid symbol or timeframe")
		return
	}

	limit := parseIntParam(q, "limit", 500)
	if limit < 1 || limit > 5000 {
		writeError(w, http.StatusBadRequest, "limit must be in [1,5000]")
		return
	}

	var startMs int64
	if ds := q.Get("start_date"); ds != "" {
		t, err := time.Parse(time.RFC3339, ds)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		startMs = t.UnixMilli()
	}

	// Fetch enough 1-minute rows to fold into `limit` buckets of tfMinutes
	// each, with one extra bucket's worth of slack.
	rows, err := s.Store.CandlesRange(symbol, startMs, (limit+1)*tfMinutes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	candles := foldCandleRows(symbol, tfMinutes, rows)

	if s.Reg != nil {
		agg := s.Reg.EnsureAggregator(symbol, tfMinutes, time.Now().UnixMilli())
		if peek, ok := agg.Peek(); ok {
			candles = append(candles, peek)
		}
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	writeJSON(w, http.StatusOK, candles)
}

// foldCandleRows replays persisted 1-minute rows through a throwaway
// Aggregator to derive closed candles at tfMinutes — the same
// bucket-transition logic the live Candle Aggregator uses, so a historical
// read and a live subscription never disagree on bucket boundaries.
func foldCandleRows(symbol string, tfMinutes int, rows []model.CandleRecord) []model.Candle {
	agg := aggregator.New(symbol, tfMinutes)
	out := make([]model.Candle, 0, len(rows)/tfMinutes+1)
	for _, row := range rows {
		m := model.Candle{
			Symbol:        symbol,
			TimeframeMin:  1,
			BucketStartMs: row.TimestampMs,
			Open:          decimal.NewDec8(row.Open),
			High:          decimal.NewDec8(row.High),
			Low:           decimal.NewDec8(row.Low),
			Close:         decimal.NewDec8(row.Close),
			Volume:        decimal.NewDec8(row.Volume),
			QuoteVolume:   decimal.NewDec8(row.QuoteVolume),
			Trades:        row.Trades,
		}
		if closed, ok := agg.Fold(m); ok {
			out = append(out, closed)
		}
	}
	return out
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	levels := parseIntParam(q, "levels", 20)
	if levels != 5 && levels != 10 && levels != 20 {
		writeError(w, http.StatusBadRequest, "levels must be one of 5, 10, 20")
		return
	}

	snap, err := s.Store.LatestOrderbook(symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, "no orderbook snapshot for symbol")
		return
	}
	snap.Truncate(levels)

	gateway.SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.Write(snap.JSON())
}

// handlePrice serves GET /price?symbol&timeframe. The current price always
// prefers the live aggregator's peek over the last persisted candle, per
// SPEC_FULL.md §8 scenario 5.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	tfMinutes, ok := timeframe.Parse(q.Get("timeframe"))
	if symbol == "" || !ok {
		writeError(w, http.StatusBadRequest, "invalid symbol or timeframe")
		return
	}

	windowStart := time.Now().Add(-time.Duration(tfMinutes) * 3 * time.Minute).UnixMilli()
	rows, err := s.Store.CandlesRange(symbol, windowStart, 3*tfMinutes+tfMinutes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	closed := foldCandleRows(symbol, tfMinutes, rows)

	var current, previous model.Candle
	haveCurrent, havePrevious := false, false

	if s.Reg != nil {
		if agg := s.Reg.EnsureAggregator(symbol, tfMinutes, time.Now().UnixMilli()); agg != nil {
			if peek, ok := agg.Peek(); ok {
				current, haveCurrent = peek, true
			}
		}
	}
	if !haveCurrent && len(closed) > 0 {
		current, haveCurrent = closed[len(closed)-1], true
		closed = closed[:len(closed)-1]
	}
	if len(closed) > 0 {
		previous, havePrevious = closed[len(closed)-1], true
	}

	if !haveCurrent {
		writeError(w, http.StatusNotFound, "no price data for symbol")
		return
	}

	trend := "neutral"
	changeAbs := decimal.Zero8
	changePct := 0.0
	if havePrevious {
		changeAbs = current.Close.Sub(previous.Close)
		switch {
		case changeAbs.Float64() > 0:
			trend = "up"
		case changeAbs.Float64() < 0:
			trend = "down"
		}
		if !previous.Close.IsZero() {
			changePct = changeAbs.Float64() / previous.Close.Float64() * 100
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":          symbol,
		"timeframe":       timeframe.Label(tfMinutes),
		"current_price":   current.Close.String(),
		"previous_price":  previous.Close.String(),
		"change_absolute": changeAbs.String(),
		"change_percent":  strconv.FormatFloat(changePct, 'f', 8, 64),
		"trend":           trend,
		"timestamp":       time.Now().UnixMilli(),
		"volume":          current.Volume.String(),
	})
}
