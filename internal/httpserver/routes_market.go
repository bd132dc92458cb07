// internal/httpserver/routes_market.go
//
// HTTP routes for the market-data browsing tools.
// Exposes endpoints under /market and /analysis:
//   - POST /market/refresh        → fetch + cache the symbol universe
//   - GET  /market/instruments    → cached instrument metadata
//   - GET  /market/bars           → cached daily bars for one symbol
//   - GET  /market/bars.csv       → same bars as a CSV download
//   - GET  /analysis/indicators   → SMA / volatility / RSI / cumulative return
//   - GET  /analysis/regression   → OLS fit of close on day index
//
// The database acts purely as a cache of fetched rows; every analysis
// endpoint reads from the cache, never from the upstream API.

package httpserver

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dhpark-dev/wordchain/internal/market"
	"github.com/dhpark-dev/wordchain/internal/quant"
)

// marketServer wraps dependencies for /market and /analysis endpoints.
type marketServer struct {
	svc *market.Service
}

// mountMarket registers all /market and /analysis routes.
func (s *Server) mountMarket(r chi.Router) {
	ms := &marketServer{svc: s.market}
	r.Route("/market", func(r chi.Router) {
		r.Post("/refresh", ms.handleRefresh)
		r.Get("/instruments", ms.handleInstruments)
		r.Get("/bars", ms.handleBars)
		r.Get("/bars.csv", ms.handleBarsCSV)
	})
	r.Route("/analysis", func(r chi.Router) {
		r.Get("/indicators", ms.handleIndicators)
		r.Get("/regression", ms.handleRegression)
	})
}

// -----------------------------------------------------------------------------
// /market

// refreshReq is the optional request payload for /market/refresh.
// With no body (or an empty symbol list) the configured universe is used.
type refreshReq struct {
	Symbols []string `json:"symbols"`
	Range   string   `json:"range"`
}

// handleRefresh fetches and caches metadata + bars for the requested
// symbols (default: the configured universe).
func (ms *marketServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	symbols := req.Symbols
	if len(symbols) == 0 {
		u, err := market.LoadUniverse()
		if err != nil {
			http.Error(w, `{"error":"no_universe"}`, http.StatusInternalServerError)
			return
		}
		symbols = u.Symbols
	}

	res, err := ms.svc.Refresh(r.Context(), symbols, req.Range)
	if err != nil {
		http.Error(w, `{"error":"refresh_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(res)
}

// handleInstruments returns all cached instrument rows.
func (ms *marketServer) handleInstruments(w http.ResponseWriter, r *http.Request) {
	insts, err := ms.svc.Cache().Instruments(r.Context())
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if insts == nil {
		insts = []market.Instrument{}
	}
	_ = json.NewEncoder(w).Encode(insts)
}

// symbolParam reads the mandatory ?symbol= query parameter.
func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sym := r.URL.Query().Get("symbol")
	if sym == "" {
		http.Error(w, `{"error":"symbol_required"}`, http.StatusBadRequest)
		return "", false
	}
	return sym, true
}

// handleBars returns cached daily bars for one symbol.
func (ms *marketServer) handleBars(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	bars, err := ms.svc.Cache().Bars(r.Context(), sym)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if bars == nil {
		bars = []market.Bar{}
	}
	_ = json.NewEncoder(w).Encode(bars)
}

// handleBarsCSV streams cached bars for one symbol as a CSV download.
func (ms *marketServer) handleBarsCSV(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	bars, err := ms.svc.Cache().Bars(r.Context(), sym)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sym+`.csv"`)
	if err := market.WriteBarsCSV(w, bars); err != nil {
		// Headers are gone; nothing to do beyond logging at the caller.
		return
	}
}

// -----------------------------------------------------------------------------
// /analysis

// series marshals NaN warm-up positions as JSON null (encoding/json
// rejects NaN outright).
type series []float64

func (s series) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(v) {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

// indicatorsRes is returned by /analysis/indicators, index-aligned with Dates.
type indicatorsRes struct {
	Symbol           string   `json:"symbol"`
	Window           int      `json:"window"`
	Dates            []string `json:"dates"`
	Close            series   `json:"close"`
	SMA              series   `json:"sma"`
	Volatility       series   `json:"volatility"`
	RSI              series   `json:"rsi"`
	CumulativeReturn series   `json:"cumulativeReturn"`
}

// handleIndicators computes the indicator set over cached closes.
func (ms *marketServer) handleIndicators(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	window := 21
	if v := r.URL.Query().Get("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = n
		}
	}

	bars, err := ms.svc.Cache().Bars(r.Context(), sym)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if len(bars) == 0 {
		http.Error(w, `{"error":"no_data"}`, http.StatusNotFound)
		return
	}

	dates := make([]string, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
		closes[i] = b.Close
	}

	_ = json.NewEncoder(w).Encode(indicatorsRes{
		Symbol:           sym,
		Window:           window,
		Dates:            dates,
		Close:            closes,
		SMA:              quant.SMA(closes, window),
		Volatility:       quant.Volatility(closes, window),
		RSI:              quant.RSI(closes, 14),
		CumulativeReturn: quant.CumulativeReturn(closes),
	})
}

// regressionRes is returned by /analysis/regression.
type regressionRes struct {
	Symbol string    `json:"symbol"`
	Fit    quant.Fit `json:"fit"`
	// NextClose extrapolates the fitted line one day past the series.
	NextClose float64 `json:"nextClose"`
}

// handleRegression fits close price on day index for one symbol.
func (ms *marketServer) handleRegression(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	closes, err := ms.svc.Cache().Closes(r.Context(), sym)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if len(closes) == 0 {
		http.Error(w, `{"error":"no_data"}`, http.StatusNotFound)
		return
	}

	xs := make([]float64, len(closes))
	for i := range xs {
		xs[i] = float64(i)
	}
	fit, err := quant.FitOLS(xs, closes)
	if err != nil {
		http.Error(w, `{"error":"too_few_points"}`, http.StatusUnprocessableEntity)
		return
	}
	_ = json.NewEncoder(w).Encode(regressionRes{
		Symbol:    sym,
		Fit:       fit,
		NextClose: fit.Predict(float64(len(closes))),
	})
}
