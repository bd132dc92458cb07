// internal/market/client.go
//
// HTTP client for a Yahoo-style chart API.
// Fetches instrument metadata and daily OHLCV bars from
//   GET {base}/v8/finance/chart/{symbol}?range={range}&interval=1d
// The base URL comes from configuration so tests (and self-hosted
// mirrors) can point it anywhere.

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultRange is the history window requested when the caller does not
// specify one.
const DefaultRange = "1y"

// Client fetches market data over HTTP.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		hc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// chartResponse mirrors the upstream chart payload, reduced to the
// fields the cache needs.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency       string `json:"currency"`
				Symbol         string `json:"symbol"`
				ExchangeName   string `json:"exchangeName"`
				InstrumentType string `json:"instrumentType"`
				ShortName      string `json:"shortName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches instrument metadata and daily bars for symbol over
// the given range ("1mo", "1y", "10y", ...).
func (c *Client) History(ctx context.Context, symbol, rng string) (Instrument, []Bar, error) {
	if rng == "" {
		rng = DefaultRange
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		c.base, url.PathEscape(symbol), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Instrument{}, nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return Instrument{}, nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Instrument{}, nil, fmt.Errorf("fetch %s: upstream status %d", symbol, res.StatusCode)
	}

	var body chartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Instrument{}, nil, fmt.Errorf("decode %s: %w", symbol, err)
	}
	if body.Chart.Error != nil {
		return Instrument{}, nil, fmt.Errorf("fetch %s: %s", symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return Instrument{}, nil, fmt.Errorf("fetch %s: empty result", symbol)
	}

	r := body.Chart.Result[0]
	inst := Instrument{
		Symbol:    r.Meta.Symbol,
		Name:      r.Meta.ShortName,
		Currency:  r.Meta.Currency,
		Exchange:  r.Meta.ExchangeName,
		QuoteType: r.Meta.InstrumentType,
	}
	if inst.Symbol == "" {
		inst.Symbol = symbol
	}

	if len(r.Indicators.Quote) == 0 {
		return inst, nil, nil
	}
	q := r.Indicators.Quote[0]

	bars := make([]Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) {
			break
		}
		bars = append(bars, Bar{
			Symbol: inst.Symbol,
			Date:   time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  q.Close[i],
			Volume: atInt(q.Volume, i),
		})
	}
	return inst, bars, nil
}

// at / atInt tolerate ragged upstream arrays (some quote series can be
// shorter than the timestamp list).
func at(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func atInt(s []int64, i int) int64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}
