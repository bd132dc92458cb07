// internal/market/types.go
//
// Data shapes shared by the market client, the SQLite cache, and the
// CSV exporter.

package market

// Instrument is the metadata row cached per symbol.
type Instrument struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quoteType"`
}

// Bar is one daily OHLCV row. Date is "YYYY-MM-DD" in UTC.
type Bar struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}
