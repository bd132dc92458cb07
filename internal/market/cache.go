// internal/market/cache.go
//
// SQLite-backed cache of fetched market rows. The database is a plain
// key-value cache of previously fetched data: rows are inserted with
// INSERT OR REPLACE and never transformed in SQL.

package market

import (
	"context"
	"database/sql"
)

// Cache stores instruments and daily bars in SQLite.
type Cache struct{ db *sql.DB }

// NewCache wraps an opened database handle. Schema is created by the
// server's migrations.
func NewCache(db *sql.DB) *Cache { return &Cache{db: db} }

// UpsertInstrument inserts or replaces one instrument metadata row.
func (c *Cache) UpsertInstrument(ctx context.Context, in Instrument) error {
	_, err := c.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO instruments (symbol, name, currency, exchange, quote_type)
        VALUES (?, ?, ?, ?, ?)`,
		in.Symbol, in.Name, in.Currency, in.Exchange, in.QuoteType,
	)
	return err
}

// Instruments returns all cached instrument rows ordered by symbol.
func (c *Cache) Instruments(ctx context.Context) ([]Instrument, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT symbol, name, currency, exchange, quote_type
        FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var in Instrument
		if err := rows.Scan(&in.Symbol, &in.Name, &in.Currency, &in.Exchange, &in.QuoteType); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// SaveBars inserts or replaces daily bars in one transaction.
func (c *Cache) SaveBars(ctx context.Context, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT OR REPLACE INTO daily_bars (symbol, date, open, high, low, close, volume)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Bars returns all cached bars for symbol in date order.
func (c *Cache) Bars(ctx context.Context, symbol string) ([]Bar, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT symbol, date, open, high, low, close, volume
        FROM daily_bars WHERE symbol=? ORDER BY date`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Closes returns the close-price series for symbol in date order.
// Convenience for the analysis endpoints.
func (c *Cache) Closes(ctx context.Context, symbol string) ([]float64, error) {
	bars, err := c.Bars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out, nil
}
