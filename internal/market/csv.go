// internal/market/csv.go
//
// CSV export of cached bars: either streamed to a writer (the HTTP
// download endpoint) or dumped per symbol into a uniquely named export
// directory (the batch tool).

package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

var csvHeader = []string{"symbol", "date", "open", "high", "low", "close", "volume"}

// WriteBarsCSV writes bars as CSV with a header row.
func WriteBarsCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Symbol,
			b.Date,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportAll dumps cached bars for every symbol into a fresh
// export-<uuid> directory under dir, one CSV per symbol. Symbols with
// no cached bars are skipped. Returns the export directory and the
// files written.
func ExportAll(ctx context.Context, cache *Cache, dir string, symbols []string) (string, []string, error) {
	jobDir := filepath.Join(dir, "export-"+uuid.NewString())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("mkdir %s: %w", jobDir, err)
	}

	var files []string
	for _, sym := range symbols {
		bars, err := cache.Bars(ctx, sym)
		if err != nil {
			return jobDir, files, fmt.Errorf("load bars %s: %w", sym, err)
		}
		if len(bars) == 0 {
			continue
		}
		path := filepath.Join(jobDir, sym+".csv")
		f, err := os.Create(path)
		if err != nil {
			return jobDir, files, fmt.Errorf("create %s: %w", path, err)
		}
		if err := WriteBarsCSV(f, bars); err != nil {
			f.Close()
			return jobDir, files, fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return jobDir, files, err
		}
		files = append(files, path)
	}
	return jobDir, files, nil
}

// formatFloat renders prices without exponent notation.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
