// cmd/marketctl/main.go
//
// Batch tool for the market-data cache. Runs the same fetch-and-store
// and CSV-dump passes the server exposes over HTTP, without needing a
// running server:
//
//	marketctl fetch [symbols...]   refresh the cache (default: universe)
//	marketctl export [symbols...]  dump cached bars to per-symbol CSVs
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dhpark-dev/wordchain/internal/market"
)

// cacheSchema keeps the tool usable against a fresh database; the
// statements match the cache tables in sql/0001_init.sql.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS instruments (
    symbol TEXT PRIMARY KEY,
    name TEXT, currency TEXT, exchange TEXT, quote_type TEXT
);
CREATE TABLE IF NOT EXISTS daily_bars (
    symbol TEXT NOT NULL, date TEXT NOT NULL,
    open REAL, high REAL, low REAL, close REAL, volume INTEGER,
    PRIMARY KEY (symbol, date)
);`

var (
	flagDB    string
	flagBase  string
	flagRange string
	flagOut   string
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	root := &cobra.Command{
		Use:   "marketctl",
		Short: "Fetch and export cached market data",
	}
	root.PersistentFlags().StringVar(&flagDB, "db", getEnv("DATABASE_PATH", "./data/wordchain.db"), "sqlite database path")
	root.PersistentFlags().StringVar(&flagBase, "base", getEnv("MARKET_API_BASE", "https://query1.finance.yahoo.com"), "chart API base URL")

	fetch := &cobra.Command{
		Use:   "fetch [symbols...]",
		Short: "Fetch and cache metadata + daily bars",
		RunE:  runFetch,
	}
	fetch.Flags().StringVar(&flagRange, "range", "10y", "history range (1mo, 1y, 10y, ...)")

	export := &cobra.Command{
		Use:   "export [symbols...]",
		Short: "Dump cached bars to per-symbol CSV files",
		RunE:  runExport,
	}
	export.Flags().StringVar(&flagOut, "out", "./exports", "output directory")

	root.AddCommand(fetch, export)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openCache opens the sqlite database and ensures the cache tables exist.
func openCache() (*sql.DB, *market.Cache, error) {
	db, err := sql.Open("sqlite3", flagDB+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure cache schema: %w", err)
	}
	return db, market.NewCache(db), nil
}

// symbolsArg resolves positional symbols, falling back to the universe.
func symbolsArg(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	u, err := market.LoadUniverse()
	if err != nil {
		return nil, err
	}
	return u.Symbols, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	symbols, err := symbolsArg(args)
	if err != nil {
		return err
	}
	db, cache, err := openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := market.NewService(market.NewClient(flagBase), cache)
	res, err := svc.Refresh(context.Background(), symbols, flagRange)
	if err != nil {
		return err
	}
	log.Info().Int("fetched", res.Fetched).Strs("failed", res.Failed).Msg("refresh done")
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d symbols failed", len(res.Failed), len(symbols))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	symbols, err := symbolsArg(args)
	if err != nil {
		return err
	}
	db, cache, err := openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	jobDir, files, err := market.ExportAll(context.Background(), cache, flagOut, symbols)
	if err != nil {
		return err
	}
	log.Info().Str("dir", jobDir).Int("files", len(files)).Msg("export done")
	fmt.Println(jobDir)
	return nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
