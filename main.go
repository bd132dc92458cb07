package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dhpark-dev/wordchain/internal/httpserver"
	"github.com/dhpark-dev/wordchain/internal/market"
	"github.com/dhpark-dev/wordchain/internal/store"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(getEnv("DATABASE_PATH", "./data/wordchain.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	client := market.NewClient(getEnv("MARKET_API_BASE", "https://query1.finance.yahoo.com"))
	svc := market.NewService(client, market.NewCache(db))

	mem := store.NewMemoryStore()
	srv := httpserver.New(mem, db, svc)
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting wordchain server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
