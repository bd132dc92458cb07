// internal/market/service.go
//
// Service ties the HTTP client to the SQLite cache: one refresh pass
// fetches metadata + bars per symbol and caches both. Per-symbol
// failures are logged and counted, not fatal, so one bad ticker does
// not sink a batch refresh.

package market

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service coordinates fetch-and-cache operations.
type Service struct {
	client *Client
	cache  *Cache
}

// NewService constructs a Service.
func NewService(client *Client, cache *Cache) *Service {
	return &Service{client: client, cache: cache}
}

// Cache exposes the underlying cache for read-side callers.
func (s *Service) Cache() *Cache { return s.cache }

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Fetched int      `json:"fetched"`
	Failed  []string `json:"failed,omitempty"`
}

// Refresh fetches and caches metadata + bars for each symbol.
func (s *Service) Refresh(ctx context.Context, symbols []string, rng string) (RefreshResult, error) {
	var res RefreshResult
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inst, bars, err := s.client.History(ctx, sym, rng)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("refresh fetch failed")
			res.Failed = append(res.Failed, sym)
			continue
		}
		if err := s.cache.UpsertInstrument(ctx, inst); err != nil {
			return res, err
		}
		if err := s.cache.SaveBars(ctx, bars); err != nil {
			return res, err
		}
		res.Fetched++
		log.Info().Str("symbol", sym).Int("bars", len(bars)).Msg("cached")
	}
	return res, nil
}
