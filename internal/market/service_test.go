package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/BAD") {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	cache := setupTestCache(t)
	svc := NewService(NewClient(srv.URL), cache)

	res, err := svc.Refresh(context.Background(), []string{"SPY", "BAD"}, "1mo")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, []string{"BAD"}, res.Failed)

	insts, err := cache.Instruments(context.Background())
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, "SPY", insts[0].Symbol)

	bars, err := cache.Bars(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestService_Refresh_CancelledContext(t *testing.T) {
	cache := setupTestCache(t)
	svc := NewService(NewClient("http://127.0.0.1:0"), cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Refresh(ctx, []string{"SPY"}, "1mo")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseUniverse(t *testing.T) {
	u, err := parseUniverse([]byte("symbols:\n  - spy\n  - ' qqq '\n  - SPY\n  - ''\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "QQQ"}, u.Symbols)
}

func TestParseUniverse_Empty(t *testing.T) {
	_, err := parseUniverse([]byte("symbols: []\n"))
	assert.Error(t, err)
}

func TestParseUniverse_EmbeddedDefault(t *testing.T) {
	u, err := parseUniverse(embeddedUniverse)
	require.NoError(t, err)
	assert.Contains(t, u.Symbols, "SPY")
	assert.Contains(t, u.Symbols, "BND")
}
