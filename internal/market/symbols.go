// internal/market/symbols.go
//
// Symbol universe for batch refresh and export.
//
// Initialization behavior (LoadUniverse):
//  1. If SYMBOLS_FILE is set, load the YAML file it points at.
//  2. Otherwise fall back to the embedded default universe
//     (default_symbols.yaml), the global ETF set the dashboards track.
//
// Symbols are normalized to upper case; blanks are dropped.

package market

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_symbols.yaml
var embeddedUniverse []byte

// Universe is the configured symbol list.
type Universe struct {
	Symbols []string `yaml:"symbols"`
}

var (
	universeOnce sync.Once
	universe     Universe
	universeErr  error
)

// LoadUniverse loads the symbol universe exactly once.
// Returns an error if the resulting list is empty.
func LoadUniverse() (Universe, error) {
	universeOnce.Do(func() {
		raw := embeddedUniverse
		if path := os.Getenv("SYMBOLS_FILE"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				universeErr = fmt.Errorf("read symbols file: %w", err)
				return
			}
			raw = b
		}
		universe, universeErr = parseUniverse(raw)
	})
	return universe, universeErr
}

// parseUniverse decodes and normalizes a YAML universe document.
func parseUniverse(raw []byte) (Universe, error) {
	var u Universe
	if err := yaml.Unmarshal(raw, &u); err != nil {
		return Universe{}, fmt.Errorf("parse symbols yaml: %w", err)
	}
	var out []string
	seen := make(map[string]struct{})
	for _, s := range u.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return Universe{}, fmt.Errorf("symbols universe is empty")
	}
	return Universe{Symbols: out}, nil
}
