package refine

import (
	"fmt"
	"strings"
)

// Config holds the defaults an orchestrator starts from. It is passed by value
// and never mutated by the engine.
type Config struct {
	Delimiter      string
	SortKey        string
	SearchKey      string
	MatchKey       string
	Qualifier      string // table alias prepended to unqualified refiner names
	SearchLanguage string // text search configuration for full-text clauses
	Matching       bool   // allow clients to choose search columns
}

func DefaultConfig() Config {
	return Config{
		Delimiter:      ",",
		SortKey:        "sort",
		SearchKey:      "search",
		MatchKey:       "match",
		SearchLanguage: "simple",
	}
}

func (c Config) validate() error {
	if c.Delimiter == "" {
		return fmt.Errorf("%w: empty delimiter", ErrInvalidConfig)
	}
	keys := map[string]string{"sort": c.SortKey, "search": c.SearchKey, "match": c.MatchKey}
	for label, key := range keys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: empty %s key", ErrInvalidConfig, label)
		}
	}
	if c.SortKey == c.SearchKey || c.SortKey == c.MatchKey || c.SearchKey == c.MatchKey {
		return fmt.Errorf("%w: sort, search and match keys must differ", ErrInvalidConfig)
	}
	for _, r := range c.SearchLanguage {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_') {
			return fmt.Errorf("%w: search language %q", ErrInvalidConfig, c.SearchLanguage)
		}
	}
	return nil
}
