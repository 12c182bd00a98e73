package inclusion

import (
	"time"

	"github.com/sergeknystautas/landed/internal/hosting"
)

const (
	// MaxMissingSample is the fixed cap on commits reported in missing_sample.
	MaxMissingSample = 3

	DefaultMaxConcurrency     = 6
	DefaultRequestTimeout     = 15 * time.Second
	DefaultSearchPageSize     = 20
	DefaultMaxBranchesPerTerm = 10
	DefaultCacheSize          = 512
)

// Settings tune the engine. Zero values fall back to the defaults above.
type Settings struct {
	// MaxConcurrency caps in-flight target resolutions across every batch
	// sharing one Orchestrator.
	MaxConcurrency int
	// RequestTimeout is the deadline attached to each outbound call.
	RequestTimeout time.Duration
	// SearchPageSize is the commit-search page size (1..50).
	SearchPageSize int
	// MaxBranchesPerTerm caps source branches discovered per search term.
	MaxBranchesPerTerm int
	// CacheTTL enables the probe cache when positive.
	CacheTTL  time.Duration
	CacheSize int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = DefaultMaxConcurrency
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.SearchPageSize <= 0 {
		s.SearchPageSize = DefaultSearchPageSize
	}
	if s.SearchPageSize > hosting.MaxPerPage {
		s.SearchPageSize = hosting.MaxPerPage
	}
	if s.MaxBranchesPerTerm <= 0 {
		s.MaxBranchesPerTerm = DefaultMaxBranchesPerTerm
	}
	if s.CacheSize <= 0 {
		s.CacheSize = DefaultCacheSize
	}
	return s
}
