package config

import "fmt"

// Limits holds resource settings for the store, query runner, and
// observer manager. Only QueryConcurrency is consumed outside this package
// (as the query runner's worker bound); the other fields are validated
// here but nothing enforces them.
type Limits struct {
	MaxFactsInStore       int `yaml:"max_facts_in_store" json:"max_facts_in_store"`             // in-memory arena ceiling
	MaxConcurrentObservers int `yaml:"max_concurrent_observers" json:"max_concurrent_observers"` // observer manager ceiling
	QueryConcurrency      int `yaml:"query_concurrency" json:"query_concurrency"`               // errgroup worker bound per specification evaluation
	FactLogMaxBytes       int `yaml:"fact_log_max_bytes" json:"fact_log_max_bytes"`             // ingest watcher rotation threshold
	PurgeBatchSize        int `yaml:"purge_batch_size" json:"purge_batch_size"`                 // facts removed per purge sweep iteration
}

// ValidateLimits checks that limits are within acceptable ranges.
func (c *Config) ValidateLimits() error {
	if c.Limits.MaxFactsInStore < 1000 {
		return fmt.Errorf("max_facts_in_store must be >= 1000")
	}
	if c.Limits.MaxConcurrentObservers < 1 {
		return fmt.Errorf("max_concurrent_observers must be >= 1")
	}
	if c.Limits.QueryConcurrency < 1 {
		return fmt.Errorf("query_concurrency must be >= 1")
	}
	if c.Limits.PurgeBatchSize < 1 {
		return fmt.Errorf("purge_batch_size must be >= 1")
	}
	return nil
}

// EnforceLimits returns the limits as a name-to-value map. It has no
// callers in this module.
func (c *Config) EnforceLimits() map[string]int {
	return map[string]int{
		"max_facts":            c.Limits.MaxFactsInStore,
		"max_observers":         c.Limits.MaxConcurrentObservers,
		"query_concurrency":     c.Limits.QueryConcurrency,
		"fact_log_max_bytes":    c.Limits.FactLogMaxBytes,
		"purge_batch_size":      c.Limits.PurgeBatchSize,
	}
}
