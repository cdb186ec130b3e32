package relevance

import "fmt"

// Config controls context selection. Validate before use; a Selector refuses
// to be built from an invalid config rather than misbehaving at query time.
type Config struct {
	// EnableSemanticFiltering turns relevance scoring on. When false every
	// selection is purely recency based.
	EnableSemanticFiltering bool

	// MaxContextTurns is the hard cap on messages returned per selection.
	MaxContextTurns int

	// MinRecentTurns is the trailing window that is always kept regardless of
	// relevance score. Widened to at least 4 for queries containing pronouns
	// or demonstratives.
	MinRecentTurns int

	// RelevanceThreshold is the minimum cosine similarity for an older
	// message to qualify as context.
	RelevanceThreshold float64

	// EnableQueryDeduplication drops an earlier user question (and its reply)
	// when a near-identical question appears later in the selected window.
	EnableQueryDeduplication bool

	// QueryDuplicationThreshold is the minimum similarity between two user
	// queries to treat them as duplicates.
	QueryDuplicationThreshold float64
}

func DefaultConfig() Config {
	return Config{
		EnableSemanticFiltering:   true,
		MaxContextTurns:           10,
		MinRecentTurns:            2,
		RelevanceThreshold:        0.75,
		EnableQueryDeduplication:  true,
		QueryDuplicationThreshold: 0.92,
	}
}

func (c Config) Validate() error {
	if c.MaxContextTurns <= 0 {
		return fmt.Errorf("relevance: MaxContextTurns must be > 0, got %d", c.MaxContextTurns)
	}
	if c.MinRecentTurns < 0 || c.MinRecentTurns > c.MaxContextTurns {
		return fmt.Errorf("relevance: MinRecentTurns must be in [0, MaxContextTurns=%d], got %d",
			c.MaxContextTurns, c.MinRecentTurns)
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance: RelevanceThreshold must be in [0, 1], got %v", c.RelevanceThreshold)
	}
	if c.QueryDuplicationThreshold < 0 || c.QueryDuplicationThreshold > 1 {
		return fmt.Errorf("relevance: QueryDuplicationThreshold must be in [0, 1], got %v", c.QueryDuplicationThreshold)
	}
	return nil
}
