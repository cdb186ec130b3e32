package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/oselyuk/boardmate/internal/relevance"
)

// ContextSelection builds the context-selection config from CONTEXT_* env
// vars on top of the engine defaults. Invalid values fail here, at startup,
// never mid-turn.
func ContextSelection() (relevance.Config, error) {
	cfg := relevance.DefaultConfig()

	if v := os.Getenv("CONTEXT_SEMANTIC_FILTERING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("CONTEXT_SEMANTIC_FILTERING: %w", err)
		}
		cfg.EnableSemanticFiltering = b
	}
	if v := os.Getenv("CONTEXT_MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("CONTEXT_MAX_TURNS: %w", err)
		}
		cfg.MaxContextTurns = n
	}
	if v := os.Getenv("CONTEXT_MIN_RECENT_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("CONTEXT_MIN_RECENT_TURNS: %w", err)
		}
		cfg.MinRecentTurns = n
	}
	if v := os.Getenv("CONTEXT_RELEVANCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("CONTEXT_RELEVANCE_THRESHOLD: %w", err)
		}
		cfg.RelevanceThreshold = f
	}
	if v := os.Getenv("CONTEXT_QUERY_DEDUP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("CONTEXT_QUERY_DEDUP: %w", err)
		}
		cfg.EnableQueryDeduplication = b
	}
	if v := os.Getenv("CONTEXT_DEDUP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("CONTEXT_DEDUP_THRESHOLD: %w", err)
		}
		cfg.QueryDuplicationThreshold = f
	}

	return cfg, cfg.Validate()
}
