package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max turns", func(c *Config) { c.MaxContextTurns = 0 }},
		{"negative max turns", func(c *Config) { c.MaxContextTurns = -3 }},
		{"negative min recent", func(c *Config) { c.MinRecentTurns = -1 }},
		{"min recent above max", func(c *Config) { c.MinRecentTurns = c.MaxContextTurns + 1 }},
		{"relevance threshold below range", func(c *Config) { c.RelevanceThreshold = -0.1 }},
		{"relevance threshold above range", func(c *Config) { c.RelevanceThreshold = 1.5 }},
		{"duplication threshold below range", func(c *Config) { c.QueryDuplicationThreshold = -0.01 }},
		{"duplication threshold above range", func(c *Config) { c.QueryDuplicationThreshold = 2 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewSelectorRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxContextTurns = 0
	_, err := NewSelector(cfg, &fakeEmbedder{}, nil)
	assert.Error(t, err)
}

func TestNewSelectorRequiresEmbedderWhenSemantic(t *testing.T) {
	_, err := NewSelector(DefaultConfig(), nil, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.EnableSemanticFiltering = false
	_, err = NewSelector(cfg, nil, nil)
	assert.NoError(t, err)
}
