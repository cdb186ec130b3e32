// Package relevance selects a bounded, relevant subset of conversation
// history to forward to the language model. It balances strict recency (for
// pronoun and reference resolution) against semantic relevance (for call-backs
// to topics discussed many turns earlier), and collapses repeated questions so
// the context window is not wasted on stale duplicates.
package relevance

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/models"
)

// pronounRecencyFloor is the widened trailing window for queries that refer
// back to something: the preceding question/answer pair plus one more pair of
// margin.
const pronounRecencyFloor = 4

// referenceMarkers is a fixed English list of pronouns and demonstratives.
// Known limitation: substring matching on English only; broadening it changes
// selection behavior, so it stays as shipped.
var referenceMarkers = []string{
	"it",
	"them",
	"their",
	"they",
	"that item",
	"that one",
	"this one",
	"the previous",
	"the last one",
	"this feature",
}

// Selector chooses context for one turn at a time. It holds no per-call
// state, so one instance serves any number of conversations, but callers must
// serialize successive turns of the same conversation.
type Selector struct {
	cfg      Config
	embedder EmbeddingClient
	log      *logrus.Logger
}

func NewSelector(cfg Config, embedder EmbeddingClient, log *logrus.Logger) (*Selector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EnableSemanticFiltering && embedder == nil {
		return nil, errors.New("relevance: embedding client is required when semantic filtering is enabled")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Selector{cfg: cfg, embedder: embedder, log: log}, nil
}

// SelectContext returns the subset of history to forward alongside
// currentQuery: always chronologically ordered, always a subset of the input,
// never more than MaxContextTurns messages. Embedding failures degrade to
// pure recency selection instead of propagating. The only error returned is a
// dimension mismatch between embedding vectors, which signals an
// embedding-model inconsistency upstream.
//
// Messages that get embedded along the way are updated in place (vector and
// attempted flag), so the caller can persist them and avoid re-embedding on
// the next turn.
func (s *Selector) SelectContext(ctx context.Context, currentQuery string, history []models.ConversationMessage) ([]models.ConversationMessage, error) {
	if strings.TrimSpace(currentQuery) == "" || len(history) == 0 {
		return nil, nil
	}
	if !s.cfg.EnableSemanticFiltering {
		return SelectRecent(history, s.cfg.MaxContextTurns), nil
	}

	minRecent := s.cfg.MinRecentTurns
	if hasReferenceMarker(currentQuery) && minRecent < pronounRecencyFloor {
		minRecent = pronounRecencyFloor
	}

	queryVec, err := s.embedder.Embed(ctx, currentQuery)
	if err != nil {
		// Without a query vector there is nothing to score against; partial
		// semantic scoring is worse than an honest recency window.
		s.log.WithError(err).Warn("query embedding failed, falling back to recency selection")
		return SelectRecent(history, s.cfg.MaxContextTurns), nil
	}

	s.backfillEmbeddings(ctx, history)

	ordered := sortByTimestamp(history)
	split := len(ordered) - minRecent
	if split < 0 {
		split = 0
	}
	older, recent := ordered[:split], ordered[split:]

	take := s.cfg.MaxContextTurns - len(recent)
	if take < 0 {
		take = 0
	}
	scored, err := s.scoreCandidates(queryVec, older)
	if err != nil {
		return nil, err
	}
	if len(scored) > take {
		scored = scored[:take]
	}

	selected := sortByTimestamp(append(scored, recent...))
	if len(selected) > s.cfg.MaxContextTurns {
		// Only possible when the widened recency floor exceeds the cap; keep
		// the most recent messages.
		selected = selected[len(selected)-s.cfg.MaxContextTurns:]
	}

	if s.cfg.EnableQueryDeduplication {
		selected, err = collapseDuplicateQueries(selected, s.cfg.QueryDuplicationThreshold)
		if err != nil {
			return nil, err
		}
	}
	return selected, nil
}

// backfillEmbeddings embeds every message that has never been attempted, in
// one batched call, updating the slice in place. A message that fails to
// embed is marked attempted without a vector and is never retried.
func (s *Selector) backfillEmbeddings(ctx context.Context, history []models.ConversationMessage) {
	var texts []string
	var pending []int
	for i := range history {
		if history[i].Embedding.Attempted || strings.TrimSpace(history[i].Content) == "" {
			continue
		}
		texts = append(texts, history[i].Content)
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.log.WithError(err).WithField("count", len(pending)).
			Warn("batch embedding failed, excluding messages from relevance scoring")
		for _, i := range pending {
			history[i].Embedding = models.EmbeddingFailed()
		}
		return
	}

	for _, i := range pending {
		if vec, ok := vectors[history[i].Content]; ok && len(vec) > 0 {
			history[i].Embedding = models.EmbeddingReady(vec)
		} else {
			history[i].Embedding = models.EmbeddingFailed()
		}
	}
}

// scoreCandidates returns candidates scoring at or above RelevanceThreshold,
// best first. Candidates without a usable embedding are skipped.
func (s *Selector) scoreCandidates(queryVec []float32, candidates []models.ConversationMessage) ([]models.ConversationMessage, error) {
	type scored struct {
		msg   models.ConversationMessage
		score float64
	}
	var kept []scored
	for _, m := range candidates {
		if !m.Embedding.Ready() {
			continue
		}
		sim, err := CosineSimilarity(queryVec, m.Embedding.Vector)
		if err != nil {
			return nil, err
		}
		if sim >= s.cfg.RelevanceThreshold {
			kept = append(kept, scored{msg: m, score: sim})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	out := make([]models.ConversationMessage, 0, len(kept))
	for _, k := range kept {
		out = append(out, k.msg)
	}
	return out, nil
}

func hasReferenceMarker(query string) bool {
	q := strings.ToLower(query)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	for _, marker := range referenceMarkers {
		if strings.ContainsRune(marker, ' ') {
			if strings.Contains(q, marker) {
				return true
			}
		} else if words[marker] {
			return true
		}
	}
	return false
}
