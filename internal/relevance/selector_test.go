package relevance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oselyuk/boardmate/internal/models"
)

var testBase = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeEmbedder returns canned vectors keyed by text. Unknown texts embed to
// the fallback vector so backfill always succeeds unless an error is forced.
type fakeEmbedder struct {
	vectors    map[string][]float32
	fallback   []float32
	embedErr   error
	batchErr   error
	batchCalls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) (map[string][]float32, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string][]float32, len(texts))
	for _, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[t] = v
		} else if f.fallback != nil {
			out[t] = f.fallback
		}
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func msgAt(role, content string, minute int) models.ConversationMessage {
	return models.ConversationMessage{
		MessageID: fmt.Sprintf("m-%s-%d", role, minute),
		Role:      role,
		Content:   content,
		Timestamp: testBase.Add(time.Duration(minute) * time.Minute),
	}
}

func newTestSelector(t *testing.T, cfg Config, emb *fakeEmbedder) *Selector {
	t.Helper()
	s, err := NewSelector(cfg, emb, quietLogger())
	require.NoError(t, err)
	return s
}

func assertChronological(t *testing.T, msgs []models.ConversationMessage) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp),
			"messages out of order at index %d", i)
	}
}

func assertSubsetOf(t *testing.T, subset, input []models.ConversationMessage) {
	t.Helper()
	ids := make(map[string]bool, len(input))
	for _, m := range input {
		ids[m.MessageID] = true
	}
	for _, m := range subset {
		assert.True(t, ids[m.MessageID], "message %s not in input", m.MessageID)
	}
}

func TestSelectRecent(t *testing.T) {
	history := []models.ConversationMessage{
		msgAt(models.RoleAssistant, "a", 2), // deliberately out of order
		msgAt(models.RoleUser, "q", 1),
		msgAt(models.RoleUser, "q2", 3),
	}

	out := SelectRecent(history, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Content)
	assert.Equal(t, "q2", out[1].Content)

	out = SelectRecent(history, 10)
	require.Len(t, out, 3)
	assertChronological(t, out)

	assert.Nil(t, SelectRecent(nil, 5))
	assert.Nil(t, SelectRecent(history, 0))
}

func TestSelectContextBlankQueryAndEmptyHistory(t *testing.T) {
	s := newTestSelector(t, DefaultConfig(), &fakeEmbedder{fallback: []float32{1, 0}})

	out, err := s.SelectContext(context.Background(), "   ", []models.ConversationMessage{msgAt(models.RoleUser, "q", 1)})
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = s.SelectContext(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSelectContextSemanticDisabledMatchesTimeBased(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableSemanticFiltering = false
	cfg.MaxContextTurns = 3
	s := newTestSelector(t, cfg, nil)

	var history []models.ConversationMessage
	for i := 0; i < 8; i++ {
		history = append(history, msgAt(models.RoleUser, fmt.Sprintf("q%d", i), i))
	}

	out, err := s.SelectContext(context.Background(), "anything at all", history)
	require.NoError(t, err)
	assert.Equal(t, SelectRecent(history, cfg.MaxContextTurns), out)
}

func TestSelectContextQueryEmbedFailureFallsBack(t *testing.T) {
	emb := &fakeEmbedder{embedErr: errors.New("embedding service unavailable")}
	cfg := DefaultConfig()
	cfg.MaxContextTurns = 4
	s := newTestSelector(t, cfg, emb)

	var history []models.ConversationMessage
	for i := 0; i < 10; i++ {
		history = append(history, msgAt(models.RoleUser, fmt.Sprintf("q%d", i), i))
	}

	out, err := s.SelectContext(context.Background(), "what changed", history)
	require.NoError(t, err)
	assert.Equal(t, SelectRecent(history, cfg.MaxContextTurns), out)
	assert.Zero(t, emb.batchCalls, "fallback must not attempt backfill")
}

func TestSelectContextSmallHistoryReturnedWhole(t *testing.T) {
	// Scenario: two messages under a cap of ten come back unchanged.
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	cfg := DefaultConfig()
	cfg.MaxContextTurns = 10
	s := newTestSelector(t, cfg, emb)

	history := []models.ConversationMessage{
		msgAt(models.RoleUser, "how many open bugs", 1),
		msgAt(models.RoleAssistant, "there are 12 open bugs", 2),
	}

	out, err := s.SelectContext(context.Background(), "break those down by severity", history)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "how many open bugs", out[0].Content)
	assert.Equal(t, "there are 12 open bugs", out[1].Content)
}

func TestSelectContextBoundsAndOrdering(t *testing.T) {
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	cfg := DefaultConfig()
	cfg.MaxContextTurns = 6
	cfg.MinRecentTurns = 2
	s := newTestSelector(t, cfg, emb)

	var history []models.ConversationMessage
	for i := 0; i < 30; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		history = append(history, msgAt(role, fmt.Sprintf("turn %d", i), i))
	}

	out, err := s.SelectContext(context.Background(), "any blocked features?", history)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), cfg.MaxContextTurns)
	assertChronological(t, out)
	assertSubsetOf(t, out, history)
}

func TestSelectContextPronounWidensRecencyFloor(t *testing.T) {
	// Irrelevant vectors everywhere: only the recency guarantee can keep the
	// trailing messages in.
	emb := &fakeEmbedder{fallback: []float32{0, 1}, vectors: map[string][]float32{
		"who is assigned to that one?": {1, 0},
	}}
	cfg := DefaultConfig()
	cfg.MinRecentTurns = 1
	cfg.MaxContextTurns = 6
	cfg.RelevanceThreshold = 0.8
	cfg.EnableQueryDeduplication = false
	s := newTestSelector(t, cfg, emb)

	var history []models.ConversationMessage
	for i := 0; i < 12; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		history = append(history, msgAt(role, fmt.Sprintf("turn %d", i), i))
	}

	out, err := s.SelectContext(context.Background(), "who is assigned to that one?", history)
	require.NoError(t, err)

	got := make(map[string]bool)
	for _, m := range out {
		got[m.MessageID] = true
	}
	for _, m := range history[len(history)-4:] {
		assert.True(t, got[m.MessageID], "recency floor must keep %s", m.MessageID)
	}
}

func TestSelectContextRelevantOlderMessagesFillRemainingSlots(t *testing.T) {
	// 20 alternating messages, floor 4, cap 6, threshold 0.8: the last 4 are
	// guaranteed and at most 2 older messages qualify on similarity.
	relevant := []float32{1, 0}
	irrelevant := []float32{0, 1}

	emb := &fakeEmbedder{fallback: irrelevant, vectors: map[string][]float32{
		"query": relevant,
		"old relevant 1": relevant,
		"old relevant 2": relevant,
		"old relevant 3": relevant,
	}}
	cfg := DefaultConfig()
	cfg.MinRecentTurns = 4
	cfg.MaxContextTurns = 6
	cfg.RelevanceThreshold = 0.8
	cfg.EnableQueryDeduplication = false
	s := newTestSelector(t, cfg, emb)

	var history []models.ConversationMessage
	for i := 0; i < 20; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		content := fmt.Sprintf("turn %d", i)
		switch i {
		case 2:
			content = "old relevant 1"
		case 5:
			content = "old relevant 2"
		case 8:
			content = "old relevant 3"
		}
		history = append(history, msgAt(role, content, i))
	}

	out, err := s.SelectContext(context.Background(), "query", history)
	require.NoError(t, err)
	require.Len(t, out, 6)
	assertChronological(t, out)

	got := make(map[string]bool)
	for _, m := range out {
		got[m.MessageID] = true
	}
	for _, m := range history[16:] {
		assert.True(t, got[m.MessageID], "most recent 4 must all be present")
	}

	olderCount := 0
	for _, m := range out {
		if m.Timestamp.Before(history[16].Timestamp) {
			olderCount++
			sim, err := CosineSimilarity(emb.vectors["query"], m.Embedding.Vector)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, sim, 0.8)
		}
	}
	assert.Equal(t, 2, olderCount)
}

func TestSelectContextCollapsesRepeatedQuestion(t *testing.T) {
	// A near-paraphrase (similarity 0.95) of an earlier question drops the
	// earlier Q&A pair and keeps the later one.
	first := []float32{0.95, 0.31225}
	repeat := []float32{1, 0}
	neutral := []float32{0, 1}

	emb := &fakeEmbedder{fallback: neutral, vectors: map[string][]float32{
		"how many bugs are open":   first,
		"what is the open bug count": repeat,
	}}
	cfg := DefaultConfig()
	cfg.MaxContextTurns = 10
	cfg.MinRecentTurns = 2
	cfg.RelevanceThreshold = 0
	cfg.QueryDuplicationThreshold = 0.9
	s := newTestSelector(t, cfg, emb)

	history := []models.ConversationMessage{
		msgAt(models.RoleUser, "how many bugs are open", 1),
		msgAt(models.RoleAssistant, "12 bugs are open", 2),
		msgAt(models.RoleUser, "who owns the payments board", 3),
		msgAt(models.RoleAssistant, "dana owns the payments board", 4),
		msgAt(models.RoleUser, "what is the open bug count", 5),
		msgAt(models.RoleAssistant, "still 12 open bugs", 6),
	}

	out, err := s.SelectContext(context.Background(), "and how many are critical?", history)
	require.NoError(t, err)

	contents := make([]string, 0, len(out))
	for _, m := range out {
		contents = append(contents, m.Content)
	}
	assert.NotContains(t, contents, "how many bugs are open")
	assert.NotContains(t, contents, "12 bugs are open")
	assert.Contains(t, contents, "what is the open bug count")
	assert.Contains(t, contents, "still 12 open bugs")
	assert.Contains(t, contents, "who owns the payments board")
}

func TestSelectContextBatchFailureMarksAttemptedPermanently(t *testing.T) {
	emb := &fakeEmbedder{
		fallback: []float32{1, 0},
		batchErr: errors.New("too many requests"),
	}
	cfg := DefaultConfig()
	s := newTestSelector(t, cfg, emb)

	history := []models.ConversationMessage{
		msgAt(models.RoleUser, "first question", 1),
		msgAt(models.RoleAssistant, "first answer", 2),
	}

	_, err := s.SelectContext(context.Background(), "next question", history)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.batchCalls)
	for _, m := range history {
		assert.True(t, m.Embedding.Attempted)
		assert.False(t, m.Embedding.Ready())
	}

	// Attempted messages are never retried, even after the client recovers.
	emb.batchErr = nil
	_, err = s.SelectContext(context.Background(), "another question", history)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.batchCalls)
}

func TestSelectContextDimensionMismatchSurfaces(t *testing.T) {
	emb := &fakeEmbedder{
		fallback: []float32{0, 1, 0},              // history vectors: 3 dims
		vectors:  map[string][]float32{"q": {1, 0}}, // query vector: 2 dims
	}
	cfg := DefaultConfig()
	cfg.MinRecentTurns = 0
	s := newTestSelector(t, cfg, emb)

	history := []models.ConversationMessage{
		msgAt(models.RoleUser, "older question", 1),
		msgAt(models.RoleAssistant, "older answer", 2),
	}

	_, err := s.SelectContext(context.Background(), "q", history)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCollapseDuplicateQueries(t *testing.T) {
	a := []float32{0.95, 0.31225}
	b := []float32{1, 0}
	far := []float32{0.5, 0.8660254}

	withVec := func(m models.ConversationMessage, vec []float32) models.ConversationMessage {
		m.Embedding = models.EmbeddingReady(vec)
		return m
	}

	t.Run("drops earlier pair, keeps later", func(t *testing.T) {
		selected := []models.ConversationMessage{
			withVec(msgAt(models.RoleUser, "q1", 1), a),
			withVec(msgAt(models.RoleAssistant, "a1", 2), far),
			withVec(msgAt(models.RoleUser, "q1 again", 3), b),
			withVec(msgAt(models.RoleAssistant, "a1 again", 4), far),
		}
		out, err := collapseDuplicateQueries(selected, 0.9)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "q1 again", out[0].Content)
		assert.Equal(t, "a1 again", out[1].Content)
	})

	t.Run("similarity below threshold keeps both", func(t *testing.T) {
		selected := []models.ConversationMessage{
			withVec(msgAt(models.RoleUser, "q1", 1), b),
			withVec(msgAt(models.RoleUser, "q2", 2), far), // similarity 0.5
		}
		out, err := collapseDuplicateQueries(selected, 0.9)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("messages without embeddings are never dropped", func(t *testing.T) {
		selected := []models.ConversationMessage{
			msgAt(models.RoleUser, "q1", 1),
			msgAt(models.RoleUser, "q1", 2),
		}
		out, err := collapseDuplicateQueries(selected, 0.9)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("only following assistant reply is dropped with the question", func(t *testing.T) {
		selected := []models.ConversationMessage{
			withVec(msgAt(models.RoleUser, "q1", 1), a),
			withVec(msgAt(models.RoleUser, "unrelated", 2), far),
			withVec(msgAt(models.RoleUser, "q1 again", 3), b),
		}
		out, err := collapseDuplicateQueries(selected, 0.9)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "unrelated", out[0].Content)
		assert.Equal(t, "q1 again", out[1].Content)
	})
}

func TestHasReferenceMarker(t *testing.T) {
	assert.True(t, hasReferenceMarker("who owns that one?"))
	assert.True(t, hasReferenceMarker("what is IT blocked on"))
	assert.True(t, hasReferenceMarker("show me the previous sprint"))
	assert.False(t, hasReferenceMarker("list all open bugs"))
	// "it" inside a word is not a marker
	assert.False(t, hasReferenceMarker("show critical items"))
}
