package relevance

import (
	"sort"

	"github.com/oselyuk/boardmate/internal/models"
)

// SelectRecent returns the last maxTurns messages by timestamp, ascending.
// Pure and side-effect free; also the fallback path for every failure mode of
// the semantic selector.
func SelectRecent(history []models.ConversationMessage, maxTurns int) []models.ConversationMessage {
	if len(history) == 0 || maxTurns <= 0 {
		return nil
	}
	out := sortByTimestamp(history)
	if len(out) > maxTurns {
		out = out[len(out)-maxTurns:]
	}
	return out
}

// sortByTimestamp returns a chronologically ordered copy. History is already
// insertion-ordered in practice; the re-sort is defensive. Stable so equal
// timestamps keep insertion order.
func sortByTimestamp(history []models.ConversationMessage) []models.ConversationMessage {
	out := make([]models.ConversationMessage, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
