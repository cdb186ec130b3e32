package relevance

import "github.com/oselyuk/boardmate/internal/models"

// collapseDuplicateQueries removes an earlier user question when a
// semantically equivalent one appears later in the selected window, dropping
// its immediately following assistant reply with it. The later occurrence is
// always the one retained. Messages without a usable embedding are never
// dropped.
func collapseDuplicateQueries(selected []models.ConversationMessage, threshold float64) ([]models.ConversationMessage, error) {
	if len(selected) < 2 {
		return selected, nil
	}

	excluded := make([]bool, len(selected))
	for i := 0; i < len(selected); i++ {
		if excluded[i] || selected[i].Role != models.RoleUser || !selected[i].Embedding.Ready() {
			continue
		}
		for j := i + 1; j < len(selected); j++ {
			if selected[j].Role != models.RoleUser || !selected[j].Embedding.Ready() {
				continue
			}
			sim, err := CosineSimilarity(selected[i].Embedding.Vector, selected[j].Embedding.Vector)
			if err != nil {
				return nil, err
			}
			if sim >= threshold {
				excluded[i] = true
				// Drop the stale Q&A pair together.
				if i+1 < len(selected) && selected[i+1].Role == models.RoleAssistant {
					excluded[i+1] = true
				}
				break // first duplicate found wins
			}
		}
	}

	out := make([]models.ConversationMessage, 0, len(selected))
	for i, m := range selected {
		if !excluded[i] {
			out = append(out, m)
		}
	}
	return out, nil
}
