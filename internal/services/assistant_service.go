package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/models"
	"github.com/oselyuk/boardmate/internal/providers/llm"
	"github.com/oselyuk/boardmate/internal/relevance"
	"github.com/oselyuk/boardmate/internal/utils"
)

const systemPrompt = "You are boardmate, an assistant that answers questions about Azure DevOps work items. " +
	"Answer concisely using the work item context and conversation below. " +
	"If the context does not contain the answer, say so instead of guessing."

// workItemRefPattern matches inline references like #1234 or AB#1234.
var workItemRefPattern = regexp.MustCompile(`(?i)(?:AB)?#(\d{1,7})`)

type AssistantService interface {
	// Answer serves one turn: selects context from history, gathers work item
	// context, streams the model answer (publishing chunks for WebSocket
	// subscribers), and persists both sides of the turn.
	Answer(ctx context.Context, conversationID, userID, channel, question string) (string, error)
}

type assistantService struct {
	convos    ConversationService
	selector  *relevance.Selector
	workItems WorkItemService
	llm       llm.Provider
	rdb       *redis.Client
	log       *logrus.Logger
}

func NewAssistantService(convos ConversationService, selector *relevance.Selector, workItems WorkItemService, provider llm.Provider, rdb *redis.Client, log *logrus.Logger) AssistantService {
	return &assistantService{
		convos:    convos,
		selector:  selector,
		workItems: workItems,
		llm:       provider,
		rdb:       rdb,
		log:       log,
	}
}

func (s *assistantService) Answer(ctx context.Context, conversationID, userID, channel, question string) (string, error) {
	const op = "AssistantService.Answer"

	if conversationID == "" || userID == "" || strings.TrimSpace(question) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "conversation_id, user_id, and question are required", nil)
	}

	if _, err := s.convos.Ensure(ctx, conversationID, userID, channel); err != nil {
		return "", err
	}

	// Callers serialize turns per conversation, so the history snapshot is
	// stable for the duration of this call.
	history, err := s.convos.History(ctx, conversationID)
	if err != nil {
		// Degrade to an empty context rather than failing the turn.
		s.log.WithError(err).WithField("conversation_id", conversationID).
			Warn("history load failed, answering without prior context")
		history = nil
	}

	selected, err := s.selector.SelectContext(ctx, question, history)
	if err != nil {
		// Only a dimension mismatch reaches here: an embedding model
		// inconsistency, not a user condition.
		return "", utils.E(utils.CodeInternal, op, "context selection failed", err)
	}

	// Persist embeddings backfilled during selection, best effort.
	if len(history) > 0 {
		if err := s.convos.SaveEmbeddings(ctx, history); err != nil {
			s.log.WithError(err).Warn("failed to persist backfilled embeddings")
		}
	}

	if _, err := s.convos.Append(ctx, conversationID, models.RoleUser, question); err != nil {
		s.log.WithError(err).Warn("failed to persist user turn")
	}

	prompt := buildPrompt(s.workItemContext(ctx, question), selected, question)

	respCh := "conversation:" + conversationID + ":response"
	chunks, errs := s.llm.StreamAnswer(ctx, prompt)

	var full strings.Builder
	seq := int64(0)
	for chunk := range chunks {
		seq++
		full.WriteString(chunk)

		payload, _ := json.Marshal(map[string]any{
			"type":  "answer_chunk",
			"seq":   seq,
			"chunk": chunk,
		})
		_ = s.rdb.Publish(ctx, respCh, string(payload)).Err()
	}

	var streamErr error
	select {
	case streamErr = <-errs:
	default:
	}
	if streamErr != nil {
		s.log.WithError(streamErr).Error("llm stream failed")
		_ = s.rdb.Publish(ctx, respCh, `{"type":"error","code":"UNAVAILABLE","message":"answer generation failed"}`).Err()
		return "", utils.E(utils.CodeUnavailable, op, "answer generation failed", streamErr)
	}

	answer := full.String()
	if _, err := s.convos.Append(ctx, conversationID, models.RoleAssistant, answer); err != nil {
		s.log.WithError(err).Warn("failed to persist assistant turn")
	}

	donePayload, _ := json.Marshal(map[string]any{
		"type":        "answer_complete",
		"full_answer": answer,
	})
	_ = s.rdb.Publish(ctx, respCh, string(donePayload)).Err()

	return answer, nil
}

// workItemContext resolves explicit #id references plus semantically related
// items from the vector index into prompt lines. Best effort: a failure here
// costs context, never the turn.
func (s *assistantService) workItemContext(ctx context.Context, question string) []string {
	var lines []string
	seen := make(map[int]bool)

	for _, match := range workItemRefPattern.FindAllStringSubmatch(question, 5) {
		id, err := strconv.Atoi(match[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true

		item, err := s.workItems.Get(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("work_item_id", id).Debug("referenced work item unavailable")
			continue
		}
		lines = append(lines, formatWorkItem(item))
	}

	related, err := s.workItems.FindRelated(ctx, question, 3)
	if err != nil {
		s.log.WithError(err).Debug("related work item search unavailable")
		return lines
	}
	for _, r := range related {
		if seen[r.ADOID] {
			continue
		}
		seen[r.ADOID] = true
		lines = append(lines, formatWorkItem(&r.WorkItem))
	}
	return lines
}

func formatWorkItem(item *models.WorkItem) string {
	line := fmt.Sprintf("#%d [%s/%s] %s", item.ADOID, item.Type, item.State, item.Title)
	if item.AssignedTo != "" {
		line += " (assigned to " + item.AssignedTo + ")"
	}
	if item.Severity != "" {
		line += " severity " + item.Severity
	}
	return line
}

func buildPrompt(workItems []string, context []models.ConversationMessage, question string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n")

	if len(workItems) > 0 {
		b.WriteString("\nWork items:\n")
		for _, line := range workItems {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(context) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range context {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser question:\n")
	b.WriteString(question)
	return b.String()
}
