package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oselyuk/boardmate/internal/models"
	mongorepo "github.com/oselyuk/boardmate/internal/repositories/mongo"
	"github.com/oselyuk/boardmate/internal/utils"
)

type ConversationService interface {
	Ensure(ctx context.Context, conversationID, userID, channel string) (*models.Conversation, error)
	Append(ctx context.Context, conversationID, role, content string) (*models.ConversationMessage, error)
	History(ctx context.Context, conversationID string) ([]models.ConversationMessage, error)
	SaveEmbeddings(ctx context.Context, msgs []models.ConversationMessage) error
}

type conversationService struct {
	convos mongorepo.ConversationRepository
}

func NewConversationService(convos mongorepo.ConversationRepository) ConversationService {
	return &conversationService{convos: convos}
}

func (s *conversationService) Ensure(ctx context.Context, conversationID, userID, channel string) (*models.Conversation, error) {
	const op = "ConversationService.Ensure"

	if conversationID == "" || userID == "" || channel == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id, user_id, and channel are required", nil)
	}

	conv, err := s.convos.EnsureConversation(ctx, conversationID, userID, channel)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to ensure conversation", err)
	}
	return conv, nil
}

func (s *conversationService) Append(ctx context.Context, conversationID, role, content string) (*models.ConversationMessage, error) {
	const op = "ConversationService.Append"

	if conversationID == "" || role == "" || content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id, role, and content are required", nil)
	}

	msg := &models.ConversationMessage{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Embedding:      models.EmbeddingNotAttempted(),
		Timestamp:      time.Now().UTC(),
	}

	if err := s.convos.AppendMessage(ctx, msg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to append message", err)
	}
	return msg, nil
}

func (s *conversationService) History(ctx context.Context, conversationID string) ([]models.ConversationMessage, error) {
	const op = "ConversationService.History"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}

	msgs, err := s.convos.History(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load history", err)
	}
	return msgs, nil
}

func (s *conversationService) SaveEmbeddings(ctx context.Context, msgs []models.ConversationMessage) error {
	const op = "ConversationService.SaveEmbeddings"

	if err := s.convos.SaveEmbeddings(ctx, msgs); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save embeddings", err)
	}
	return nil
}
