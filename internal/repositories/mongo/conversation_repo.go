package mongo

import (
	"context"
	"time"

	"github.com/oselyuk/boardmate/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConversationRepository interface {
	EnsureConversation(ctx context.Context, conversationID, userID, channel string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.ConversationMessage) error
	History(ctx context.Context, conversationID string) ([]models.ConversationMessage, error)
	SaveEmbeddings(ctx context.Context, msgs []models.ConversationMessage) error
}

type conversationRepo struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) ConversationRepository {
	return &conversationRepo{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("conversation_messages"),
	}
}

func (r *conversationRepo) EnsureConversation(ctx context.Context, conversationID, userID, channel string) (*models.Conversation, error) {
	now := time.Now().UTC()

	res := r.conversations.FindOneAndUpdate(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{
			"$set": bson.M{"last_activity": now},
			"$setOnInsert": bson.M{
				"conversation_id": conversationID,
				"user_id":         userID,
				"channel":         channel,
				"created_at":      now,
			},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	)

	var conv models.Conversation
	if err := res.Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) AppendMessage(ctx context.Context, msg *models.ConversationMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	_, err := r.messages.InsertOne(ctx, msg)
	return err
}

// History returns the full message list for a conversation, ascending by
// timestamp. The context selector bounds what is forwarded to the model; the
// store keeps everything.
func (r *conversationRepo) History(ctx context.Context, conversationID string) ([]models.ConversationMessage, error) {
	cur, err := r.messages.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ConversationMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveEmbeddings persists embedding state backfilled by the selector so the
// same messages are not re-embedded (or re-attempted) on later turns.
func (r *conversationRepo) SaveEmbeddings(ctx context.Context, msgs []models.ConversationMessage) error {
	writes := make([]mongo.WriteModel, 0, len(msgs))
	for _, m := range msgs {
		if !m.Embedding.Attempted || m.MessageID == "" {
			continue
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"message_id": m.MessageID}).
			SetUpdate(bson.M{"$set": bson.M{"embedding": m.Embedding}}))
	}
	if len(writes) == 0 {
		return nil
	}
	_, err := r.messages.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}
