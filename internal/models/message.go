package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// EmbeddingState distinguishes "never tried" from "tried and failed" so a
// message whose content could not be embedded is never retried. Use the
// constructors; the zero value means not attempted.
type EmbeddingState struct {
	Attempted bool      `bson:"attempted" json:"attempted"`
	Vector    []float32 `bson:"vector,omitempty" json:"vector,omitempty"`
}

func EmbeddingNotAttempted() EmbeddingState { return EmbeddingState{} }

func EmbeddingReady(vec []float32) EmbeddingState {
	return EmbeddingState{Attempted: true, Vector: vec}
}

func EmbeddingFailed() EmbeddingState { return EmbeddingState{Attempted: true} }

// Ready reports whether a usable vector is present.
func (e EmbeddingState) Ready() bool { return e.Attempted && len(e.Vector) > 0 }

type ConversationMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID      string             `bson:"message_id" json:"message_id"` // uuid v4
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`

	Role    string `bson:"role" json:"role"` // user|assistant|system
	Content string `bson:"content" json:"content"`

	Embedding EmbeddingState `bson:"embedding" json:"-"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"` // uuid v4
	UserID         string             `bson:"user_id" json:"user_id"`
	Channel        string             `bson:"channel" json:"channel"` // teams|web|ws

	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastActivity time.Time `bson:"last_activity" json:"last_activity"`
}
