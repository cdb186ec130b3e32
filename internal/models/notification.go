package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RuleID     string             `bson:"rule_id" json:"rule_id"`
	WorkItemID int                `bson:"work_item_id" json:"work_item_id"`
	TeamID     string             `bson:"team_id" json:"team_id"`
	ChannelID  string             `bson:"channel_id" json:"channel_id"`

	Status  string `bson:"status" json:"status"` // sent|failed|throttled
	Message string `bson:"message,omitempty" json:"message,omitempty"`

	SentAt    time.Time `bson:"sent_at" json:"sent_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
