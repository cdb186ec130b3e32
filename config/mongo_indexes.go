package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	messages := db.Collection("conversation_messages")
	_, err := messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("by_conversation_ts"),
		},
		{
			Keys: bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_message_id").
				SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	conversations := db.Collection("conversations")
	_, err = conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_conversation_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "last_activity", Value: -1}},
			Options: options.Index().SetName("by_user_activity"),
		},
	})
	if err != nil {
		return err
	}

	notifications := db.Collection("notifications")
	_, err = notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// TTL index: expire at ExpiresAt (must be Date)
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "rule_id", Value: 1}, {Key: "work_item_id", Value: 1}, {Key: "sent_at", Value: -1}},
			Options: options.Index().SetName("by_rule_item_sent"),
		},
	})
	return err
}
