package mongo

import (
	"context"
	"time"

	"github.com/oselyuk/boardmate/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListRecent(ctx context.Context, limit int64) ([]models.Notification, error)
}

type notificationRepo struct {
	col *mongo.Collection
}

func NewNotificationRepo(db *mongo.Database) NotificationRepository {
	return &notificationRepo{col: db.Collection("notifications")}
}

func (r *notificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, n)
	return err
}

func (r *notificationRepo) ListRecent(ctx context.Context, limit int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	cur, err := r.col.Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "sent_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
