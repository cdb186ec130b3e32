package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/cache"
	"github.com/oselyuk/boardmate/internal/models"
	"github.com/oselyuk/boardmate/internal/providers/graph"
	mongorepo "github.com/oselyuk/boardmate/internal/repositories/mongo"
	"github.com/oselyuk/boardmate/internal/services"
)

// NotifyWorkerPool consumes SLA breach jobs from the Redis stream and posts
// Teams channel messages through Graph. A throttle key per rule+work item
// keeps a long-breaching item from being re-announced every scan.
type NotifyWorkerPool struct {
	Redis         *redis.Client
	Graph         *graph.Client
	Notifications mongorepo.NotificationRepository
	Throttle      cache.Cache
	NumWorkers    int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	// ThrottleWindow is how long a rule+work item pair stays quiet after a
	// notification. NotificationTTL bounds the Mongo audit log.
	ThrottleWindow  time.Duration
	NotificationTTL time.Duration
}

func (p *NotifyWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Graph == nil || p.Notifications == nil || p.Throttle == nil {
		return errors.New("NotifyWorkerPool missing dependency: Redis/Graph/Notifications/Throttle must be set")
	}
	if p.Stream == "" {
		p.Stream = services.SLAStream
	}
	if p.Group == "" {
		p.Group = "sla-notifiers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "n"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.ThrottleWindow <= 0 {
		p.ThrottleWindow = 24 * time.Hour
	}
	if p.NotificationTTL <= 0 {
		p.NotificationTTL = 30 * 24 * time.Hour
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *NotifyWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *NotifyWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	ruleID := getStr("rule_id")
	workItemID, _ := strconv.Atoi(getStr("work_item_id"))
	teamID := getStr("team_id")
	channelID := getStr("channel_id")
	if ruleID == "" || workItemID <= 0 || teamID == "" || channelID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":     msg.ID,
		"rule_id":      ruleID,
		"work_item_id": workItemID,
	})

	throttleKey := fmt.Sprintf("sla:notified:%s:%d", ruleID, workItemID)
	won, err := p.Throttle.Acquire(ctx, throttleKey, p.ThrottleWindow)
	if err != nil {
		log.WithError(err).Warn("throttle check failed, skipping notification")
		return
	}
	if !won {
		log.Debug("notification throttled")
		p.record(ctx, ruleID, workItemID, teamID, channelID, "throttled", "")
		return
	}

	text := fmt.Sprintf("SLA breach (%s): #%d %s is still %s after %sh",
		getStr("rule_name"), workItemID, getStr("title"), getStr("state"), getStr("age_hours"))
	if assignee := getStr("assigned_to"); assignee != "" {
		text += ", assigned to " + assignee
	}

	if err := p.Graph.SendChannelMessage(ctx, teamID, channelID, text); err != nil {
		log.WithError(err).Error("teams notification failed")
		p.record(ctx, ruleID, workItemID, teamID, channelID, "failed", text)
		// release the throttle so the next scan retries
		_ = p.Throttle.Del(ctx, throttleKey)
		return
	}

	log.Info("teams notification sent")
	p.record(ctx, ruleID, workItemID, teamID, channelID, "sent", text)
}

func (p *NotifyWorkerPool) record(ctx context.Context, ruleID string, workItemID int, teamID, channelID, status, message string) {
	now := time.Now().UTC()
	err := p.Notifications.Insert(ctx, &models.Notification{
		RuleID:     ruleID,
		WorkItemID: workItemID,
		TeamID:     teamID,
		ChannelID:  channelID,
		Status:     status,
		Message:    message,
		SentAt:     now,
		ExpiresAt:  now.Add(p.NotificationTTL),
	})
	if err != nil {
		p.Logger.WithError(err).Warn("failed to record notification")
	}
}
