package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/models"
	pgrepo "github.com/oselyuk/boardmate/internal/repositories/postgres"
	"github.com/oselyuk/boardmate/internal/utils"
)

// SLAStream is the Redis stream the notification worker pool consumes.
const SLAStream = "sla:stream"

type SLAService interface {
	CreateRule(ctx context.Context, rule *models.SLARule) error
	UpdateRule(ctx context.Context, rule *models.SLARule) error
	DeleteRule(ctx context.Context, id string) error
	GetRule(ctx context.Context, id string) (*models.SLARule, error)
	ListRules(ctx context.Context) ([]models.SLARule, error)

	// Scan enqueues a notification job for every work item currently
	// breaching an enabled rule. Returns the number of jobs enqueued.
	Scan(ctx context.Context) (int, error)
}

type slaService struct {
	rules     pgrepo.SLARuleRepository
	workItems pgrepo.WorkItemRepository
	rdb       *redis.Client
	log       *logrus.Logger
}

func NewSLAService(rules pgrepo.SLARuleRepository, workItems pgrepo.WorkItemRepository, rdb *redis.Client, log *logrus.Logger) SLAService {
	return &slaService{rules: rules, workItems: workItems, rdb: rdb, log: log}
}

func (s *slaService) CreateRule(ctx context.Context, rule *models.SLARule) error {
	const op = "SLAService.CreateRule"

	if err := validateRule(op, rule); err != nil {
		return err
	}

	now := time.Now().UTC()
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.rules.Create(ctx, rule); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create rule", err)
	}
	return nil
}

func (s *slaService) UpdateRule(ctx context.Context, rule *models.SLARule) error {
	const op = "SLAService.UpdateRule"

	if rule.ID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "rule id is required", nil)
	}
	if err := validateRule(op, rule); err != nil {
		return err
	}

	rule.UpdatedAt = time.Now().UTC()
	if err := s.rules.Update(ctx, rule); err != nil {
		if err == utils.ErrNotFound {
			return utils.E(utils.CodeNotFound, op, "rule not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to update rule", err)
	}
	return nil
}

func (s *slaService) DeleteRule(ctx context.Context, id string) error {
	const op = "SLAService.DeleteRule"

	if id == "" {
		return utils.E(utils.CodeInvalidArgument, op, "rule id is required", nil)
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		if err == utils.ErrNotFound {
			return utils.E(utils.CodeNotFound, op, "rule not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete rule", err)
	}
	return nil
}

func (s *slaService) GetRule(ctx context.Context, id string) (*models.SLARule, error) {
	const op = "SLAService.GetRule"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "rule id is required", nil)
	}
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if err == utils.ErrNotFound {
			return nil, utils.E(utils.CodeNotFound, op, "rule not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load rule", err)
	}
	return rule, nil
}

func (s *slaService) ListRules(ctx context.Context) ([]models.SLARule, error) {
	const op = "SLAService.ListRules"

	rules, err := s.rules.List(ctx, false)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list rules", err)
	}
	return rules, nil
}

func (s *slaService) Scan(ctx context.Context) (int, error) {
	const op = "SLAService.Scan"

	rules, err := s.rules.List(ctx, true)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to list enabled rules", err)
	}

	now := time.Now().UTC()
	enqueued := 0
	for _, rule := range rules {
		cutoff := now.Add(-time.Duration(rule.MaxAgeHours) * time.Hour)
		breaching, err := s.workItems.ListBreaching(ctx, rule, cutoff)
		if err != nil {
			s.log.WithError(err).WithField("rule_id", rule.ID).Warn("breach query failed")
			continue
		}

		for _, item := range breaching {
			ageHours := int64(now.Sub(item.CreatedDate).Hours())
			fields := map[string]any{
				"rule_id":      rule.ID,
				"rule_name":    rule.Name,
				"work_item_id": strconv.Itoa(item.ADOID),
				"title":        item.Title,
				"state":        item.State,
				"severity":     item.Severity,
				"assigned_to":  item.AssignedTo,
				"age_hours":    strconv.FormatInt(ageHours, 10),
				"team_id":      rule.TeamID,
				"channel_id":   rule.ChannelID,
			}
			if err := s.rdb.XAdd(ctx, &redis.XAddArgs{Stream: SLAStream, Values: fields}).Err(); err != nil {
				s.log.WithError(err).WithField("work_item_id", item.ADOID).Warn("failed to enqueue notification")
				continue
			}
			enqueued++
		}
	}
	return enqueued, nil
}

func validateRule(op string, rule *models.SLARule) error {
	if rule.Name == "" || rule.WorkItemType == "" || rule.MatchState == "" {
		return utils.E(utils.CodeInvalidArgument, op, "name, work_item_type, and match_state are required", nil)
	}
	if rule.MaxAgeHours <= 0 {
		return utils.E(utils.CodeInvalidArgument, op, "max_age_hours must be > 0", nil)
	}
	if rule.TeamID == "" || rule.ChannelID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "team_id and channel_id are required", nil)
	}
	return nil
}
