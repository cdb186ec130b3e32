package postgres

import (
	"context"
	"errors"

	"github.com/oselyuk/boardmate/internal/models"
	"github.com/oselyuk/boardmate/internal/utils"
	"gorm.io/gorm"
)

type SLARuleRepository interface {
	Create(ctx context.Context, rule *models.SLARule) error
	Update(ctx context.Context, rule *models.SLARule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.SLARule, error)
	List(ctx context.Context, enabledOnly bool) ([]models.SLARule, error)
}

type slaRuleRepo struct {
	db *gorm.DB
}

func NewSLARuleRepo(db *gorm.DB) SLARuleRepository {
	return &slaRuleRepo{db: db}
}

func (r *slaRuleRepo) Create(ctx context.Context, rule *models.SLARule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *slaRuleRepo) Update(ctx context.Context, rule *models.SLARule) error {
	res := r.db.WithContext(ctx).Model(&models.SLARule{}).
		Where("id = ?", rule.ID).
		Updates(rule)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *slaRuleRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SLARule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *slaRuleRepo) GetByID(ctx context.Context, id string) (*models.SLARule, error) {
	var row models.SLARule
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *slaRuleRepo) List(ctx context.Context, enabledOnly bool) ([]models.SLARule, error) {
	q := r.db.WithContext(ctx)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}

	var rows []models.SLARule
	err := q.Order("created_at ASC").Find(&rows).Error
	return rows, err
}
