package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/oselyuk/boardmate/internal/models"
	"github.com/oselyuk/boardmate/internal/utils"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WorkItemRepository interface {
	Upsert(ctx context.Context, items []models.WorkItem) error
	GetByADOID(ctx context.Context, organization string, adoID int) (*models.WorkItem, error)
	SearchRelated(ctx context.Context, queryVec []float32, limit int) ([]models.RelatedWorkItem, error)
	ListBreaching(ctx context.Context, rule models.SLARule, cutoff time.Time) ([]models.WorkItem, error)
}

type workItemRepo struct {
	db *gorm.DB
}

func NewWorkItemRepo(db *gorm.DB) WorkItemRepository {
	return &workItemRepo{db: db}
}

func (r *workItemRepo) Upsert(ctx context.Context, items []models.WorkItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization"}, {Name: "ado_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"project", "type", "title", "state", "assigned_to", "severity",
			"embedding", "fields", "changed_date", "due_at", "synced_at",
		}),
	}).Create(&items).Error
}

func (r *workItemRepo) GetByADOID(ctx context.Context, organization string, adoID int) (*models.WorkItem, error) {
	var row models.WorkItem
	err := r.db.WithContext(ctx).
		Where("organization = ? AND ado_id = ?", organization, adoID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

// SearchRelated ranks indexed work items by cosine distance to the query
// vector. Smaller distance = more similar.
func (r *workItemRepo) SearchRelated(ctx context.Context, queryVec []float32, limit int) ([]models.RelatedWorkItem, error) {
	if limit <= 0 {
		limit = 5
	}

	var rows []models.RelatedWorkItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT *, embedding <=> ? AS distance
		 FROM work_items
		 WHERE embedding IS NOT NULL
		 ORDER BY distance ASC
		 LIMIT ?`,
		pgvector.NewVector(queryVec), limit,
	).Scan(&rows).Error
	return rows, err
}

func (r *workItemRepo) ListBreaching(ctx context.Context, rule models.SLARule, cutoff time.Time) ([]models.WorkItem, error) {
	q := r.db.WithContext(ctx).
		Where("type = ? AND state = ?", rule.WorkItemType, rule.MatchState).
		Where("created_date < ?", cutoff)
	if rule.Severity != "" {
		q = q.Where("severity = ?", rule.Severity)
	}

	var rows []models.WorkItem
	err := q.Order("created_date ASC").Find(&rows).Error
	return rows, err
}
