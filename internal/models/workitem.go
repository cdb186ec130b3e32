package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type WorkItem struct {
	ID           string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ADOID        int             `gorm:"column:ado_id;uniqueIndex:uniq_org_ado" json:"ado_id"`
	Organization string          `gorm:"column:organization;type:text;uniqueIndex:uniq_org_ado" json:"organization"`
	Project      string          `gorm:"column:project;type:text;index" json:"project"`
	Type         string          `gorm:"column:type;type:text" json:"type"` // Bug|Task|User Story|Feature
	Title        string          `gorm:"column:title;type:text" json:"title"`
	State        string          `gorm:"column:state;type:text;index" json:"state"`
	AssignedTo   string          `gorm:"column:assigned_to;type:text" json:"assigned_to"`
	Severity     string          `gorm:"column:severity;type:text" json:"severity"`
	Embedding    pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	Fields       datatypes.JSON  `gorm:"column:fields;type:jsonb" json:"fields"`
	CreatedDate  time.Time       `gorm:"column:created_date;type:timestamptz" json:"created_date"`
	ChangedDate  time.Time       `gorm:"column:changed_date;type:timestamptz;index" json:"changed_date"`
	DueAt        *time.Time      `gorm:"column:due_at;type:timestamptz" json:"due_at,omitempty"`
	SyncedAt     time.Time       `gorm:"column:synced_at;type:timestamptz" json:"synced_at"`
}

func (WorkItem) TableName() string { return "work_items" }

// RelatedWorkItem is a work item row annotated with its cosine distance to a
// query vector, as returned by the pgvector search.
type RelatedWorkItem struct {
	WorkItem
	Distance float64 `gorm:"column:distance" json:"distance"`
}
