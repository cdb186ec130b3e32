package models

import "time"

// SLARule defines a deadline for work items of a given type and severity to
// leave the matched state. Items still in MatchState after MaxAgeHours breach
// the rule and trigger a Teams notification.
type SLARule struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"column:name;type:text" json:"name"`
	WorkItemType string    `gorm:"column:work_item_type;type:text" json:"work_item_type"`
	Severity     string    `gorm:"column:severity;type:text" json:"severity"` // empty = any
	MatchState   string    `gorm:"column:match_state;type:text" json:"match_state"`
	MaxAgeHours  int       `gorm:"column:max_age_hours" json:"max_age_hours"`
	TeamID       string    `gorm:"column:team_id;type:text" json:"team_id"`
	ChannelID    string    `gorm:"column:channel_id;type:text" json:"channel_id"`
	Enabled      bool      `gorm:"column:enabled;index" json:"enabled"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (SLARule) TableName() string { return "sla_rules" }
