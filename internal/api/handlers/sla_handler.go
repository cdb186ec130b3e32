package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oselyuk/boardmate/internal/models"
	mongorepo "github.com/oselyuk/boardmate/internal/repositories/mongo"
	"github.com/oselyuk/boardmate/internal/services"
	"github.com/oselyuk/boardmate/internal/utils"
)

type SLAHandler struct {
	sla           services.SLAService
	notifications mongorepo.NotificationRepository
}

func NewSLAHandler(sla services.SLAService, notifications mongorepo.NotificationRepository) *SLAHandler {
	return &SLAHandler{sla: sla, notifications: notifications}
}

type SLARuleRequest struct {
	Name         string `json:"name" binding:"required"`
	WorkItemType string `json:"work_item_type" binding:"required"`
	Severity     string `json:"severity"`
	MatchState   string `json:"match_state" binding:"required"`
	MaxAgeHours  int    `json:"max_age_hours" binding:"required"`
	TeamID       string `json:"team_id" binding:"required"`
	ChannelID    string `json:"channel_id" binding:"required"`
	Enabled      *bool  `json:"enabled"`
}

func (r *SLARuleRequest) toModel(id string) *models.SLARule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &models.SLARule{
		ID:           id,
		Name:         r.Name,
		WorkItemType: r.WorkItemType,
		Severity:     r.Severity,
		MatchState:   r.MatchState,
		MaxAgeHours:  r.MaxAgeHours,
		TeamID:       r.TeamID,
		ChannelID:    r.ChannelID,
		Enabled:      enabled,
		UpdatedAt:    time.Now().UTC(),
	}
}

func (h *SLAHandler) CreateRule(c *gin.Context) {
	var req SLARuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SLAHandler.CreateRule", "invalid request body", err))
		return
	}

	rule := req.toModel(uuid.NewString())
	rule.CreatedAt = rule.UpdatedAt
	if err := h.sla.CreateRule(c.Request.Context(), rule); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *SLAHandler) UpdateRule(c *gin.Context) {
	var req SLARuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SLAHandler.UpdateRule", "invalid request body", err))
		return
	}

	rule := req.toModel(c.Param("id"))
	if err := h.sla.UpdateRule(c.Request.Context(), rule); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *SLAHandler) DeleteRule(c *gin.Context) {
	if err := h.sla.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SLAHandler) GetRule(c *gin.Context) {
	rule, err := h.sla.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *SLAHandler) ListRules(c *gin.Context) {
	rules, err := h.sla.ListRules(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// Scan triggers an immediate SLA sweep instead of waiting for the scheduler.
func (h *SLAHandler) Scan(c *gin.Context) {
	enqueued, err := h.sla.Scan(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": enqueued})
}

func (h *SLAHandler) RecentNotifications(c *gin.Context) {
	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > 500 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SLAHandler.RecentNotifications", "limit must be 1-500", err))
			return
		}
		limit = n
	}

	items, err := h.notifications.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}
