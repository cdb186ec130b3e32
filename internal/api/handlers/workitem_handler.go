package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oselyuk/boardmate/internal/services"
	"github.com/oselyuk/boardmate/internal/utils"
)

type WorkItemHandler struct {
	workItems services.WorkItemService
}

func NewWorkItemHandler(workItems services.WorkItemService) *WorkItemHandler {
	return &WorkItemHandler{workItems: workItems}
}

type SyncRequest struct {
	Project string `json:"project" binding:"required"`
}

func (h *WorkItemHandler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WorkItemHandler.Sync", "invalid request body", err))
		return
	}

	count, err := h.workItems.Sync(c.Request.Context(), req.Project)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": count})
}

func (h *WorkItemHandler) Get(c *gin.Context) {
	adoID, err := strconv.Atoi(c.Param("ado_id"))
	if err != nil || adoID <= 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WorkItemHandler.Get", "ado_id must be a positive integer", err))
		return
	}

	item, err := h.workItems.Get(c.Request.Context(), adoID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *WorkItemHandler) Related(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WorkItemHandler.Related", "q is required", nil))
		return
	}

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "WorkItemHandler.Related", "limit must be 1-50", err))
			return
		}
		limit = n
	}

	items, err := h.workItems.FindRelated(c.Request.Context(), q, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}
