package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oselyuk/boardmate/internal/services"
	"github.com/oselyuk/boardmate/internal/utils"
)

type ChatHandler struct {
	assistant services.AssistantService
	convos    services.ConversationService
}

func NewChatHandler(assistant services.AssistantService, convos services.ConversationService) *ChatHandler {
	return &ChatHandler{assistant: assistant, convos: convos}
}

type AskRequest struct {
	ConversationID string `json:"conversation_id"` // omit to start a new conversation
	Question       string `json:"question" binding:"required"`
}

type AskResponse struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Ask", "invalid request body", err))
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	answer, err := h.assistant.Answer(c.Request.Context(), conversationID, userID, "web", req.Question)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AskResponse{
		ConversationID: conversationID,
		Answer:         answer,
	})
}

func (h *ChatHandler) History(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	conversationID := c.Param("conversation_id")
	msgs, err := h.convos.History(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        msgs,
	})
}
