package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/services"
)

// Teams outgoing webhooks sign the raw request body with a shared secret
// and send the signature as "Authorization: HMAC <base64>".
type WebhookHandler struct {
	assistant services.AssistantService
	secret    []byte // decoded shared secret
	log       *logrus.Logger
}

func NewWebhookHandler(assistant services.AssistantService, sharedSecret string, log *logrus.Logger) (*WebhookHandler, error) {
	secret, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{assistant: assistant, secret: secret, log: log}, nil
}

type teamsActivity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

var mentionTagPattern = regexp.MustCompile(`<at>.*?</at>`)

func (h *WebhookHandler) TeamsMessage(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "message", "text": "could not read request"})
		return
	}

	if !h.verifySignature(c.GetHeader("Authorization"), body) {
		c.JSON(http.StatusUnauthorized, gin.H{"type": "message", "text": "invalid signature"})
		return
	}

	var activity teamsActivity
	if err := json.Unmarshal(body, &activity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "message", "text": "invalid payload"})
		return
	}

	question := strings.TrimSpace(mentionTagPattern.ReplaceAllString(activity.Text, ""))
	if question == "" {
		c.JSON(http.StatusOK, gin.H{"type": "message", "text": "Ask me about your work items, for example: what is the status of #1234?"})
		return
	}

	// Teams conversation IDs are stable per thread, so replies in the same
	// thread share history.
	answer, err := h.assistant.Answer(c.Request.Context(), activity.Conversation.ID, activity.From.ID, "teams", question)
	if err != nil {
		h.log.WithError(err).WithField("conversation_id", activity.Conversation.ID).Error("teams webhook answer failed")
		c.JSON(http.StatusOK, gin.H{"type": "message", "text": "Sorry, something went wrong answering that. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"type": "message", "text": answer})
}

func (h *WebhookHandler) verifySignature(authHeader string, body []byte) bool {
	const prefix = "HMAC "
	if !strings.HasPrefix(authHeader, prefix) {
		return false
	}
	provided, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
