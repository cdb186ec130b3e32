package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistant struct {
	answer   string
	err      error
	lastConv string
	lastQ    string
}

func (f *fakeAssistant) Answer(ctx context.Context, conversationID, userID, channel, question string) (string, error) {
	f.lastConv = conversationID
	f.lastQ = question
	return f.answer, f.err
}

func testSecret() (raw []byte, encoded string) {
	raw = []byte("0123456789abcdef0123456789abcdef")
	return raw, base64.StdEncoding.EncodeToString(raw)
}

func signBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "HMAC " + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func postWebhook(t *testing.T, h *WebhookHandler, body []byte, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook/teams", h.TeamsMessage)

	req := httptest.NewRequest(http.MethodPost, "/webhook/teams", bytes.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTeamsWebhookAnswersSignedRequest(t *testing.T) {
	raw, encoded := testSecret()
	fake := &fakeAssistant{answer: "Bug #1234 is Active."}

	h, err := NewWebhookHandler(fake, encoded, quietLog())
	require.NoError(t, err)

	body := []byte(`{"type":"message","text":"<at>boardmate</at> what is the status of #1234?","from":{"id":"u1","name":"Dana"},"conversation":{"id":"thread-9"}}`)
	w := postWebhook(t, h, body, signBody(raw, body))

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "message", resp["type"])
	assert.Equal(t, "Bug #1234 is Active.", resp["text"])

	// mention tag stripped, thread id reused as conversation id
	assert.Equal(t, "what is the status of #1234?", fake.lastQ)
	assert.Equal(t, "thread-9", fake.lastConv)
}

func TestTeamsWebhookRejectsBadSignature(t *testing.T) {
	raw, encoded := testSecret()
	fake := &fakeAssistant{answer: "should not be called"}

	h, err := NewWebhookHandler(fake, encoded, quietLog())
	require.NoError(t, err)

	body := []byte(`{"type":"message","text":"hello"}`)

	tampered := append([]byte{}, body...)
	tampered[0] = '['
	w := postWebhook(t, h, body, signBody(raw, tampered))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, fake.lastQ)

	w = postWebhook(t, h, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(t, h, body, "Bearer not-hmac")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTeamsWebhookEmptyQuestionGetsHint(t *testing.T) {
	raw, encoded := testSecret()
	fake := &fakeAssistant{}

	h, err := NewWebhookHandler(fake, encoded, quietLog())
	require.NoError(t, err)

	body := []byte(`{"type":"message","text":"<at>boardmate</at>  ","conversation":{"id":"thread-1"}}`)
	w := postWebhook(t, h, body, signBody(raw, body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, fake.lastQ)
	assert.Contains(t, w.Body.String(), "work items")
}

func TestNewWebhookHandlerRejectsInvalidSecret(t *testing.T) {
	_, err := NewWebhookHandler(&fakeAssistant{}, "not base64 !!!", quietLog())
	assert.Error(t, err)
}
