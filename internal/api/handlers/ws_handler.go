package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oselyuk/boardmate/internal/services"
	"github.com/oselyuk/boardmate/internal/utils"
)

type WSHandler struct {
	assistant services.AssistantService
	redis     *redis.Client
	log       *logrus.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(assistant services.AssistantService, rdb *redis.Client, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		assistant: assistant,
		redis:     rdb,
		log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// ChatWS streams assistant answers over a websocket. Answer chunks are
// published by the assistant service to the conversation's Redis channel
// and forwarded here as-is.
func (h *WSHandler) ChatWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.ChatWS", "missing conversation_id", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	respCh := "conversation:" + conversationID + ":response"
	pubsub := h.redis.Subscribe(ctx, respCh)
	defer pubsub.Close()

	// reader: client questions -> assistant
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}

			switch msg.Type {
			case "question":
				if msg.Question == "" {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"question required"}`))
					continue
				}
				// Answer publishes chunks to respCh; run off the read loop
				// so the client can keep pinging while we stream.
				go func(question string) {
					if _, aerr := h.assistant.Answer(ctx, conversationID, userID, "ws", question); aerr != nil {
						h.log.WithError(aerr).WithField("conversation_id", conversationID).Warn("ws answer failed")
					}
				}(msg.Question)

			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
