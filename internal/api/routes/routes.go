package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/oselyuk/boardmate/internal/api/handlers"
	"github.com/oselyuk/boardmate/internal/api/middleware"
)

type Deps struct {
	Auth     *handlers.AuthHandler
	Chat     *handlers.ChatHandler
	WS       *handlers.WSHandler
	Webhook  *handlers.WebhookHandler
	SLA      *handlers.SLAHandler
	WorkItem *handlers.WorkItemHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/auth/login", d.Auth.Login)

	// Teams verifies itself with an HMAC signature, not a JWT
	r.POST("/webhook/teams", d.Webhook.TeamsMessage)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/chat/ask", d.Chat.Ask)
	auth.GET("/conversation/:conversation_id", d.Chat.History)

	auth.POST("/workitems/sync", d.WorkItem.Sync)
	auth.GET("/workitems/related", d.WorkItem.Related)
	auth.GET("/workitems/:ado_id", d.WorkItem.Get)

	// WebSocket
	auth.GET("/ws/chat/:conversation_id", d.WS.ChatWS)

	// SLA administration
	admin := auth.Group("/sla")
	admin.Use(middleware.RequireAdmin())

	admin.POST("/rules", d.SLA.CreateRule)
	admin.GET("/rules", d.SLA.ListRules)
	admin.GET("/rules/:id", d.SLA.GetRule)
	admin.PUT("/rules/:id", d.SLA.UpdateRule)
	admin.DELETE("/rules/:id", d.SLA.DeleteRule)
	admin.POST("/scan", d.SLA.Scan)
	admin.GET("/notifications", d.SLA.RecentNotifications)
}
