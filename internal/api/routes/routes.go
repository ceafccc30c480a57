package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
)

type Deps struct {
	Session      *handlers.SessionHandler
	Credit       *handlers.CreditHandler
	Profile      *handlers.ProfileHandler
	CV           *handlers.CVHandler
	Conversation *handlers.ConversationHandler
	WS           *handlers.WSHandler

	JWT     middleware.JWTConfig
	Metrics http.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT))

	auth.POST("/session/start", d.Session.Start)
	auth.GET("/sessions", d.Session.List)
	auth.GET("/session/:session_id", d.Session.Get)
	auth.POST("/session/:session_id/end", d.Session.End)
	auth.GET("/session/:session_id/log", d.Session.Log)
	auth.GET("/session/:session_id/clips/:clip_id", d.Session.Clip)
	auth.GET("/session/:session_id/report", d.Session.Report)
	auth.GET("/session/:session_id/turns", d.Session.Turns)

	auth.GET("/credits/me", d.Credit.Me)

	auth.GET("/profile/me", d.Profile.Me)
	auth.PUT("/profile/update", d.Profile.Update)
	if d.CV != nil {
		auth.POST("/profile/cv", d.CV.Upload)
		auth.GET("/profile/cv", d.CV.Latest)
	}

	auth.GET("/conversation/:session_id", d.Conversation.ListBySession)

	auth.GET("/ws/session/:session_id", d.WS.SessionWS)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/credits/grant", d.Credit.Grant)
}
