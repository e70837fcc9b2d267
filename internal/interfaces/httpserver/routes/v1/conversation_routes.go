package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-widget/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler, events *handlers.EventsHandler) {
	router.POST("/conversations", handler.Create)
	router.GET("/conversations/:id", handler.Get)
	router.PATCH("/conversations/:id", handler.Update)
	router.DELETE("/conversations/:id", handler.Delete)
	router.POST("/conversations/:id/messages", handler.Submit)
	router.POST("/conversations/:id/reset", handler.Reset)
	router.GET("/conversations/:id/events", events.Stream)
}

func registerVoiceRoutes(router gin.IRoutes, handler *handlers.VoiceHandler) {
	router.POST("/voice/sessions", handler.CreateSession)
}
