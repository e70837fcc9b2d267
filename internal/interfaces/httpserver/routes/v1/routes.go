package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-widget/internal/interfaces/httpserver/handlers"
)

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes creates a new v1 routes instance.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{handlers: handlerProvider}
}

// Register registers all v1 routes. authMiddleware may be nil.
func (r *Routes) Register(engine *gin.Engine, authMiddleware gin.HandlerFunc) {
	v1 := engine.Group("/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}
	registerConversationRoutes(v1, r.handlers.Conversation, r.handlers.Events)
	registerVoiceRoutes(v1, r.handlers.Voice)
}
