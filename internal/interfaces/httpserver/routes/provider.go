package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-widget/internal/infrastructure/auth"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/handlers"
	v1 "github.com/janhq/jan-widget/internal/interfaces/httpserver/routes/v1"
)

// Provider holds all route providers.
type Provider struct {
	V1            *v1.Routes
	authValidator *auth.Validator
}

// NewProvider creates a new route provider.
func NewProvider(handlerProvider *handlers.Provider, authValidator *auth.Validator) *Provider {
	return &Provider{
		V1:            v1.NewRoutes(handlerProvider),
		authValidator: authValidator,
	}
}

// Register registers all routes on the engine.
func (p *Provider) Register(engine *gin.Engine) {
	if p.authValidator != nil {
		p.V1.Register(engine, p.authValidator.Middleware())
		return
	}
	p.V1.Register(engine, nil)
}
