package auth

import (
	"context"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/utils/platformerrors"
)

// ContextKeySubject is the gin context key holding the token subject.
const ContextKeySubject = "auth_subject"

// Validator validates JWTs using JWKS.
type Validator struct {
	cfg  *config.Config
	log  zerolog.Logger
	jwks *keyfunc.JWKS
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		return &Validator{cfg: cfg, log: log}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return &Validator{cfg: cfg, log: log, jwks: jwks}, nil
}

// Middleware enforces JWT auth when enabled.
func (v *Validator) Middleware() gin.HandlerFunc {
	if v == nil || !v.cfg.AuthEnabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			platformerrors.WriteUnauthorized(c, "missing bearer token")
			return
		}

		opts := []jwt.ParserOption{
			jwt.WithIssuer(v.cfg.AuthIssuer),
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
			jwt.WithLeeway(time.Minute),
		}
		if audience := strings.TrimSpace(v.cfg.AuthAudience); audience != "" {
			opts = append(opts, jwt.WithAudience(audience))
		}

		token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, opts...)
		if err != nil || !token.Valid {
			v.log.Debug().Err(err).Msg("jwt validation failed")
			platformerrors.WriteUnauthorized(c, "invalid token")
			return
		}

		if subject, err := token.Claims.GetSubject(); err == nil {
			c.Set(ContextKeySubject, subject)
		}
		c.Next()
	}
}

// Ready indicates if the validator is prepared.
func (v *Validator) Ready() bool {
	if v == nil || !v.cfg.AuthEnabled {
		return true
	}
	return v.jwks != nil
}

// Close stops the JWKS refresh goroutine.
func (v *Validator) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Subject returns the authenticated subject, or "" when auth is disabled.
func Subject(c *gin.Context) string {
	return c.GetString(ContextKeySubject)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
