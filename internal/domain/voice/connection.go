package voice

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenGenerator signs real-time voice access tokens.
type TokenGenerator interface {
	Generate(room, identity string, ttl time.Duration) (token string, err error)
}

// ConnectionGrant is a signed URL for joining a real-time voice session.
type ConnectionGrant struct {
	Object    string `json:"object"`
	URL       string `json:"url"`
	Room      string `json:"room"`
	Identity  string `json:"identity"`
	ExpiresAt int64  `json:"expires_at"`
}

// ConnectionIssuer mints voice session URLs. Sessions themselves are run by
// the real-time media server.
type ConnectionIssuer struct {
	tokens TokenGenerator
	wsURL  string
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewConnectionIssuer creates an issuer for the given media server URL.
func NewConnectionIssuer(tokens TokenGenerator, wsURL string, ttl time.Duration, log zerolog.Logger) *ConnectionIssuer {
	return &ConnectionIssuer{
		tokens: tokens,
		wsURL:  wsURL,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("component", "voice-connection").Logger(),
	}
}

// Issue creates a fresh room and signs a URL for identity. A blank identity
// gets a generated guest identity.
func (i *ConnectionIssuer) Issue(_ context.Context, identity string) (*ConnectionGrant, error) {
	room := newID("room")
	if strings.TrimSpace(identity) == "" {
		identity = newID("guest")
	}

	token, err := i.tokens.Generate(room, identity, i.ttl)
	if err != nil {
		i.log.Error().Err(err).Str("room", room).Msg("failed to sign voice token")
		return nil, fmt.Errorf("sign voice token: %w", err)
	}

	connURL, err := ConnectionURL(i.wsURL, token)
	if err != nil {
		return nil, err
	}

	i.log.Info().Str("room", room).Str("identity", identity).Msg("voice connection issued")
	return &ConnectionGrant{
		Object:    "voice.session",
		URL:       connURL,
		Room:      room,
		Identity:  identity,
		ExpiresAt: i.now().Add(i.ttl).Unix(),
	}, nil
}

// ConnectionURL appends the access token to the media server URL.
func ConnectionURL(wsURL, token string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse voice ws url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("voice ws url %q must be absolute", wsURL)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
