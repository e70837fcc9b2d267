package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/domain/conversation"
)

const maxErrorExcerpt = 512

// ErrNoBody is returned when a successful response carries no stream.
var ErrNoBody = errors.New("upstream response has no body")

// UpstreamError reports a non-success status from the chat API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat api error: status %d: %s", e.StatusCode, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Client opens streaming chat completions against an OpenAI-compatible API.
type Client struct {
	httpClient *resty.Client
	path       string
	model      string
	log        zerolog.Logger
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Path    string
	APIKey  string
	Model   string
	// Timeout bounds the whole request including the stream. Zero means none.
	Timeout time.Duration
}

// NewClient creates a Resty-backed streaming client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetTimeout(opts.Timeout)
	if opts.APIKey != "" {
		httpClient.SetAuthToken(opts.APIKey)
	}

	path := opts.Path
	if path == "" {
		path = "/v1/chat/completions"
	}

	return &Client{
		httpClient: httpClient,
		path:       path,
		model:      opts.Model,
		log:        log.With().Str("component", "chat-client").Logger(),
	}
}

// NewClientFromConfig builds a Client from service configuration.
func NewClientFromConfig(cfg *config.Config, log zerolog.Logger) *Client {
	return NewClient(Options{
		BaseURL: cfg.ChatAPIURL,
		Path:    cfg.ChatAPIPath,
		APIKey:  cfg.ChatAPIKey,
		Model:   cfg.ChatModel,
		Timeout: cfg.ChatStreamTimeout,
	}, log)
}

// OpenStream posts history with stream=true and returns the raw event stream.
// The caller must close the returned body.
func (c *Client) OpenStream(ctx context.Context, history []conversation.Message) (io.ReadCloser, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(history)),
		Stream:   true,
	}
	for _, msg := range history {
		req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(c.path)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	body := resp.RawBody()
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		upstream := &UpstreamError{StatusCode: resp.StatusCode()}
		if body != nil {
			excerpt, _ := io.ReadAll(io.LimitReader(body, maxErrorExcerpt))
			body.Close()
			upstream.Body = strings.TrimSpace(string(excerpt))
		}
		c.log.Warn().Int("status", upstream.StatusCode).Str("body", upstream.Body).Msg("chat api rejected request")
		return nil, upstream
	}
	if body == nil || body == http.NoBody {
		return nil, ErrNoBody
	}
	return body, nil
}

var _ conversation.Streamer = (*Client)(nil)
