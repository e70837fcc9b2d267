package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/domain/voice"
)

// Request outcomes reported to Options.Observe.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusBadStatus = "bad_status"
	StatusBadAudio  = "bad_audio"
)

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type speechResponse struct {
	AudioContent string `json:"audioContent"`
	ContentType  string `json:"contentType,omitempty"`
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Path    string
	APIKey  string
	Timeout time.Duration
	// Observe receives one status per request. May be nil.
	Observe func(status string)
}

// Client calls a text-to-speech API that answers with base64 audio.
type Client struct {
	httpClient *resty.Client
	path       string
	observe    func(string)
	log        zerolog.Logger
}

// NewClient creates a Resty-backed synthesizer.
func NewClient(opts Options, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout)
	if opts.APIKey != "" {
		httpClient.SetAuthToken(opts.APIKey)
	}
	path := opts.Path
	if path == "" {
		path = "/v1/audio/speech"
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string) {}
	}
	return &Client{
		httpClient: httpClient,
		path:       path,
		observe:    observe,
		log:        log.With().Str("component", "tts-client").Logger(),
	}
}

// NewClientFromConfig builds a Client from service configuration.
func NewClientFromConfig(cfg *config.Config, observe func(string), log zerolog.Logger) *Client {
	return NewClient(Options{
		BaseURL: cfg.TTSAPIURL,
		Path:    cfg.TTSAPIPath,
		APIKey:  cfg.TTSAPIKey,
		Timeout: cfg.TTSTimeout,
		Observe: observe,
	}, log)
}

// Synthesize requests speech for text and decodes the returned clip.
func (c *Client) Synthesize(ctx context.Context, text, voiceName string) (*voice.Clip, error) {
	var out speechResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(speechRequest{Text: text, Voice: voiceName}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.path)
	if err != nil {
		c.observe(StatusError)
		return nil, fmt.Errorf("execute tts request: %w", err)
	}
	if resp.IsError() {
		c.observe(StatusBadStatus)
		return nil, fmt.Errorf("tts api error: %d %s", resp.StatusCode(), resp.String())
	}

	data, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		c.badAudio(resp)
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(data) == 0 {
		c.badAudio(resp)
		return nil, voice.ErrEmptyClip
	}

	clip := &voice.Clip{MIMEType: out.ContentType, Data: data}
	if clip.MIMEType == "" {
		clip.MIMEType = DetectMIME(data)
	}
	c.observe(StatusOK)
	c.log.Debug().Str("mime_type", clip.MIMEType).Int("bytes", len(data)).Msg("speech synthesized")
	return clip, nil
}

func (c *Client) badAudio(resp *resty.Response) {
	c.observe(StatusBadAudio)
	c.log.Warn().
		Str("content_type", resp.Header().Get("Content-Type")).
		Int("status", resp.StatusCode()).
		Int("bytes", len(resp.Body())).
		Msg("tts response carried no usable audio")
}

// DetectMIME sniffs the media type of audio bytes.
func DetectMIME(data []byte) string {
	mtype := mimetype.Detect(data)
	// Drop parameters such as charset that only apply to text types.
	return strings.SplitN(mtype.String(), ";", 2)[0]
}

var _ voice.Synthesizer = (*Client)(nil)
