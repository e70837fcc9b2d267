package voice

import (
	"context"
	"encoding/base64"
	"errors"
)

// ErrEmptyClip is returned by synthesizers that receive no audio.
var ErrEmptyClip = errors.New("synthesized clip is empty")

// Clip is decoded audio ready for playback.
type Clip struct {
	MIMEType string
	Data     []byte
}

// DataURI renders the clip as a data: URI for browser playback.
func (c *Clip) DataURI() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Clip, error)
}

// Player plays a clip. Play blocks until playback ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}
