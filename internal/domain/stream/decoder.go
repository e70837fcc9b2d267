// Package stream decodes chat-completion event streams into assistant text deltas.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	scratchSize = 4096
)

// Kind classifies a single event-stream line.
type Kind int

const (
	KindIgnored Kind = iota
	KindDelta
	KindMalformed
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindMalformed:
		return "malformed"
	case KindDone:
		return "done"
	default:
		return "ignored"
	}
}

// Result is the outcome of parsing one line. Text is set for KindDelta,
// Err for KindMalformed.
type Result struct {
	Kind Kind
	Text string
	Err  error
}

// deltaChunk mirrors the part of an OpenAI-compatible streaming chunk we read.
type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseLine classifies one line with its terminator already removed.
func ParseLine(line string) Result {
	if line == "" || strings.HasPrefix(line, ":") {
		return Result{Kind: KindIgnored}
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return Result{Kind: KindIgnored}
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneSentinel {
		return Result{Kind: KindDone}
	}

	var chunk deltaChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Result{Kind: KindMalformed, Err: err}
	}
	if len(chunk.Choices) == 0 {
		return Result{Kind: KindIgnored}
	}
	content := chunk.Choices[0].Delta.Content
	if content == nil || *content == "" {
		return Result{Kind: KindIgnored}
	}
	return Result{Kind: KindDelta, Text: *content}
}

// Decoder turns arbitrarily chunked bytes into per-line results. A code point
// split across chunks is held back until its remaining bytes arrive. Once the
// [DONE] sentinel is seen every later line is reported as ignored.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	utf8    transform.Transformer
	pending []byte
	buf     []byte
	scratch []byte
	done    bool
}

// NewDecoder returns a decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{
		utf8:    unicode.UTF8.NewDecoder(),
		scratch: make([]byte, scratchSize),
	}
}

// Feed decodes chunk and returns a result for every line it completes.
func (d *Decoder) Feed(chunk []byte) []Result {
	d.decode(chunk, false)
	return d.drain(false)
}

// Finish flushes any held-back bytes and returns results for the remaining
// lines, including a final line that was never newline-terminated.
func (d *Decoder) Finish() []Result {
	d.decode(nil, true)
	return d.drain(true)
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

// Buffered returns the number of decoded bytes waiting for a line terminator.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) decode(chunk []byte, atEOF bool) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	for {
		nDst, nSrc, err := d.utf8.Transform(d.scratch, src, atEOF)
		d.buf = append(d.buf, d.scratch[:nDst]...)
		src = src[nSrc:]

		switch {
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
		}
		return
	}
}

func (d *Decoder) drain(final bool) []Result {
	var results []Result
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		results = append(results, d.classify(line))
	}

	if final && len(d.buf) > 0 {
		results = append(results, d.classify(d.buf))
		d.buf = nil
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return results
}

func (d *Decoder) classify(line []byte) Result {
	if d.done {
		return Result{Kind: KindIgnored}
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})
	res := ParseLine(string(line))
	if res.Kind == KindDone {
		d.done = true
	}
	return res
}
