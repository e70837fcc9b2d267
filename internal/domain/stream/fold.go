package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const defaultChunkSize = 4096

// ErrTooManyMalformed is returned by Fold when Options.MaxMalformedLines is exceeded.
var ErrTooManyMalformed = errors.New("too many malformed stream lines")

// Options tune Fold.
type Options struct {
	// MaxMalformedLines aborts the fold once more lines than this fail to parse.
	// Zero means unlimited.
	MaxMalformedLines int
	// ChunkSize is the read buffer size. Defaults to 4 KiB.
	ChunkSize int
}

// Stats describes what a fold consumed.
type Stats struct {
	Chunks    int
	Bytes     int64
	Lines     int
	Deltas    int
	Ignored   int
	Malformed int
	SawDone   bool
}

// DeltaFunc receives the accumulated assistant text after every delta.
type DeltaFunc func(accumulated string)

// Fold reads r until EOF or the [DONE] sentinel and returns the concatenated
// delta text. onDelta is called synchronously, in stream order, after each
// delta is appended.
//
// Any read error other than io.EOF aborts the fold; the returned text is then
// whatever was accumulated so far and callers should not present it as final.
func Fold(ctx context.Context, r io.Reader, opts Options, onDelta DeltaFunc) (string, Stats, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}

	dec := NewDecoder()
	f := &folder{opts: opts, onDelta: onDelta}
	chunk := make([]byte, size)

	for !dec.Done() {
		if err := ctx.Err(); err != nil {
			return f.text.String(), f.stats, err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			f.stats.Chunks++
			f.stats.Bytes += int64(n)
			if ferr := f.apply(dec.Feed(chunk[:n])); ferr != nil {
				return f.text.String(), f.stats, ferr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return f.text.String(), f.stats, fmt.Errorf("read stream: %w", err)
		}
	}

	if err := f.apply(dec.Finish()); err != nil {
		return f.text.String(), f.stats, err
	}
	return f.text.String(), f.stats, nil
}

type folder struct {
	opts    Options
	onDelta DeltaFunc
	text    strings.Builder
	stats   Stats
}

func (f *folder) apply(results []Result) error {
	for _, res := range results {
		f.stats.Lines++
		switch res.Kind {
		case KindDelta:
			f.stats.Deltas++
			f.text.WriteString(res.Text)
			if f.onDelta != nil {
				f.onDelta(f.text.String())
			}
		case KindMalformed:
			f.stats.Malformed++
			if f.opts.MaxMalformedLines > 0 && f.stats.Malformed > f.opts.MaxMalformedLines {
				return fmt.Errorf("%w: %d lines", ErrTooManyMalformed, f.stats.Malformed)
			}
		case KindDone:
			f.stats.SawDone = true
		default:
			f.stats.Ignored++
		}
	}
	return nil
}
