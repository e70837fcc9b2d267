package voice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-widget/internal/domain/voice"
)

type MockSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text, voice string) (*voice.Clip, error)
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, v string) (*voice.Clip, error) {
	return m.SynthesizeFunc(ctx, text, v)
}

// blockingPlayer records every clip and holds it until the context ends.
type blockingPlayer struct {
	mu        sync.Mutex
	started   []string
	cancelled []string
	playing   chan string
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{playing: make(chan string, 8)}
}

func (p *blockingPlayer) Play(ctx context.Context, clip *voice.Clip) error {
	name := string(clip.Data)
	p.mu.Lock()
	p.started = append(p.started, name)
	p.mu.Unlock()
	p.playing <- name

	<-ctx.Done()
	p.mu.Lock()
	p.cancelled = append(p.cancelled, name)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *blockingPlayer) snapshot() (started, cancelled []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.started...), append([]string(nil), p.cancelled...)
}

func echoSynth(calls *int, mu *sync.Mutex) *MockSynthesizer {
	return &MockSynthesizer{
		SynthesizeFunc: func(_ context.Context, text, _ string) (*voice.Clip, error) {
			if mu != nil {
				mu.Lock()
				*calls++
				mu.Unlock()
			}
			return &voice.Clip{MIMEType: "audio/mpeg", Data: []byte(text)}, nil
		},
	}
}

func waitPlaying(t *testing.T, p *blockingPlayer) string {
	t.Helper()
	select {
	case name := <-p.playing:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not start")
		return ""
	}
}

func TestHook_DisabledOrBlankIsNoop(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	hook := voice.NewHook(echoSynth(&calls, &mu), newBlockingPlayer(), voice.HookConfig{Voice: "alloy"}, zerolog.Nop())

	hook.Speak("hello", false)
	hook.Speak("", true)
	hook.Speak("   ", true)
	hook.Wait()

	assert.Equal(t, 0, calls)
}

func TestHook_PassesConfiguredVoice(t *testing.T) {
	gotVoice := make(chan string, 1)
	synth := &MockSynthesizer{
		SynthesizeFunc: func(_ context.Context, text, v string) (*voice.Clip, error) {
			gotVoice <- v
			return &voice.Clip{MIMEType: "audio/mpeg", Data: []byte(text)}, nil
		},
	}
	player := newBlockingPlayer()
	hook := voice.NewHook(synth, player, voice.HookConfig{Voice: "alloy"}, zerolog.Nop())

	hook.Speak("We offer cloud consulting.", true)

	assert.Equal(t, "alloy", <-gotVoice)
	assert.Equal(t, "We offer cloud consulting.", waitPlaying(t, player))
	hook.Stop()
	hook.Wait()
}

func TestHook_SynthesisFailureIsSwallowed(t *testing.T) {
	synth := &MockSynthesizer{
		SynthesizeFunc: func(context.Context, string, string) (*voice.Clip, error) {
			return nil, errors.New("tts unavailable")
		},
	}
	player := newBlockingPlayer()
	hook := voice.NewHook(synth, player, voice.HookConfig{}, zerolog.Nop())

	hook.Speak("hello", true)
	hook.Wait()

	started, _ := player.snapshot()
	assert.Empty(t, started)
}

func TestHook_EmptyClipIsNotPlayed(t *testing.T) {
	synth := &MockSynthesizer{
		SynthesizeFunc: func(context.Context, string, string) (*voice.Clip, error) {
			return &voice.Clip{MIMEType: "audio/mpeg"}, nil
		},
	}
	player := newBlockingPlayer()
	hook := voice.NewHook(synth, player, voice.HookConfig{}, zerolog.Nop())

	hook.Speak("hello", true)
	hook.Wait()

	started, _ := player.snapshot()
	assert.Empty(t, started)
}

func TestHook_NewPlaybackCancelsPrevious(t *testing.T) {
	player := newBlockingPlayer()
	hook := voice.NewHook(echoSynth(nil, nil), player, voice.HookConfig{}, zerolog.Nop())

	hook.Speak("first", true)
	require.Equal(t, "first", waitPlaying(t, player))

	hook.Speak("second", true)
	require.Equal(t, "second", waitPlaying(t, player))

	require.Eventually(t, func() bool {
		_, cancelled := player.snapshot()
		return len(cancelled) == 1
	}, time.Second, 5*time.Millisecond)
	_, cancelled := player.snapshot()
	assert.Equal(t, []string{"first"}, cancelled)

	hook.Stop()
	hook.Wait()
	_, cancelled = player.snapshot()
	assert.Equal(t, []string{"first", "second"}, cancelled)
}

func TestHook_SlowOlderSynthesisNeverReplacesNewer(t *testing.T) {
	release := make(chan struct{})
	synth := &MockSynthesizer{
		SynthesizeFunc: func(_ context.Context, text, _ string) (*voice.Clip, error) {
			if text == "old" {
				<-release
			}
			return &voice.Clip{MIMEType: "audio/mpeg", Data: []byte(text)}, nil
		},
	}
	player := newBlockingPlayer()
	hook := voice.NewHook(synth, player, voice.HookConfig{}, zerolog.Nop())

	hook.Speak("old", true)
	hook.Speak("new", true)
	require.Equal(t, "new", waitPlaying(t, player))

	close(release)
	hook.Stop()
	hook.Wait()

	started, _ := player.snapshot()
	assert.Equal(t, []string{"new"}, started)
}

func TestHook_StopDiscardsPendingSynthesis(t *testing.T) {
	release := make(chan struct{})
	synth := &MockSynthesizer{
		SynthesizeFunc: func(_ context.Context, text, _ string) (*voice.Clip, error) {
			<-release
			return &voice.Clip{MIMEType: "audio/mpeg", Data: []byte(text)}, nil
		},
	}
	player := newBlockingPlayer()
	hook := voice.NewHook(synth, player, voice.HookConfig{}, zerolog.Nop())

	hook.Speak("pending", true)
	hook.Stop()
	close(release)
	hook.Wait()

	started, _ := player.snapshot()
	assert.Empty(t, started)
}

func TestClip_DataURI(t *testing.T) {
	clip := &voice.Clip{MIMEType: "audio/wav", Data: []byte("RIFF")}
	assert.Equal(t, "data:audio/wav;base64,UklGRg==", clip.DataURI())
}
