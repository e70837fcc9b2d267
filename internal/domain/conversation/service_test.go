package conversation_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/domain/stream"
)

// MockStreamer lets each test decide what the upstream returns.
type MockStreamer struct {
	OpenStreamFunc func(ctx context.Context, history []conversation.Message) (io.ReadCloser, error)
}

func (m *MockStreamer) OpenStream(ctx context.Context, history []conversation.Message) (io.ReadCloser, error) {
	return m.OpenStreamFunc(ctx, history)
}

type mapStore struct {
	mu       sync.Mutex
	sessions map[string]*conversation.Session
}

func newMapStore() *mapStore {
	return &mapStore{sessions: make(map[string]*conversation.Session)}
}

func (s *mapStore) Create(_ context.Context, sess *conversation.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID()]; ok {
		return conversation.ErrConversationExists
	}
	s.sessions[sess.ID()] = sess
	return nil
}

func (s *mapStore) Get(_ context.Context, id string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	return sess, nil
}

func (s *mapStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return conversation.ErrConversationNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *mapStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type mapArchive struct {
	mu    sync.Mutex
	snaps map[string]conversation.Snapshot
}

func newMapArchive() *mapArchive {
	return &mapArchive{snaps: make(map[string]conversation.Snapshot)}
}

func (a *mapArchive) Save(_ context.Context, snap conversation.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps[snap.ID] = snap
	return nil
}

func (a *mapArchive) Load(_ context.Context, id string) (*conversation.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.snaps[id]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	return &snap, nil
}

func (a *mapArchive) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.snaps, id)
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	statuses []string
	rejected []string
}

func (r *countingRecorder) RecordTurn(status string, _ time.Duration, _ stream.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *countingRecorder) RecordRejectedSubmit(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
}

// failingReader yields body then fails with err.
type failingReader struct {
	body io.Reader
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if errors.Is(err, io.EOF) {
		return n, r.err
	}
	return n, err
}

func sseBody(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func deltaLine(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}`
}

// blockingStreamer holds the stream open until the turn context ends.
func blockingStreamer() *MockStreamer {
	return &MockStreamer{
		OpenStreamFunc: func(ctx context.Context, _ []conversation.Message) (io.ReadCloser, error) {
			pr, pw := io.Pipe()
			go func() {
				<-ctx.Done()
				pw.CloseWithError(ctx.Err())
			}()
			return pr, nil
		},
	}
}

type serviceFixture struct {
	svc      *conversation.Service
	store    *mapStore
	archive  *mapArchive
	recorder *countingRecorder
	speaker  *recordingSpeaker
}

func newServiceFixture(t *testing.T, streamer conversation.Streamer) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:    newMapStore(),
		archive:  newMapArchive(),
		recorder: &countingRecorder{},
		speaker:  &recordingSpeaker{},
	}
	runner := conversation.NewRunner(streamer, stream.Options{}, f.recorder, nil, zerolog.Nop())
	f.svc = conversation.NewService(
		f.store,
		f.archive,
		runner,
		func(string) conversation.Speaker { return f.speaker },
		nil,
		f.recorder,
		conversation.ServiceConfig{},
		zerolog.Nop(),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.svc.Shutdown(ctx)
	})
	return f
}

func (f *serviceFixture) waitIdle(t *testing.T, id string) conversation.Snapshot {
	t.Helper()
	var snap conversation.Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = f.svc.Get(context.Background(), id)
		return err == nil && !snap.InFlight
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestService_StreamsReplyIntoConversation(t *testing.T) {
	var gotHistory []conversation.Message
	streamer := &MockStreamer{
		OpenStreamFunc: func(_ context.Context, history []conversation.Message) (io.ReadCloser, error) {
			gotHistory = history
			return sseBody(
				deltaLine("We "),
				deltaLine("offer cloud consulting."),
				"data: [DONE]",
			), nil
		},
	}
	f := newServiceFixture(t, streamer)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, nil)
	require.NoError(t, err)
	assert.False(t, created.VoiceOutput)

	res, err := f.svc.Submit(ctx, created.ID, "What services do you offer?")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.Conversation.InFlight)

	snap := f.waitIdle(t, created.ID)
	assert.Equal(t, []conversation.Message{
		{Role: conversation.RoleUser, Content: "What services do you offer?"},
		{Role: conversation.RoleAssistant, Content: "We offer cloud consulting."},
	}, snap.Messages)
	assert.Equal(t, []conversation.Message{
		{Role: conversation.RoleUser, Content: "What services do you offer?"},
	}, gotHistory)

	require.Eventually(t, func() bool { return len(f.speaker.lines()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, spokenLine{text: "We offer cloud consulting.", enabled: false}, f.speaker.lines()[0])
}

func TestService_StreamErrorShowsApology(t *testing.T) {
	streamer := &MockStreamer{
		OpenStreamFunc: func(context.Context, []conversation.Message) (io.ReadCloser, error) {
			body := strings.NewReader(deltaLine("Hel") + "\n" + deltaLine("lo") + "\n")
			return io.NopCloser(&failingReader{body: body, err: errors.New("connection reset")}), nil
		},
	}
	f := newServiceFixture(t, streamer)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)

	_, err := f.svc.Submit(ctx, created.ID, "hi")
	require.NoError(t, err)

	snap := f.waitIdle(t, created.ID)
	assert.Equal(t, conversation.ApologyMessage, snap.Messages[1].Content)
	assert.Empty(t, f.speaker.lines())
}

func TestService_OpenErrorShowsApology(t *testing.T) {
	streamer := &MockStreamer{
		OpenStreamFunc: func(context.Context, []conversation.Message) (io.ReadCloser, error) {
			return nil, errors.New("upstream returned 503")
		},
	}
	f := newServiceFixture(t, streamer)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)

	_, err := f.svc.Submit(ctx, created.ID, "hi")
	require.NoError(t, err)

	snap := f.waitIdle(t, created.ID)
	assert.Equal(t, conversation.ApologyMessage, snap.Messages[1].Content)
	f.recorder.mu.Lock()
	assert.Equal(t, []string{conversation.TurnStatusFailed}, f.recorder.statuses)
	f.recorder.mu.Unlock()
}

func TestService_SubmitWhileInFlightIsIgnored(t *testing.T) {
	f := newServiceFixture(t, blockingStreamer())
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)

	first, err := f.svc.Submit(ctx, created.ID, "first")
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := f.svc.Submit(ctx, created.ID, "second")
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Len(t, second.Conversation.Messages, 2)

	empty, err := f.svc.Submit(ctx, created.ID, "  ")
	require.NoError(t, err)
	assert.False(t, empty.Accepted)

	f.recorder.mu.Lock()
	assert.Equal(t, []string{conversation.RejectInFlight, conversation.RejectEmpty}, f.recorder.rejected)
	f.recorder.mu.Unlock()
}

func TestService_ResetRefusedWhileInFlight(t *testing.T) {
	f := newServiceFixture(t, blockingStreamer())
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)
	_, _ = f.svc.Submit(ctx, created.ID, "hi")

	_, err := f.svc.Reset(ctx, created.ID)
	assert.ErrorIs(t, err, conversation.ErrTurnInFlight)
}

func TestService_DeleteCancelsRunningTurn(t *testing.T) {
	f := newServiceFixture(t, blockingStreamer())
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)
	_, _ = f.svc.Submit(ctx, created.ID, "hi")

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Equal(t, 0, f.store.Len())

	f.recorder.mu.Lock()
	assert.Equal(t, []string{conversation.TurnStatusCancelled}, f.recorder.statuses)
	f.recorder.mu.Unlock()

	f.speaker.mu.Lock()
	assert.Equal(t, 1, f.speaker.stopped)
	f.speaker.mu.Unlock()

	_, err := f.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
	_, err = f.archive.Load(ctx, created.ID)
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)

	_, err = f.svc.Submit(ctx, created.ID, "again")
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
}

func TestService_DeleteRemovesArchivedSnapshot(t *testing.T) {
	streamer := &MockStreamer{
		OpenStreamFunc: func(context.Context, []conversation.Message) (io.ReadCloser, error) {
			return sseBody(deltaLine("hello"), "data: [DONE]"), nil
		},
	}

	t.Run("idle conversation", func(t *testing.T) {
		f := newServiceFixture(t, streamer)
		ctx := context.Background()
		created, _ := f.svc.Create(ctx, nil)
		_, _ = f.svc.Submit(ctx, created.ID, "hi")
		f.waitIdle(t, created.ID)
		require.Eventually(t, func() bool {
			_, err := f.archive.Load(ctx, created.ID)
			return err == nil
		}, 2*time.Second, 5*time.Millisecond)

		require.NoError(t, f.svc.Delete(ctx, created.ID))

		_, err := f.svc.Get(ctx, created.ID)
		assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
		_, err = f.svc.Submit(ctx, created.ID, "again")
		assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
	})

	t.Run("evicted conversation", func(t *testing.T) {
		f := newServiceFixture(t, streamer)
		ctx := context.Background()
		created, _ := f.svc.Create(ctx, nil)
		_, _ = f.svc.Submit(ctx, created.ID, "hi")
		f.waitIdle(t, created.ID)
		require.Eventually(t, func() bool {
			_, err := f.archive.Load(ctx, created.ID)
			return err == nil
		}, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, f.store.Delete(ctx, created.ID))

		archived, err := f.svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, archived.Messages, 2)

		require.NoError(t, f.svc.Delete(ctx, created.ID))
		_, err = f.svc.Get(ctx, created.ID)
		assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
	})
}

func TestService_EvictedConversationIsReadOnly(t *testing.T) {
	streamer := &MockStreamer{
		OpenStreamFunc: func(context.Context, []conversation.Message) (io.ReadCloser, error) {
			return sseBody(deltaLine("hello"), "data: [DONE]"), nil
		},
	}
	f := newServiceFixture(t, streamer)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)
	_, _ = f.svc.Submit(ctx, created.ID, "hi")
	f.waitIdle(t, created.ID)
	require.Eventually(t, func() bool {
		_, err := f.archive.Load(ctx, created.ID)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.store.Delete(ctx, created.ID))

	_, err := f.svc.Submit(ctx, created.ID, "again")
	assert.ErrorIs(t, err, conversation.ErrReadOnly)
}

func TestService_UnknownConversation(t *testing.T) {
	f := newServiceFixture(t, blockingStreamer())
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "conv_missing")
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)

	_, err = f.svc.Submit(ctx, "conv_missing", "hi")
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, "conv_missing"), conversation.ErrConversationNotFound)
}

func TestService_VoiceOutputToggle(t *testing.T) {
	streamer := &MockStreamer{
		OpenStreamFunc: func(context.Context, []conversation.Message) (io.ReadCloser, error) {
			return sseBody(deltaLine("hello"), "data: [DONE]"), nil
		},
	}
	f := newServiceFixture(t, streamer)
	ctx := context.Background()
	on := true
	created, err := f.svc.Create(ctx, &on)
	require.NoError(t, err)
	assert.True(t, created.VoiceOutput)

	_, _ = f.svc.Submit(ctx, created.ID, "hi")
	f.waitIdle(t, created.ID)

	snap, err := f.svc.SetVoiceOutput(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, snap.VoiceOutput)

	_, _ = f.svc.Submit(ctx, created.ID, "again")
	final := f.waitIdle(t, created.ID)

	require.Eventually(t, func() bool { return len(f.speaker.lines()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []spokenLine{
		{text: "hello", enabled: true},
		{text: "hello", enabled: false},
	}, f.speaker.lines())
	assert.Len(t, final.Messages, 4)
}

func TestService_ShutdownCancelsTurns(t *testing.T) {
	f := newServiceFixture(t, blockingStreamer())
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)
	_, _ = f.svc.Submit(ctx, created.ID, "hi")

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	snap, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, snap.InFlight)

	f.recorder.mu.Lock()
	assert.Equal(t, []string{conversation.TurnStatusCancelled}, f.recorder.statuses)
	f.recorder.mu.Unlock()
}

func TestService_SubmitAfterShutdownIsRejected(t *testing.T) {
	f := newServiceFixture(t, blockingStreamer())
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	_, err := f.svc.Submit(ctx, created.ID, "hi")
	assert.ErrorIs(t, err, conversation.ErrServiceClosed)

	snap, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, snap.InFlight)
	assert.Empty(t, snap.Messages)
}
