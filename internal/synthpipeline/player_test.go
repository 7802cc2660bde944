package synthpipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Rokurolize/ttsrelay/pkg/voicetransport"
)

type fakeSession struct {
	connected bool
}

func (f *fakeSession) IsConnected() bool { return f.connected }

type fakeTransport struct {
	mu       sync.Mutex
	playing  bool
	playErr  error
	playCall int
	stopCall int
}

func (f *fakeTransport) Connect(ctx context.Context, channelID string) error { return nil }
func (f *fakeTransport) Move(ctx context.Context, channelID string) error    { return nil }
func (f *fakeTransport) Disconnect(ctx context.Context) error                { return nil }
func (f *fakeTransport) Unsuppress(ctx context.Context) error                { return nil }
func (f *fakeTransport) IsConnected() bool                                   { return true }
func (f *fakeTransport) CurrentChannelID() string                           { return "" }
func (f *fakeTransport) ChannelKind(channelID string) (voicetransport.ChannelKind, error) {
	return voicetransport.ChannelKindVoice, nil
}

func (f *fakeTransport) Play(ctx context.Context, wavBytes []byte) error {
	f.mu.Lock()
	f.playCall++
	err := f.playErr
	f.mu.Unlock()
	return err
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	f.stopCall++
	f.playing = false
	f.mu.Unlock()
}

func (f *fakeTransport) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeTransport) HealthProbe() voicetransport.Health { return voicetransport.Health{} }

func TestPlayerWorker_PlayOne_DisposesWhenNotConnected(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{}
	session := &fakeSession{connected: false}

	w := NewPlayerWorker(q, transport, session, nil)
	q.TryEnqueue(AudioArtifact{GroupID: "g1", SizeBytes: 100, Priority: 5})
	artifact, _ := q.Pop()

	if err := w.playOne(context.Background(), artifact); err != nil {
		t.Fatalf("playOne: %v", err)
	}
	if transport.playCall != 0 {
		t.Fatalf("expected Play not called when session disconnected")
	}
	if q.BufferedBytes() != 0 {
		t.Fatalf("expected buffered bytes released, got %d", q.BufferedBytes())
	}
}

func TestPlayerWorker_PlayOne_PlaysWhenConnected(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{}
	session := &fakeSession{connected: true}

	w := NewPlayerWorker(q, transport, session, nil)
	q.TryEnqueue(AudioArtifact{GroupID: "g1", SizeBytes: 100, Priority: 5, WAVBytes: []byte("x")})
	artifact, _ := q.Pop()

	if err := w.playOne(context.Background(), artifact); err != nil {
		t.Fatalf("playOne: %v", err)
	}
	if transport.playCall != 1 {
		t.Fatalf("expected Play called once, got %d", transport.playCall)
	}
}

func TestPlayerWorker_Run_HaltsAfterConsecutiveErrors(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{playErr: errors.New("boom")}
	session := &fakeSession{connected: true}

	haltCalled := false
	w := NewPlayerWorker(q, transport, session, func() { haltCalled = true })

	for i := 0; i < maxConsecutiveErrors; i++ {
		q.TryEnqueue(AudioArtifact{GroupID: "g", ChunkIndex: i, SizeBytes: 10, Priority: 5})
	}

	err := w.Run(context.Background())
	if err == nil {
		t.Fatalf("expected Run to return the playback error after halting")
	}
	if !haltCalled {
		t.Fatalf("expected onHalt callback to fire")
	}
	if transport.playCall != maxConsecutiveErrors {
		t.Fatalf("Play called %d times, want %d", transport.playCall, maxConsecutiveErrors)
	}
}

func TestPlayerWorker_Run_RecoversOnSuccessBetweenErrors(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{}
	session := &fakeSession{connected: true}
	w := NewPlayerWorker(q, transport, session, nil)

	q.TryEnqueue(AudioArtifact{GroupID: "g1", SizeBytes: 10, Priority: 5})
	w.Stop()
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPlayerWorker_PlayOne_InvokesOnPlayedWhenConnected(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{}
	session := &fakeSession{connected: true}

	w := NewPlayerWorker(q, transport, session, nil)
	played := 0
	w.SetOnPlayed(func() { played++ })

	q.TryEnqueue(AudioArtifact{GroupID: "g1", SizeBytes: 100, Priority: 5, WAVBytes: []byte("x")})
	artifact, _ := q.Pop()

	if err := w.playOne(context.Background(), artifact); err != nil {
		t.Fatalf("playOne: %v", err)
	}
	if played != 1 {
		t.Fatalf("onPlayed called %d times, want 1", played)
	}
}

func TestPlayerWorker_PlayOne_DoesNotInvokeOnPlayedWhenNotConnected(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{}
	session := &fakeSession{connected: false}

	w := NewPlayerWorker(q, transport, session, nil)
	played := 0
	w.SetOnPlayed(func() { played++ })

	q.TryEnqueue(AudioArtifact{GroupID: "g1", SizeBytes: 100, Priority: 5})
	artifact, _ := q.Pop()

	if err := w.playOne(context.Background(), artifact); err != nil {
		t.Fatalf("playOne: %v", err)
	}
	if played != 0 {
		t.Fatalf("onPlayed called %d times, want 0 when session not connected", played)
	}
}

func TestPlayerWorker_PlayOne_DoesNotInvokeOnPlayedOnError(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	transport := &fakeTransport{playErr: errors.New("boom")}
	session := &fakeSession{connected: true}

	w := NewPlayerWorker(q, transport, session, nil)
	played := 0
	w.SetOnPlayed(func() { played++ })

	q.TryEnqueue(AudioArtifact{GroupID: "g1", SizeBytes: 100, Priority: 5})
	artifact, _ := q.Pop()

	if err := w.playOne(context.Background(), artifact); err == nil {
		t.Fatalf("expected playOne to return the transport error")
	}
	if played != 0 {
		t.Fatalf("onPlayed called %d times, want 0 on playback error", played)
	}
}

func TestPlayerWorker_CurrentGroupID_EmptyWhenIdle(t *testing.T) {
	q := NewAudioQueue(1<<20, 1<<20)
	w := NewPlayerWorker(q, &fakeTransport{}, &fakeSession{connected: true}, nil)
	if w.CurrentGroupID() != "" {
		t.Fatalf("expected empty CurrentGroupID before any playback")
	}
}
