package camera_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hoangtv/parking-services/internal/camera"
)

// fakeReader serves a scripted sequence of frames and errors.
type fakeReader struct {
	mu     sync.Mutex
	frames []fakeFrame
	closed bool
}

type fakeFrame struct {
	data []byte
	err  error
}

func (r *fakeReader) ReadFrame() (camera.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		// script exhausted: behave like a dead stream
		return camera.Frame{}, io.EOF
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	if f.err != nil {
		return camera.Frame{}, f.err
	}
	return camera.Frame{Data: f.data, At: time.Now()}, nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// fakeGrabber hands out one scripted reader per connect attempt.
type fakeGrabber struct {
	mu      sync.Mutex
	scripts []any // either *fakeReader or error
}

func (g *fakeGrabber) Connect(ctx context.Context) (camera.FrameReader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.scripts) == 0 {
		// keep later connect attempts pending until cancelled
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := g.scripts[0]
	g.scripts = g.scripts[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(camera.FrameReader), nil
}

func fastConfig() camera.Config {
	return camera.Config{
		ReconnectDelay: 5 * time.Millisecond,
		FrameInterval:  time.Millisecond,
		StopTimeout:    time.Second,
	}
}

// statusRecorder collects announced transitions.
type statusRecorder struct {
	mu     sync.Mutex
	states []camera.Status
}

func (r *statusRecorder) record(_ string, s camera.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *statusRecorder) snapshot() []camera.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]camera.Status(nil), r.states...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSource_CachesLatestFrame(t *testing.T) {
	reader := &fakeReader{frames: []fakeFrame{
		{data: []byte("frame-1")},
		{data: []byte("frame-2")},
	}}
	src := camera.NewSource("entry_front", &fakeGrabber{scripts: []any{reader}}, fastConfig())

	if src.LatestFrame() != nil {
		t.Error("expected no frame before start")
	}

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	waitFor(t, time.Second, func() bool {
		f := src.LatestFrame()
		return f != nil && string(f.Data) == "frame-2"
	})
}

func TestSource_SkipsBadFrames(t *testing.T) {
	reader := &fakeReader{frames: []fakeFrame{
		{err: camera.ErrBadFrame},
		{err: camera.ErrBadFrame},
		{data: []byte("good")},
	}}
	src := camera.NewSource("entry_front", &fakeGrabber{scripts: []any{reader}}, fastConfig())

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	waitFor(t, time.Second, func() bool {
		f := src.LatestFrame()
		return f != nil && string(f.Data) == "good"
	})
}

func TestSource_ReconnectsAfterStreamLoss(t *testing.T) {
	first := &fakeReader{frames: []fakeFrame{
		{data: []byte("before-loss")},
		{err: errors.New("connection reset")},
	}}
	second := &fakeReader{frames: []fakeFrame{
		{data: []byte("after-reconnect")},
	}}
	grabber := &fakeGrabber{scripts: []any{first, second}}

	rec := &statusRecorder{}
	src := camera.NewSource("exit_front", grabber, fastConfig())
	src.OnStatus(rec.record)

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	waitFor(t, time.Second, func() bool {
		f := src.LatestFrame()
		return f != nil && string(f.Data) == "after-reconnect"
	})

	// the recovery must pass through CONNECTED → DISCONNECTED →
	// CONNECTING → CONNECTED without external intervention
	want := []camera.Status{
		camera.StatusConnecting, camera.StatusConnected,
		camera.StatusDisconnected,
		camera.StatusConnecting, camera.StatusConnected,
	}
	got := rec.snapshot()
	if len(got) < len(want) {
		t.Fatalf("expected at least %d transitions, got %v", len(want), got)
	}
	for i, s := range want {
		if got[i] != s {
			t.Fatalf("transition %d = %s, want %s (all: %v)", i, got[i], s, got)
		}
	}

	if !first.closed {
		t.Error("expected lost connection to be released")
	}
}

func TestSource_ConnectFailureSetsErrorAndRetries(t *testing.T) {
	reader := &fakeReader{frames: []fakeFrame{{data: []byte("eventually")}}}
	grabber := &fakeGrabber{scripts: []any{
		errors.New("no route to host"),
		reader,
	}}

	rec := &statusRecorder{}
	src := camera.NewSource("entry_rear", grabber, fastConfig())
	src.OnStatus(rec.record)

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	waitFor(t, time.Second, func() bool {
		return src.LatestFrame() != nil
	})

	got := rec.snapshot()
	sawError := false
	for _, s := range got {
		if s == camera.StatusError {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("expected ERROR transition after failed connect, got %v", got)
	}
	if src.Status() != camera.StatusConnected {
		t.Errorf("expected CONNECTED after retry, got %s", src.Status())
	}
}

func TestSource_StopTerminatesPromptly(t *testing.T) {
	src := camera.NewSource("entry_front", &fakeGrabber{}, fastConfig())
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		src.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}

	if err := src.Start(); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	src.Stop()
}

// gatedReader returns one frame immediately, then holds every further
// read until the test releases it.
type gatedReader struct {
	mu     sync.Mutex
	served bool
	gate   chan []byte
}

func (r *gatedReader) ReadFrame() (camera.Frame, error) {
	r.mu.Lock()
	first := !r.served
	r.served = true
	r.mu.Unlock()

	if first {
		return camera.Frame{Data: []byte("live"), At: time.Now()}, nil
	}

	data, ok := <-r.gate
	if !ok {
		return camera.Frame{}, io.EOF
	}
	return camera.Frame{Data: data, At: time.Now()}, nil
}

func (r *gatedReader) Close() error { return nil }

func TestSource_AbandonedReadCannotPublishAfterStop(t *testing.T) {
	// buffered so the release below cannot hang if the worker already
	// exited between reads
	reader := &gatedReader{gate: make(chan []byte, 1)}
	cfg := fastConfig()
	cfg.StopTimeout = 10 * time.Millisecond

	src := camera.NewSource("entry_front", &fakeGrabber{scripts: []any{reader}}, cfg)
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		f := src.LatestFrame()
		return f != nil && string(f.Data) == "live"
	})

	// the worker is now stuck in a device read; Stop abandons it
	src.Stop()

	// the stuck read completes only after cancellation
	reader.gate <- []byte("stale")
	close(reader.gate)

	time.Sleep(20 * time.Millisecond)
	if f := src.LatestFrame(); string(f.Data) != "live" {
		t.Errorf("frame read after stop was published: %q", f.Data)
	}
}
