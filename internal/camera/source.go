package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config tunes a frame source. Zero values take the defaults below,
// which match the hardware this was built against.
type Config struct {
	ReconnectDelay time.Duration // wait between connection attempts
	FrameInterval  time.Duration // read pacing, ~30fps by default
	StopTimeout    time.Duration // bound on Stop before abandoning the worker
}

func (c *Config) setDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 33 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 3 * time.Second
	}
}

// Source owns one camera connection. It runs a perpetual
// connect/stream/reconnect loop and keeps only the latest frame; there
// is no buffering and no backlog.
type Source struct {
	key     string
	grabber Grabber
	cfg     Config

	mu        sync.RWMutex
	lastFrame *Frame
	status    Status
	listeners []func(key string, status Status)

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewSource(key string, grabber Grabber, cfg Config) *Source {
	cfg.setDefaults()
	return &Source{
		key:     key,
		grabber: grabber,
		cfg:     cfg,
		status:  StatusDisconnected,
	}
}

// OnStatus registers a status listener. Identical consecutive statuses
// are not re-announced. Must be called before Start.
func (s *Source) OnStatus(fn func(key string, status Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("camera source already started")
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)

	log.Infof("camera %s worker started", s.key)
	return nil
}

// Stop signals the loop and waits up to the configured timeout. A
// worker stuck in a device read past the timeout is abandoned and
// logged; it can no longer publish frames once cancelled.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		log.Infof("camera %s worker stopped", s.key)
	case <-time.After(s.cfg.StopTimeout):
		log.Warnf("camera %s worker did not stop within %s, abandoning", s.key, s.cfg.StopTimeout)
	}
}

// LatestFrame returns the last cached frame without blocking. The frame
// may be stale or nil if the camera never connected.
func (s *Source) LatestFrame() *Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrame
}

func (s *Source) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Source) loop(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}

		s.setStatus(StatusConnecting)
		reader, err := s.grabber.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setStatus(StatusError)
			log.Errorf("camera %s connect failed: %v", s.key, err)
			if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		s.setStatus(StatusConnected)
		s.stream(ctx, reader)
		reader.Close()

		if ctx.Err() != nil {
			return
		}
		s.setStatus(StatusDisconnected)
		if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
			return
		}
	}
}

// stream reads frames until a connection-level failure or cancellation.
func (s *Source) stream(ctx context.Context, reader FrameReader) {
	for ctx.Err() == nil {
		frame, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrBadFrame) {
				continue
			}
			if ctx.Err() == nil {
				log.Warnf("camera %s stream lost: %v", s.key, err)
			}
			return
		}

		// a read that was in flight when Stop cancelled us must not
		// publish its frame
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.lastFrame = &frame
		s.mu.Unlock()

		if !sleepCtx(ctx, s.cfg.FrameInterval) {
			return
		}
	}
}

func (s *Source) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s.key, status)
	}
}

// sleepCtx waits for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
