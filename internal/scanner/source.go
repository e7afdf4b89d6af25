package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hoangtv/parking-services/internal/comm"
)

// Config tunes a scan source. Zero values take the defaults below; the
// 2 second debounce collapses the repeated reads one physical card pass
// produces into a single event.
type Config struct {
	Debounce    time.Duration
	PollPause   time.Duration
	RetryDelay  time.Duration
	StopTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = 2 * time.Second
	}
	if c.PollPause <= 0 {
		c.PollPause = 100 * time.Millisecond
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 3 * time.Second
	}
}

// Source owns one lane's RFID reader. It polls for newline-terminated
// card ids and emits debounced scan events; connection failures are
// retried forever, there is no state it does not recover from.
type Source struct {
	lane   string
	opener Opener
	cfg    Config

	events chan comm.ScanEvent

	mu        sync.Mutex
	onError   []func(lane string, err error)
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
	connected bool
}

// Connected reports whether the reader link is currently open.
func (s *Source) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Source) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func NewSource(lane string, opener Opener, cfg Config) *Source {
	cfg.setDefaults()
	return &Source{
		lane:   lane,
		opener: opener,
		cfg:    cfg,
		events: make(chan comm.ScanEvent, 16),
	}
}

// Events delivers scan events in the order they were read.
func (s *Source) Events() <-chan comm.ScanEvent {
	return s.events
}

// OnError registers a connection-failure listener. Must be called
// before Start.
func (s *Source) OnError(fn func(lane string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, fn)
}

func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scan source already started")
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)

	log.Infof("scanner %s worker started", s.lane)
	return nil
}

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
		log.Infof("scanner %s worker stopped", s.lane)
	case <-time.After(s.cfg.StopTimeout):
		log.Warnf("scanner %s worker did not stop within %s, abandoning", s.lane, s.cfg.StopTimeout)
	}
}

func (s *Source) loop(ctx context.Context) {
	defer close(s.done)

	var conn Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
		s.setConnected(false)
	}()

	for ctx.Err() == nil {
		if conn == nil {
			c, err := s.opener.Open()
			if err != nil {
				s.notifyError(err)
				if !sleepCtx(ctx, s.cfg.RetryDelay) {
					return
				}
				continue
			}
			conn = c
			s.setConnected(true)
			log.Infof("scanner %s reader connected", s.lane)
		}

		line, err := conn.ReadLine()
		switch {
		case errors.Is(err, ErrNoData):
			if !sleepCtx(ctx, s.cfg.PollPause) {
				return
			}
			continue
		case errors.Is(err, ErrBadLine):
			continue
		case err != nil:
			s.notifyError(err)
			conn.Close()
			conn = nil
			s.setConnected(false)
			if !sleepCtx(ctx, s.cfg.RetryDelay) {
				return
			}
			continue
		}

		card := strings.TrimSpace(line)
		if card == "" {
			continue
		}

		ev := comm.ScanEvent{Lane: s.lane, CardID: card, ScannedAt: time.Now()}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}

		// suppress duplicate reads of the same physical pass
		if !sleepCtx(ctx, s.cfg.Debounce) {
			return
		}
	}
}

func (s *Source) notifyError(err error) {
	log.Errorf("scanner %s: %v", s.lane, err)
	s.mu.Lock()
	listeners := s.onError
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(s.lane, err)
	}
}

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
