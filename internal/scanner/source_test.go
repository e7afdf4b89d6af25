package scanner_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/scanner"
)

// fakeConn serves a scripted sequence of lines and errors, then
// reports ErrNoData forever.
type fakeConn struct {
	mu     sync.Mutex
	script []fakeLine
	closed bool
}

type fakeLine struct {
	line string
	err  error
}

func (c *fakeConn) ReadLine() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) == 0 {
		return "", scanner.ErrNoData
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next.line, next.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	scripts []any // *fakeConn or error
	opens   int
}

func (o *fakeOpener) Open() (scanner.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if len(o.scripts) == 0 {
		return &fakeConn{}, nil
	}
	next := o.scripts[0]
	o.scripts = o.scripts[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(*fakeConn), nil
}

func fastConfig() scanner.Config {
	return scanner.Config{
		Debounce:    10 * time.Millisecond,
		PollPause:   time.Millisecond,
		RetryDelay:  5 * time.Millisecond,
		StopTimeout: time.Second,
	}
}

func collect(t *testing.T, events <-chan comm.ScanEvent, n int, timeout time.Duration) []comm.ScanEvent {
	t.Helper()
	var out []comm.ScanEvent
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev := <-events:
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("got %d events before timeout, want %d", len(out), n)
		}
	}
	return out
}

func TestSource_EmitsTrimmedScans(t *testing.T) {
	conn := &fakeConn{script: []fakeLine{
		{line: "  E200123456 \r"},
		{line: "E200999999"},
	}}
	src := scanner.NewSource("ENTRY", &fakeOpener{scripts: []any{conn}}, fastConfig())

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	events := collect(t, src.Events(), 2, time.Second)
	if events[0].CardID != "E200123456" {
		t.Errorf("event 0 card = %q, want E200123456", events[0].CardID)
	}
	if events[1].CardID != "E200999999" {
		t.Errorf("event 1 card = %q, want E200999999", events[1].CardID)
	}
	if events[0].Lane != "ENTRY" {
		t.Errorf("event lane = %q, want ENTRY", events[0].Lane)
	}
}

func TestSource_DropsEmptyAndMalformedLines(t *testing.T) {
	conn := &fakeConn{script: []fakeLine{
		{line: "   "},
		{err: scanner.ErrBadLine},
		{line: "GOOD1"},
	}}
	src := scanner.NewSource("EXIT", &fakeOpener{scripts: []any{conn}}, fastConfig())

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	events := collect(t, src.Events(), 1, time.Second)
	if events[0].CardID != "GOOD1" {
		t.Errorf("card = %q, want GOOD1", events[0].CardID)
	}

	select {
	case ev := <-src.Events():
		t.Errorf("unexpected extra event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSource_ReopensAfterConnectionFailure(t *testing.T) {
	dead := &fakeConn{script: []fakeLine{
		{err: errors.New("device unplugged")},
	}}
	alive := &fakeConn{script: []fakeLine{
		{line: "CARD42"},
	}}
	opener := &fakeOpener{scripts: []any{dead, alive}}

	var errMu sync.Mutex
	var reported []error
	src := scanner.NewSource("ENTRY", opener, fastConfig())
	src.OnError(func(_ string, err error) {
		errMu.Lock()
		reported = append(reported, err)
		errMu.Unlock()
	})

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	events := collect(t, src.Events(), 1, time.Second)
	if events[0].CardID != "CARD42" {
		t.Errorf("card = %q, want CARD42", events[0].CardID)
	}

	if !dead.closed {
		t.Error("expected failed connection to be closed")
	}
	errMu.Lock()
	n := len(reported)
	errMu.Unlock()
	if n == 0 {
		t.Error("expected a connection error notification")
	}
}

func TestSource_RetriesOpenForever(t *testing.T) {
	conn := &fakeConn{script: []fakeLine{{line: "LATE1"}}}
	opener := &fakeOpener{scripts: []any{
		errors.New("no such port"),
		errors.New("no such port"),
		errors.New("no such port"),
		conn,
	}}
	src := scanner.NewSource("EXIT", opener, fastConfig())

	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	events := collect(t, src.Events(), 1, time.Second)
	if events[0].CardID != "LATE1" {
		t.Errorf("card = %q, want LATE1", events[0].CardID)
	}

	opener.mu.Lock()
	opens := opener.opens
	opener.mu.Unlock()
	if opens < 4 {
		t.Errorf("expected at least 4 open attempts, got %d", opens)
	}
}
