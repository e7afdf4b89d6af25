package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hoangtv/parking-services/internal/camera"
	"github.com/hoangtv/parking-services/internal/capture"
	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

// State of a lane's transaction pipeline.
type State string

const (
	StateIdle             State = "IDLE"
	StateCapturing        State = "CAPTURING"
	StateLedgerPending    State = "LEDGER_PENDING"
	StateReportingSuccess State = "REPORTING_SUCCESS"
	StateReportingFailure State = "REPORTING_FAILURE"
)

// Ledger are the two transactional operations a lane dispatches to.
type Ledger interface {
	CheckIn(ctx context.Context, cardID, frontRef, rearRef string) (*models.Session, error)
	CheckOut(ctx context.Context, cardID, frontRef, rearRef string) (*models.Session, error)
}

// CameraSource is the coordinator's read-only view of a lane camera.
type CameraSource interface {
	capture.FrameProvider
	Status() camera.Status
}

// Config tunes a coordinator. Zero values take the defaults below.
type Config struct {
	LedgerTimeout time.Duration

	// PendingTTL is how long a paid exit waits for the operator's
	// payment acknowledgment before it is dropped from the pending set.
	PendingTTL time.Duration
}

func (c *Config) setDefaults() {
	if c.LedgerTimeout <= 0 {
		c.LedgerTimeout = 10 * time.Second
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = 30 * time.Minute
	}
}

// Coordinator glues one lane's trigger to capture, ledger operation and
// operator-facing result. Hardware scans and manual triggers are two
// producers of the same logical event; both land on the same input and
// are processed one at a time in arrival order.
type Coordinator struct {
	role  models.LaneRole
	front CameraSource
	rear  CameraSource
	sync  *capture.Synchronizer

	ledger  Ledger
	publish func(comm.LaneEvent)
	cfg     Config

	scans    <-chan comm.ScanEvent
	triggers chan comm.TriggerCommand
	acks     chan comm.PaymentAck

	mu      sync.Mutex
	state   State
	pending map[string]comm.LaneEvent // txID -> event awaiting payment ack
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func New(role models.LaneRole, front, rear CameraSource, sync *capture.Synchronizer,
	scans <-chan comm.ScanEvent, ledger Ledger, publish func(comm.LaneEvent), cfg Config) *Coordinator {
	cfg.setDefaults()
	return &Coordinator{
		role:     role,
		front:    front,
		rear:     rear,
		sync:     sync,
		ledger:   ledger,
		publish:  publish,
		cfg:      cfg,
		scans:    scans,
		triggers: make(chan comm.TriggerCommand, 4),
		acks:     make(chan comm.PaymentAck, 4),
		state:    StateIdle,
		pending:  make(map[string]comm.LaneEvent),
	}
}

func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New("coordinator already started")
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx)

	log.Infof("lane %s coordinator started", c.role)
	return nil
}

func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	log.Infof("lane %s coordinator stopped", c.role)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger queues a manual transaction with an operator-supplied code.
func (c *Coordinator) Trigger(cardID string) error {
	if cardID == "" {
		return errors.New("manual trigger requires a card code")
	}
	select {
	case c.triggers <- comm.TriggerCommand{Lane: string(c.role), CardID: cardID}:
		return nil
	default:
		return errors.New("lane is busy, trigger dropped")
	}
}

// AckPayment marks a paid exit as collected. The transaction stays
// pending in the operator UI until this arrives.
func (c *Coordinator) AckPayment(txID string) error {
	select {
	case c.acks <- comm.PaymentAck{Lane: string(c.role), TxID: txID}:
		return nil
	default:
		return errors.New("payment ack queue full")
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	sweep := time.NewTicker(c.cfg.PendingTTL / 2)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.scans:
			c.transact(ctx, ev.CardID)
		case cmd := <-c.triggers:
			c.transact(ctx, cmd.CardID)
		case ack := <-c.acks:
			c.settlePayment(ack.TxID)
		case <-sweep.C:
			c.evictStalePending()
		}
	}
}

// evictStalePending drops paid exits the operator never acknowledged.
// The session itself is already closed in the ledger; only the UI
// confirmation is forfeited.
func (c *Coordinator) evictStalePending() {
	cutoff := time.Now().Add(-c.cfg.PendingTTL)

	c.mu.Lock()
	defer c.mu.Unlock()
	for txID, ev := range c.pending {
		if ev.At.Before(cutoff) {
			delete(c.pending, txID)
			log.Warnf("lane %s: payment for card %s (tx %s, %d) never acknowledged, dropping",
				c.role, ev.CardID, txID, ev.Price)
		}
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// transact runs one full trigger → capture → ledger → report cycle.
func (c *Coordinator) transact(ctx context.Context, cardID string) {
	txID := uuid.New().String()

	c.setState(StateCapturing)
	frontRef, rearRef, err := c.sync.Capture(string(c.role), c.front, c.rear)
	if err != nil {
		// no ledger call is made on capture failure
		c.report(comm.LaneEvent{
			TxID:    txID,
			Lane:    string(c.role),
			CardID:  cardID,
			Ok:      false,
			Message: captureMessage(err),
			At:      time.Now(),
		})
		return
	}

	c.setState(StateLedgerPending)
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.LedgerTimeout)
	defer cancel()

	var sess *models.Session
	if c.role == models.LaneEntry {
		sess, err = c.ledger.CheckIn(opCtx, cardID, frontRef, rearRef)
	} else {
		sess, err = c.ledger.CheckOut(opCtx, cardID, frontRef, rearRef)
	}

	if err != nil {
		c.report(comm.LaneEvent{
			TxID:    txID,
			Lane:    string(c.role),
			CardID:  cardID,
			Ok:      false,
			Message: ledgerMessage(cardID, err),
			At:      time.Now(),
		})
		return
	}

	ev := comm.LaneEvent{
		TxID:        txID,
		Lane:        string(c.role),
		CardID:      cardID,
		Ok:          true,
		VehicleType: sess.VehicleType,
		Price:       sess.Price,
		CheckinTime: sess.CheckinTime,
		FrontRef:    frontRef,
		RearRef:     rearRef,
		Beep:        true,
		At:          time.Now(),
	}

	if c.role == models.LaneEntry {
		ev.Message = fmt.Sprintf("vehicle admitted (%s)", sess.VehicleType)
	} else if sess.Price > 0 {
		// no automated payment or gate exists, the operator must
		// confirm collection before the transaction closes in the UI
		ev.Message = fmt.Sprintf("fee %d, collect payment", sess.Price)
		ev.AwaitingPayment = true
		c.mu.Lock()
		c.pending[txID] = ev
		c.mu.Unlock()
	} else {
		ev.Message = "vehicle released, no fee"
	}

	c.reportOk(ev)
}

func (c *Coordinator) settlePayment(txID string) {
	c.mu.Lock()
	ev, ok := c.pending[txID]
	if ok {
		delete(c.pending, txID)
	}
	c.mu.Unlock()

	if !ok {
		log.Warnf("lane %s: payment ack for unknown tx %s", c.role, txID)
		return
	}

	ev.AwaitingPayment = false
	ev.Beep = false
	ev.Message = fmt.Sprintf("payment collected for %s", ev.CardID)
	ev.At = time.Now()
	c.publish(ev)
	log.Infof("lane %s: payment collected for card %s (%d)", c.role, ev.CardID, ev.Price)
}

func (c *Coordinator) reportOk(ev comm.LaneEvent) {
	c.setState(StateReportingSuccess)
	c.publish(ev)
	log.Infof("lane %s: card %s ok (%s, price %d)", c.role, ev.CardID, ev.VehicleType, ev.Price)
	c.setState(StateIdle)
}

func (c *Coordinator) report(ev comm.LaneEvent) {
	c.setState(StateReportingFailure)
	c.publish(ev)
	log.Warnf("lane %s: card %s failed: %s", c.role, ev.CardID, ev.Message)
	c.setState(StateIdle)
}

func captureMessage(err error) string {
	if errors.Is(err, capture.ErrCameraUnavailable) {
		return "camera unavailable, check lane camera connections"
	}
	return fmt.Sprintf("image storage failed: %v", err)
}

func ledgerMessage(cardID string, err error) string {
	switch {
	case errors.Is(err, store.ErrAntiPassback):
		return fmt.Sprintf("card %s has not checked out", cardID)
	case errors.Is(err, store.ErrNoActiveSession):
		return fmt.Sprintf("card %s has not checked in", cardID)
	default:
		return fmt.Sprintf("ledger backend error: %v", err)
	}
}
