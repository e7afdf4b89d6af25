package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/service"
	"github.com/hoangtv/parking-services/internal/parking/store"
	"github.com/hoangtv/parking-services/internal/parking/store/memory"
)

// newTestLedger builds a LedgerService over in-memory stores, returning
// the stores so tests can seed cards and inspect sessions.
func newTestLedger() (*service.LedgerService, *memory.CardStore, *memory.SessionStore) {
	cards := memory.NewCardStore()
	sessions := memory.NewSessionStore(cards)
	ledger := service.NewLedgerService(sessions, service.DateBoundaryPolicy(3000, 5000))
	return ledger, cards, sessions
}

func TestCheckIn_UnknownCardIsDayPass(t *testing.T) {
	ledger, _, _ := newTestLedger()

	sess, err := ledger.CheckIn(context.Background(), "A1", "front.jpg", "rear.jpg")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if sess.VehicleType != models.VehicleTypeDay {
		t.Errorf("expected vehicle_type=DAY, got %q", sess.VehicleType)
	}
	if sess.Status != models.SessionOpen {
		t.Errorf("expected status=OPEN, got %q", sess.Status)
	}
	if sess.CheckinFrontRef != "front.jpg" || sess.CheckinRearRef != "rear.jpg" {
		t.Errorf("image refs not stored: %q %q", sess.CheckinFrontRef, sess.CheckinRearRef)
	}
}

func TestCheckIn_ActiveCardIsMonthPass(t *testing.T) {
	ledger, cards, _ := newTestLedger()
	if _, err := cards.UpsertActive(context.Background(), []string{"M1"}); err != nil {
		t.Fatalf("seed card: %v", err)
	}

	sess, err := ledger.CheckIn(context.Background(), "M1", "f.jpg", "r.jpg")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if sess.VehicleType != models.VehicleTypeMonth {
		t.Errorf("expected vehicle_type=MONTH, got %q", sess.VehicleType)
	}
}

func TestCheckIn_InactiveCardIsDayPass(t *testing.T) {
	ledger, cards, _ := newTestLedger()
	if _, err := cards.UpsertActive(context.Background(), []string{"M1"}); err != nil {
		t.Fatalf("seed card: %v", err)
	}
	cards.Deactivate("M1")

	sess, err := ledger.CheckIn(context.Background(), "M1", "f.jpg", "r.jpg")
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if sess.VehicleType != models.VehicleTypeDay {
		t.Errorf("expected vehicle_type=DAY for inactive card, got %q", sess.VehicleType)
	}
}

func TestCheckIn_AntiPassback(t *testing.T) {
	ledger, _, sessions := newTestLedger()

	if _, err := ledger.CheckIn(context.Background(), "A1", "f1.jpg", "r1.jpg"); err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}

	_, err := ledger.CheckIn(context.Background(), "A1", "f2.jpg", "r2.jpg")
	if !errors.Is(err, store.ErrAntiPassback) {
		t.Fatalf("expected ErrAntiPassback, got %v", err)
	}

	if n := sessions.OpenCount("A1"); n != 1 {
		t.Errorf("expected exactly 1 open session, got %d", n)
	}
}

func TestCheckOut_NoActiveSession(t *testing.T) {
	ledger, _, sessions := newTestLedger()

	_, err := ledger.CheckOut(context.Background(), "GHOST", "f.jpg", "r.jpg")
	if !errors.Is(err, store.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if n := sessions.OpenCount("GHOST"); n != 0 {
		t.Errorf("expected no sessions, got %d open", n)
	}
}

func TestCheckInThenOut_SameDayDayPass(t *testing.T) {
	ledger, _, _ := newTestLedger()

	clock := ts("2024-01-10 08:00")
	ledger.WithClock(func() time.Time { return clock })

	if _, err := ledger.CheckIn(context.Background(), "A1", "in_f.jpg", "in_r.jpg"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	clock = ts("2024-01-10 20:00")
	sess, err := ledger.CheckOut(context.Background(), "A1", "out_f.jpg", "out_r.jpg")
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}

	if sess.Price != 3000 {
		t.Errorf("expected price=3000, got %d", sess.Price)
	}
	if sess.VehicleType != models.VehicleTypeDay {
		t.Errorf("expected vehicle_type=DAY, got %q", sess.VehicleType)
	}
	if sess.Status != models.SessionClosed {
		t.Errorf("expected status=CLOSED, got %q", sess.Status)
	}
	if sess.CheckoutFrontRef != "out_f.jpg" || sess.CheckoutRearRef != "out_r.jpg" {
		t.Errorf("checkout refs not stored: %q %q", sess.CheckoutFrontRef, sess.CheckoutRearRef)
	}
}

func TestCheckInThenOut_MonthPassIsFree(t *testing.T) {
	ledger, cards, _ := newTestLedger()
	if _, err := cards.UpsertActive(context.Background(), []string{"M1"}); err != nil {
		t.Fatalf("seed card: %v", err)
	}

	if _, err := ledger.CheckIn(context.Background(), "M1", "f.jpg", "r.jpg"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	sess, err := ledger.CheckOut(context.Background(), "M1", "f2.jpg", "r2.jpg")
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if sess.Price != 0 {
		t.Errorf("expected price=0 for month pass, got %d", sess.Price)
	}
	if sess.VehicleType != models.VehicleTypeMonth {
		t.Errorf("expected vehicle_type=MONTH, got %q", sess.VehicleType)
	}
}

func TestCheckOut_CrossMidnightChargesOneNight(t *testing.T) {
	ledger, _, _ := newTestLedger()

	clock := ts("2024-01-10 23:50")
	ledger.WithClock(func() time.Time { return clock })

	if _, err := ledger.CheckIn(context.Background(), "A1", "f.jpg", "r.jpg"); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	clock = ts("2024-01-11 00:05")
	sess, err := ledger.CheckOut(context.Background(), "A1", "f2.jpg", "r2.jpg")
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if sess.Price != 5000 {
		t.Errorf("expected price=5000 for one crossed midnight, got %d", sess.Price)
	}
}

// Two lanes racing the same card must produce exactly one winner.
func TestCheckIn_ConcurrentSameCard(t *testing.T) {
	ledger, _, sessions := newTestLedger()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.CheckIn(context.Background(), "RACE", "f.jpg", "r.jpg")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrAntiPassback):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winning check-in, got %d", wins)
	}
	if n := sessions.OpenCount("RACE"); n != 1 {
		t.Errorf("expected 1 open session after race, got %d", n)
	}
}
