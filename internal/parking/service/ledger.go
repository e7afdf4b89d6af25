package service

import (
	"context"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

// LedgerService is the authoritative record of parking stays. It wraps
// the transactional session store with the injectable fee policy; the
// anti-passback and single-open-session rules live in the store's
// transactions.
type LedgerService struct {
	sessions store.SessionStore
	fee      store.FeeFunc
	now      func() time.Time
}

func NewLedgerService(sessions store.SessionStore, fee store.FeeFunc) *LedgerService {
	return &LedgerService{
		sessions: sessions,
		fee:      fee,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// CheckIn opens a session for the card. Returns store.ErrAntiPassback
// when the card is already inside.
func (s *LedgerService) CheckIn(ctx context.Context, cardID, frontRef, rearRef string) (*models.Session, error) {
	return s.sessions.CheckIn(ctx, cardID, frontRef, rearRef, s.now())
}

// CheckOut closes the card's open session and prices it. Returns
// store.ErrNoActiveSession when the card never checked in.
func (s *LedgerService) CheckOut(ctx context.Context, cardID, frontRef, rearRef string) (*models.Session, error) {
	return s.sessions.CheckOut(ctx, cardID, frontRef, rearRef, s.now(), s.fee)
}
