package store

import (
	"context"
	"errors"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
)

var (
	// ErrAntiPassback means the card already has an OPEN session and
	// must check out before it can check in again.
	ErrAntiPassback = errors.New("card already has an open session")

	// ErrNoActiveSession means a checkout was attempted for a card
	// with no OPEN session.
	ErrNoActiveSession = errors.New("card has no open session")
)

// FeeFunc computes the price for a closing session. It is evaluated
// inside the checkout transaction so the fee and the row update commit
// or roll back together.
type FeeFunc func(checkinTime time.Time, vehicleType string, checkoutTime time.Time) int64

type CardStore interface {
	// GetActiveCard returns the card row if it exists and is active,
	// nil otherwise.
	GetActiveCard(ctx context.Context, cardID string) (*models.Card, error)

	// UpsertActive creates the given cards or reactivates them if they
	// already exist. Returns the number of cards written.
	UpsertActive(ctx context.Context, cardIDs []string) (int, error)
}

// SessionStore is the transactional half of the ledger. CheckIn and
// CheckOut must each be indivisible with respect to any concurrent call
// for the same card.
type SessionStore interface {
	// CheckIn opens a session for the card, classifying it MONTH when
	// an active card row exists and DAY otherwise. Fails with
	// ErrAntiPassback if an OPEN session already exists.
	CheckIn(ctx context.Context, cardID, frontRef, rearRef string, now time.Time) (*models.Session, error)

	// CheckOut closes the most recently opened OPEN session for the
	// card, pricing it with fee. Fails with ErrNoActiveSession if no
	// OPEN session exists; the store is left unchanged on failure.
	CheckOut(ctx context.Context, cardID, frontRef, rearRef string, now time.Time, fee FeeFunc) (*models.Session, error)

	// RevenueByCheckout lists sessions closed on the given calendar
	// date, ordered by checkout time.
	RevenueByCheckout(ctx context.Context, date time.Time) ([]models.RevenueRow, error)

	// TrafficByCheckin lists sessions opened on the given calendar
	// date, ordered by checkin time.
	TrafficByCheckin(ctx context.Context, date time.Time) ([]models.TrafficRow, error)
}
