package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

// SessionStore is an in-memory session table. A single mutex around
// each check/write pair gives the same per-card indivisibility the
// postgres store gets from its advisory lock.
type SessionStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions []*models.Session
	cards    *CardStore
}

func NewSessionStore(cards *CardStore) *SessionStore {
	return &SessionStore{nextID: 1, cards: cards}
}

func (s *SessionStore) CheckIn(ctx context.Context, cardID, frontRef, rearRef string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.CardID == cardID && sess.Status == models.SessionOpen {
			return nil, store.ErrAntiPassback
		}
	}

	vehicleType := models.VehicleTypeDay
	if s.cards != nil {
		card, _ := s.cards.GetActiveCard(ctx, cardID)
		if card != nil {
			vehicleType = models.VehicleTypeMonth
		}
	}

	sess := &models.Session{
		ID:              s.nextID,
		CardID:          cardID,
		VehicleType:     vehicleType,
		CheckinTime:     now,
		CheckinFrontRef: frontRef,
		CheckinRearRef:  rearRef,
		Status:          models.SessionOpen,
	}
	s.nextID++
	s.sessions = append(s.sessions, sess)

	cp := *sess
	return &cp, nil
}

func (s *SessionStore) CheckOut(ctx context.Context, cardID, frontRef, rearRef string, now time.Time, fee store.FeeFunc) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open *models.Session
	for _, sess := range s.sessions {
		if sess.CardID != cardID || sess.Status != models.SessionOpen {
			continue
		}
		if open == nil || sess.CheckinTime.After(open.CheckinTime) {
			open = sess
		}
	}
	if open == nil {
		return nil, store.ErrNoActiveSession
	}

	open.CheckoutTime.Time = now
	open.CheckoutTime.Valid = true
	open.CheckoutFrontRef = frontRef
	open.CheckoutRearRef = rearRef
	open.Price = fee(open.CheckinTime, open.VehicleType, now)
	open.Status = models.SessionClosed

	cp := *open
	return &cp, nil
}

func (s *SessionStore) RevenueByCheckout(ctx context.Context, date time.Time) ([]models.RevenueRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	y, m, d := date.Date()
	var result []models.RevenueRow
	for _, sess := range s.sessions {
		if sess.Status != models.SessionClosed || !sess.CheckoutTime.Valid {
			continue
		}
		cy, cm, cd := sess.CheckoutTime.Time.Date()
		if cy != y || cm != m || cd != d {
			continue
		}
		result = append(result, models.RevenueRow{
			CardID:       sess.CardID,
			VehicleType:  sess.VehicleType,
			CheckinTime:  sess.CheckinTime,
			CheckoutTime: sess.CheckoutTime.Time,
			Price:        sess.Price,
		})
	}
	sortRevenue(result)
	return result, nil
}

func (s *SessionStore) TrafficByCheckin(ctx context.Context, date time.Time) ([]models.TrafficRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	y, m, d := date.Date()
	var result []models.TrafficRow
	for _, sess := range s.sessions {
		cy, cm, cd := sess.CheckinTime.Date()
		if cy != y || cm != m || cd != d {
			continue
		}
		result = append(result, models.TrafficRow{
			CardID:       sess.CardID,
			VehicleType:  sess.VehicleType,
			CheckinTime:  sess.CheckinTime,
			Status:       sess.Status,
			CheckoutTime: sess.CheckoutTime,
		})
	}
	sortTraffic(result)
	return result, nil
}

// OpenCount reports how many OPEN sessions exist for a card. Test hook.
func (s *SessionStore) OpenCount(cardID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		if sess.CardID == cardID && sess.Status == models.SessionOpen {
			n++
		}
	}
	return n
}

func sortRevenue(rows []models.RevenueRow) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CheckoutTime.Before(rows[j].CheckoutTime)
	})
}

func sortTraffic(rows []models.TrafficRow) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CheckinTime.Before(rows[j].CheckinTime)
	})
}
