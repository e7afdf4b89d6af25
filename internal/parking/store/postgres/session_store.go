package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

// CheckIn runs the anti-passback check, card classification and insert
// in one transaction. An advisory lock on the card id serializes
// concurrent calls for the same card across lanes; without it two lanes
// racing on a card that has no OPEN row would both pass the check.
func (s *SessionStore) CheckIn(ctx context.Context, cardID, frontRef, rearRef string, now time.Time) (*models.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cardID); err != nil {
		return nil, fmt.Errorf("failed to lock card %s: %w", cardID, err)
	}

	var openID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM sessions
		WHERE card_id = $1 AND status = 'OPEN'
		LIMIT 1
	`, cardID).Scan(&openID)
	if err == nil {
		return nil, store.ErrAntiPassback
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed anti-passback check for %s: %w", cardID, err)
	}

	vehicleType := models.VehicleTypeDay
	var activeID string
	err = tx.QueryRow(ctx, `
		SELECT card_id FROM cards
		WHERE card_id = $1 AND is_active = TRUE
	`, cardID).Scan(&activeID)
	if err == nil {
		vehicleType = models.VehicleTypeMonth
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed card lookup for %s: %w", cardID, err)
	}

	session := &models.Session{}
	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (card_id, vehicle_type, checkin_time, checkin_img_front, checkin_img_rear, status)
		VALUES ($1, $2, $3, $4, $5, 'OPEN')
		RETURNING id, card_id, vehicle_type, checkin_time, checkin_img_front, checkin_img_rear, price, status
	`, cardID, vehicleType, now, frontRef, rearRef).Scan(
		&session.ID,
		&session.CardID,
		&session.VehicleType,
		&session.CheckinTime,
		&session.CheckinFrontRef,
		&session.CheckinRearRef,
		&session.Price,
		&session.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session for %s: %w", cardID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit checkin for %s: %w", cardID, err)
	}

	return session, nil
}

// CheckOut closes the most recently opened OPEN session. The fee is
// computed inside the transaction so the price and the row update
// commit together.
func (s *SessionStore) CheckOut(ctx context.Context, cardID, frontRef, rearRef string, now time.Time, fee store.FeeFunc) (*models.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cardID); err != nil {
		return nil, fmt.Errorf("failed to lock card %s: %w", cardID, err)
	}

	session := &models.Session{}
	err = tx.QueryRow(ctx, `
		SELECT id, card_id, vehicle_type, checkin_time, checkin_img_front, checkin_img_rear
		FROM sessions
		WHERE card_id = $1 AND status = 'OPEN'
		ORDER BY checkin_time DESC
		LIMIT 1
		FOR UPDATE
	`, cardID).Scan(
		&session.ID,
		&session.CardID,
		&session.VehicleType,
		&session.CheckinTime,
		&session.CheckinFrontRef,
		&session.CheckinRearRef,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed open session lookup for %s: %w", cardID, err)
	}

	price := fee(session.CheckinTime, session.VehicleType, now)

	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET checkout_time = $1,
		    checkout_img_front = $2,
		    checkout_img_rear = $3,
		    price = $4,
		    status = 'CLOSED'
		WHERE id = $5
	`, now, frontRef, rearRef, price, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to close session %d: %w", session.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit checkout for %s: %w", cardID, err)
	}

	session.CheckoutTime.Time = now
	session.CheckoutTime.Valid = true
	session.CheckoutFrontRef = frontRef
	session.CheckoutRearRef = rearRef
	session.Price = price
	session.Status = models.SessionClosed

	return session, nil
}

func (s *SessionStore) RevenueByCheckout(ctx context.Context, date time.Time) ([]models.RevenueRow, error) {
	query := `
		SELECT card_id, vehicle_type, checkin_time, checkout_time, price
		FROM sessions
		WHERE status = 'CLOSED' AND DATE(checkout_time) = $1
		ORDER BY checkout_time ASC
	`

	rows, err := s.db.Query(ctx, query, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.RevenueRow
	for rows.Next() {
		var r models.RevenueRow
		if err := rows.Scan(&r.CardID, &r.VehicleType, &r.CheckinTime, &r.CheckoutTime, &r.Price); err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	return result, rows.Err()
}

func (s *SessionStore) TrafficByCheckin(ctx context.Context, date time.Time) ([]models.TrafficRow, error) {
	query := `
		SELECT card_id, vehicle_type, checkin_time, status, checkout_time
		FROM sessions
		WHERE DATE(checkin_time) = $1
		ORDER BY checkin_time ASC
	`

	rows, err := s.db.Query(ctx, query, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.TrafficRow
	for rows.Next() {
		var r models.TrafficRow
		if err := rows.Scan(&r.CardID, &r.VehicleType, &r.CheckinTime, &r.Status, &r.CheckoutTime); err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	return result, rows.Err()
}
