package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoangtv/parking-services/internal/parking/models"
)

type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

func (s *CardStore) GetActiveCard(ctx context.Context, cardID string) (*models.Card, error) {
	query := `
		SELECT card_id, plate_number, customer_name, is_active, updated_at
		FROM cards
		WHERE card_id = $1 AND is_active = TRUE
		LIMIT 1
	`

	var card models.Card
	err := s.db.QueryRow(ctx, query, cardID).Scan(
		&card.CardID,
		&card.PlateNumber,
		&card.CustomerName,
		&card.Active,
		&card.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card %s: %w", cardID, err)
	}

	return &card, nil
}

// UpsertActive inserts the cards or flips them back to active. Plate and
// customer data come from a separate registration flow, the import file
// carries card ids only.
func (s *CardStore) UpsertActive(ctx context.Context, cardIDs []string) (int, error) {
	query := `
		INSERT INTO cards (card_id, is_active)
		VALUES ($1, TRUE)
		ON CONFLICT (card_id)
		DO UPDATE SET is_active = TRUE,
		              updated_at = CURRENT_TIMESTAMP
	`

	count := 0
	for _, id := range cardIDs {
		if id == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, query, id); err != nil {
			return count, fmt.Errorf("failed to upsert card %s: %w", id, err)
		}
		count++
	}

	return count, nil
}
