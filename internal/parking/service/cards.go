package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

type CardService struct {
	cards store.CardStore
}

func NewCardService(cards store.CardStore) *CardService {
	return &CardService{cards: cards}
}

// ImportCards bulk creates or reactivates month-pass cards. Blank
// entries are dropped, ids are trimmed; an already known card is simply
// flipped back to active.
func (s *CardService) ImportCards(ctx context.Context, cardIDs []string) (int, error) {
	cleaned := make([]string, 0, len(cardIDs))
	for _, id := range cardIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		cleaned = append(cleaned, id)
	}

	if len(cleaned) == 0 {
		return 0, fmt.Errorf("no card ids to import")
	}

	return s.cards.UpsertActive(ctx, cleaned)
}

func (s *CardService) GetActiveCard(ctx context.Context, cardID string) (*models.Card, error) {
	return s.cards.GetActiveCard(ctx, cardID)
}
