package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
)

// CardStore is an in-memory card table for tests and bench rigs.
type CardStore struct {
	mu    sync.Mutex
	cards map[string]*models.Card
}

func NewCardStore() *CardStore {
	return &CardStore{cards: make(map[string]*models.Card)}
}

func (s *CardStore) GetActiveCard(ctx context.Context, cardID string) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok || !card.Active {
		return nil, nil
	}
	cp := *card
	return &cp, nil
}

func (s *CardStore) UpsertActive(ctx context.Context, cardIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, id := range cardIDs {
		if id == "" {
			continue
		}
		if card, ok := s.cards[id]; ok {
			card.Active = true
			card.UpdatedAt = time.Now()
		} else {
			s.cards[id] = &models.Card{CardID: id, Active: true, UpdatedAt: time.Now()}
		}
		count++
	}
	return count, nil
}

// Deactivate flips a card inactive. Only used by tests, the production
// flow never deactivates cards.
func (s *CardStore) Deactivate(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if card, ok := s.cards[cardID]; ok {
		card.Active = false
	}
}
