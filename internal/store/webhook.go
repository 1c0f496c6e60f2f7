package store

import (
	"slices"
	"strings"
	"sync"

	"github.com/K-Pomian/synthetify-protocol/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary index: list_id → event → webhook.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook
	byList   map[string]map[string]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		byList:   make(map[string]map[string]*domain.Webhook),
	}
}

// Upsert registers w under (ListID, Event). An existing subscription for
// the same pair keeps its WebhookID and takes the new URL. The stored
// webhook is returned along with whether it was newly created.
func (s *WebhookStore) Upsert(w *domain.Webhook) (domain.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byList[w.ListID][w.Event]; ok {
		if existing.URL != w.URL {
			existing.URL = w.URL
			existing.UpdatedAt = w.UpdatedAt
		}
		return *existing, false
	}

	stored := *w
	s.webhooks[stored.WebhookID] = &stored
	if s.byList[stored.ListID] == nil {
		s.byList[stored.ListID] = make(map[string]*domain.Webhook)
	}
	s.byList[stored.ListID][stored.Event] = &stored
	return stored, true
}

// Get returns a webhook by ID, or domain.ErrWebhookNotFound.
func (s *WebhookStore) Get(id string) (domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.Webhook{}, domain.ErrWebhookNotFound
	}
	return *w, nil
}

// ListByList returns the webhooks of a list ordered by event name.
// It never returns nil.
func (s *WebhookStore) ListByList(listID string) []domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byList[listID]
	result := make([]domain.Webhook, 0, len(events))
	for _, w := range events {
		result = append(result, *w)
	}
	slices.SortFunc(result, func(a, b domain.Webhook) int {
		return strings.Compare(a.Event, b.Event)
	})
	return result
}

// Delete removes a webhook from both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)

	if events, ok := s.byList[w.ListID]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.byList, w.ListID)
		}
	}
	return nil
}

// GetByListEvent returns the subscription for a list and event.
func (s *WebhookStore) GetByListEvent(listID, event string) (domain.Webhook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.byList[listID][event]
	if !ok {
		return domain.Webhook{}, false
	}
	return *w, true
}
