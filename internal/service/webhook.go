package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
	"github.com/K-Pomian/synthetify-protocol/internal/domain"
	"github.com/K-Pomian/synthetify-protocol/internal/store"
	"github.com/google/uuid"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	domain.EventPriceUpdated:     true,
	domain.EventMaxSupplyChanged: true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	ListID string
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store     *store.WebhookStore
	listStore *store.AssetsListStore
	client    *http.Client
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	listStore *store.AssetsListStore,
	webhookTimeout time.Duration,
) *WebhookService {
	return &WebhookService{
		store:     webhookStore,
		listStore: listStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]domain.Webhook, bool, error) {
	if _, err := s.listStore.Get(req.ListID); err != nil {
		return nil, false, err
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " +
					domain.EventPriceUpdated + ", " + domain.EventMaxSupplyChanged,
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]domain.Webhook, 0, len(events))

	for _, event := range events {
		stored, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.New().String(),
			ListID:    req.ListID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, stored)
	}

	return webhooks, anyCreated, nil
}

// List validates the list exists and returns its webhook subscriptions.
func (s *WebhookService) List(listID string) ([]domain.Webhook, error) {
	if _, err := s.listStore.Get(listID); err != nil {
		return nil, err
	}
	return s.store.ListByList(listID), nil
}

// Delete removes a subscription of a list. A webhook that belongs to a
// different list is reported as not found.
func (s *WebhookService) Delete(listID, webhookID string) error {
	wh, err := s.store.Get(webhookID)
	if err != nil {
		return err
	}
	if wh.ListID != listID {
		return domain.ErrWebhookNotFound
	}
	return s.store.Delete(webhookID)
}

type eventPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	ListID    string `json:"list_id"`
	Data      any    `json:"data"`
}

// assetPayload renders an asset with exact decimal strings.
type assetPayload struct {
	AssetAddress string          `json:"asset_address"`
	FeedAddress  string          `json:"feed_address"`
	Price        decimal.Decimal `json:"price"`
	Supply       decimal.Decimal `json:"supply"`
	MaxSupply    decimal.Decimal `json:"max_supply"`
	Decimals     uint8           `json:"decimals"`
	LastUpdate   uint64          `json:"last_update"`
}

func newAssetPayload(a domain.Asset) assetPayload {
	return assetPayload{
		AssetAddress: a.AssetAddress,
		FeedAddress:  a.FeedAddress,
		Price:        a.PriceDecimal(),
		Supply:       a.Amount(a.Supply),
		MaxSupply:    a.Amount(a.MaxSupply),
		Decimals:     a.Decimals,
		LastUpdate:   a.LastUpdate,
	}
}

type pricesUpdatedData struct {
	Slot   uint64         `json:"slot"`
	Assets []assetPayload `json:"assets"`
}

// DispatchPricesUpdated sends a price.updated notification to the list's
// subscriber. Fire-and-forget.
func (s *WebhookService) DispatchPricesUpdated(listID string, slot uint64, assets []domain.Asset) {
	wh, ok := s.store.GetByListEvent(listID, domain.EventPriceUpdated)
	if !ok {
		return
	}

	data := pricesUpdatedData{Slot: slot, Assets: make([]assetPayload, 0, len(assets))}
	for _, a := range assets {
		data.Assets = append(data.Assets, newAssetPayload(a))
	}
	go s.deliver(wh, s.newPayload(domain.EventPriceUpdated, listID, data))
}

// DispatchMaxSupplyChanged sends a max_supply.changed notification to the
// list's subscriber. Fire-and-forget.
func (s *WebhookService) DispatchMaxSupplyChanged(listID string, asset domain.Asset) {
	wh, ok := s.store.GetByListEvent(listID, domain.EventMaxSupplyChanged)
	if !ok {
		return
	}
	go s.deliver(wh, s.newPayload(domain.EventMaxSupplyChanged, listID, newAssetPayload(asset)))
}

func (s *WebhookService) newPayload(event, listID string, data any) eventPayload {
	return eventPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		ListID:    listID,
		Data:      data,
	}
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Failures are logged and otherwise ignored.
func (s *WebhookService) deliver(wh domain.Webhook, payload eventPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("webhook payload encoding failed", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", payload.Event)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Debug("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
}
