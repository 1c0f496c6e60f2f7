package handler

import (
	"net/http"

	"github.com/K-Pomian/synthetify-protocol/internal/domain"
	"github.com/K-Pomian/synthetify-protocol/internal/service"
	"github.com/go-chi/chi/v5"
)

// WebhookHandler serves the webhook subscriptions of an assets list.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// subscribeRequest is the JSON body for POST /lists/{list_id}/webhooks.
// The list comes from the path.
type subscribeRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// subscriptionResponse is one event subscription of a list.
type subscriptionResponse struct {
	WebhookID string `json:"webhook_id"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// subscriptionsResponse groups the subscriptions of one list.
type subscriptionsResponse struct {
	ListID   string                 `json:"list_id"`
	Webhooks []subscriptionResponse `json:"webhooks"`
}

// Subscribe handles POST /lists/{list_id}/webhooks. It answers 201 when at
// least one event gained a new subscription and 200 when every event was
// already subscribed and only the URL was refreshed.
func (h *WebhookHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "list_id")

	var req subscribeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, created, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest{
		ListID: listID,
		URL:    req.URL,
		Events: req.Events,
	})
	if err != nil {
		mapAssetError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, buildSubscriptions(listID, webhooks))
}

// Subscriptions handles GET /lists/{list_id}/webhooks.
func (h *WebhookHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "list_id")

	webhooks, err := h.webhookSvc.List(listID)
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildSubscriptions(listID, webhooks))
}

// Unsubscribe handles DELETE /lists/{list_id}/webhooks/{webhook_id}.
func (h *WebhookHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := h.webhookSvc.Delete(chi.URLParam(r, "list_id"), chi.URLParam(r, "webhook_id"))
	if err != nil {
		mapAssetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildSubscriptions(listID string, webhooks []domain.Webhook) subscriptionsResponse {
	resp := subscriptionsResponse{
		ListID:   listID,
		Webhooks: make([]subscriptionResponse, 0, len(webhooks)),
	}
	for _, wh := range webhooks {
		resp.Webhooks = append(resp.Webhooks, subscriptionResponse{
			WebhookID: wh.WebhookID,
			Event:     wh.Event,
			URL:       wh.URL,
			CreatedAt: wh.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt: wh.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return resp
}
