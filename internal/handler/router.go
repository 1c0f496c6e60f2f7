package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/engine"
	"github.com/K-Pomian/synthetify-protocol/internal/service"
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	assetSvc *service.AssetService,
	webhookSvc *service.WebhookService,
	accruer *engine.Accruer,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	assetH := NewAssetHandler(assetSvc)
	debtH := NewDebtHandler(accruer)
	webhookH := NewWebhookHandler(webhookSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Assets list routes.
	r.Route("/lists", func(r chi.Router) {
		r.Post("/", assetH.CreateList)
		r.Route("/{list_id}", func(r chi.Router) {
			r.Get("/", assetH.GetList)
			r.Post("/initialize", assetH.InitializeList)
			r.Post("/prices", assetH.SetPrices)
			r.Get("/quote", assetH.Quote)

			r.Post("/assets", assetH.AddAsset)
			r.Route("/assets/{asset_address}", func(r chi.Router) {
				r.Get("/", assetH.GetAsset)
				r.Put("/max-supply", assetH.SetMaxSupply)
				r.Post("/mint", assetH.Mint)
				r.Post("/burn", assetH.Burn)
				r.Get("/value", assetH.Value)
			})

			r.Post("/webhooks", webhookH.Subscribe)
			r.Get("/webhooks", webhookH.Subscriptions)
			r.Delete("/webhooks/{webhook_id}", webhookH.Unsubscribe)
		})
	})

	// Debt pool routes.
	r.Get("/debt", debtH.Get)
	r.Post("/debt/borrow", debtH.Borrow)
	r.Post("/debt/repay", debtH.Repay)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
