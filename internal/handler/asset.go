package handler

import (
	"errors"
	"net/http"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
	"github.com/K-Pomian/synthetify-protocol/internal/domain"
	"github.com/K-Pomian/synthetify-protocol/internal/service"
	"github.com/go-chi/chi/v5"
)

// adminKeyHeader carries the admin identity on admin-only routes.
const adminKeyHeader = "X-Admin-Key"

// AssetHandler handles HTTP requests for assets list endpoints.
type AssetHandler struct {
	assetSvc *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetSvc *service.AssetService) *AssetHandler {
	return &AssetHandler{assetSvc: assetSvc}
}

// createListRequest is the JSON request body for POST /lists.
type createListRequest struct {
	Length int `json:"length"`
}

// initializeListRequest is the JSON request body for POST /lists/{list_id}/initialize.
type initializeListRequest struct {
	CollateralToken     string `json:"collateral_token"`
	CollateralTokenFeed string `json:"collateral_token_feed"`
	USDToken            string `json:"usd_token"`
}

// addAssetRequest is the JSON request body for POST /lists/{list_id}/assets.
type addAssetRequest struct {
	FeedAddress  string `json:"feed_address"`
	AssetAddress string `json:"asset_address"`
	Decimals     uint8  `json:"decimals"`
	MaxSupply    uint64 `json:"max_supply"`
}

// setMaxSupplyRequest is the JSON request body for PUT .../max-supply.
type setMaxSupplyRequest struct {
	MaxSupply uint64 `json:"max_supply"`
}

// setPricesRequest is the JSON request body for POST /lists/{list_id}/prices.
type setPricesRequest struct {
	Slot   uint64           `json:"slot"`
	Prices []feedPriceInput `json:"prices"`
}

type feedPriceInput struct {
	FeedAddress string `json:"feed_address"`
	Price       uint64 `json:"price"`
}

// supplyRequest is the JSON request body for mint and burn.
type supplyRequest struct {
	Amount uint64 `json:"amount"`
}

// assetResponse renders an asset. Quantities are exact decimal strings at
// the asset's decimals; the price is at the price scale.
type assetResponse struct {
	AssetAddress string          `json:"asset_address"`
	FeedAddress  string          `json:"feed_address"`
	Price        decimal.Decimal `json:"price"`
	Supply       decimal.Decimal `json:"supply"`
	MaxSupply    decimal.Decimal `json:"max_supply"`
	Decimals     uint8           `json:"decimals"`
	LastUpdate   uint64          `json:"last_update"`
}

// listResponse is the JSON response for assets list endpoints.
type listResponse struct {
	ListID      string          `json:"list_id"`
	Initialized bool            `json:"initialized"`
	Capacity    int             `json:"capacity"`
	LastSlot    uint64          `json:"last_slot"`
	Assets      []assetResponse `json:"assets"`
	CreatedAt   string          `json:"created_at"`
}

// pricesResponse is the JSON response for POST /lists/{list_id}/prices.
type pricesResponse struct {
	Slot   uint64          `json:"slot"`
	Assets []assetResponse `json:"assets"`
}

// valueResponse is the JSON response for GET .../value.
type valueResponse struct {
	AssetAddress string          `json:"asset_address"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	USDValue     decimal.Decimal `json:"usd_value"`
}

// quoteResponse is the JSON response for GET /lists/{list_id}/quote.
type quoteResponse struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	USDValue  decimal.Decimal `json:"usd_value"`
	Fee       decimal.Decimal `json:"fee"`
	AmountOut decimal.Decimal `json:"amount_out"`
}

// CreateList handles POST /lists.
func (h *AssetHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	l, err := h.assetSvc.CreateList(req.Length)
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildListResponse(l))
}

// GetList handles GET /lists/{list_id}.
func (h *AssetHandler) GetList(w http.ResponseWriter, r *http.Request) {
	l, err := h.assetSvc.Get(chi.URLParam(r, "list_id"))
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildListResponse(l))
}

// GetAsset handles GET /lists/{list_id}/assets/{asset_address}.
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.assetSvc.Asset(chi.URLParam(r, "list_id"), chi.URLParam(r, "asset_address"))
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAssetResponse(a))
}

// InitializeList handles POST /lists/{list_id}/initialize.
func (h *AssetHandler) InitializeList(w http.ResponseWriter, r *http.Request) {
	var req initializeListRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	l, err := h.assetSvc.InitializeList(r.Header.Get(adminKeyHeader), chi.URLParam(r, "list_id"), service.InitializeListRequest{
		CollateralToken:     req.CollateralToken,
		CollateralTokenFeed: req.CollateralTokenFeed,
		USDToken:            req.USDToken,
	})
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildListResponse(l))
}

// AddAsset handles POST /lists/{list_id}/assets.
func (h *AssetHandler) AddAsset(w http.ResponseWriter, r *http.Request) {
	var req addAssetRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := h.assetSvc.AddAsset(r.Header.Get(adminKeyHeader), chi.URLParam(r, "list_id"), service.AddAssetRequest{
		FeedAddress:  req.FeedAddress,
		AssetAddress: req.AssetAddress,
		Decimals:     req.Decimals,
		MaxSupply:    req.MaxSupply,
	})
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildAssetResponse(a))
}

// SetMaxSupply handles PUT /lists/{list_id}/assets/{asset_address}/max-supply.
func (h *AssetHandler) SetMaxSupply(w http.ResponseWriter, r *http.Request) {
	var req setMaxSupplyRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := h.assetSvc.SetMaxSupply(
		r.Header.Get(adminKeyHeader),
		chi.URLParam(r, "list_id"),
		chi.URLParam(r, "asset_address"),
		req.MaxSupply,
	)
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAssetResponse(a))
}

// SetPrices handles POST /lists/{list_id}/prices.
func (h *AssetHandler) SetPrices(w http.ResponseWriter, r *http.Request) {
	var req setPricesRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	prices := make([]service.FeedPrice, len(req.Prices))
	for i, p := range req.Prices {
		prices[i] = service.FeedPrice{FeedAddress: p.FeedAddress, Price: p.Price}
	}

	updated, err := h.assetSvc.SetAssetsPrices(chi.URLParam(r, "list_id"), req.Slot, prices)
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, pricesResponse{
		Slot:   req.Slot,
		Assets: buildAssetResponses(updated),
	})
}

// Mint handles POST /lists/{list_id}/assets/{asset_address}/mint.
func (h *AssetHandler) Mint(w http.ResponseWriter, r *http.Request) {
	h.changeSupply(w, r, h.assetSvc.Mint)
}

// Burn handles POST /lists/{list_id}/assets/{asset_address}/burn.
func (h *AssetHandler) Burn(w http.ResponseWriter, r *http.Request) {
	h.changeSupply(w, r, h.assetSvc.Burn)
}

func (h *AssetHandler) changeSupply(
	w http.ResponseWriter,
	r *http.Request,
	op func(listID, address string, amount uint64) (domain.Asset, error),
) {
	var req supplyRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := op(chi.URLParam(r, "list_id"), chi.URLParam(r, "asset_address"), req.Amount)
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAssetResponse(a))
}

// Value handles GET /lists/{list_id}/assets/{asset_address}/value.
func (h *AssetHandler) Value(w http.ResponseWriter, r *http.Request) {
	amount, err := queryUint(r, "amount", 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	v, err := h.assetSvc.Value(chi.URLParam(r, "list_id"), chi.URLParam(r, "asset_address"), amount)
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, valueResponse{
		AssetAddress: v.Asset.AssetAddress,
		Amount:       v.Amount,
		Price:        v.Asset.PriceDecimal(),
		USDValue:     v.USD,
	})
}

// Quote handles GET /lists/{list_id}/quote.
func (h *AssetHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "from and to query parameters are required")
		return
	}
	amount, err := queryUint(r, "amount", 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	var fee uint64
	if q.Get("fee") != "" {
		if fee, err = queryUint(r, "fee", 16); err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}

	quote, err := h.assetSvc.Quote(chi.URLParam(r, "list_id"), from, to, amount, uint16(fee))
	if err != nil {
		mapAssetError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quoteResponse{
		From:      quote.From.AssetAddress,
		To:        quote.To.AssetAddress,
		Amount:    quote.Amount,
		USDValue:  quote.USD,
		Fee:       quote.Fee,
		AmountOut: quote.Out,
	})
}

func buildAssetResponse(a domain.Asset) assetResponse {
	return assetResponse{
		AssetAddress: a.AssetAddress,
		FeedAddress:  a.FeedAddress,
		Price:        a.PriceDecimal(),
		Supply:       a.Amount(a.Supply),
		MaxSupply:    a.Amount(a.MaxSupply),
		Decimals:     a.Decimals,
		LastUpdate:   a.LastUpdate,
	}
}

func buildAssetResponses(assets []domain.Asset) []assetResponse {
	result := make([]assetResponse, len(assets))
	for i, a := range assets {
		result[i] = buildAssetResponse(a)
	}
	return result
}

func buildListResponse(l *domain.AssetsList) listResponse {
	return listResponse{
		ListID:      l.ID,
		Initialized: l.Initialized,
		Capacity:    l.Capacity,
		LastSlot:    l.LastSlot,
		Assets:      buildAssetResponses(l.Assets),
		CreatedAt:   l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// mapAssetError maps domain errors to HTTP responses for every endpoint
// under /lists, webhook subscriptions included.
func mapAssetError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}
	if writeArithmeticError(w, err) {
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "unauthorized", "A valid "+adminKeyHeader+" header is required")
	case errors.Is(err, domain.ErrAssetsListNotFound):
		WriteError(w, http.StatusNotFound, "assets_list_not_found", err.Error())
	case errors.Is(err, domain.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	case errors.Is(err, domain.ErrAssetsListInitialized):
		WriteError(w, http.StatusConflict, "assets_list_already_initialized", err.Error())
	case errors.Is(err, domain.ErrAssetAlreadyExists):
		WriteError(w, http.StatusConflict, "asset_already_exists", err.Error())
	case errors.Is(err, domain.ErrAssetsListNotReady):
		WriteError(w, http.StatusConflict, "assets_list_not_initialized", err.Error())
	case errors.Is(err, domain.ErrAssetsListFull):
		WriteError(w, http.StatusConflict, "assets_list_full", err.Error())
	case errors.Is(err, domain.ErrMaxSupplyExceeded):
		WriteError(w, http.StatusUnprocessableEntity, "max_supply_exceeded", err.Error())
	case errors.Is(err, domain.ErrInsufficientSupply):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_supply", err.Error())
	case errors.Is(err, domain.ErrStalePrice):
		WriteError(w, http.StatusConflict, "stale_price", err.Error())
	case errors.Is(err, domain.ErrWebhookNotFound):
		WriteError(w, http.StatusNotFound, "webhook_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
