package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrAssetsListNotFound    = errors.New("assets_list_not_found")
	ErrAssetsListInitialized = errors.New("assets_list_already_initialized")
	ErrAssetsListNotReady    = errors.New("assets_list_not_initialized")
	ErrAssetsListFull        = errors.New("assets_list_full")
	ErrAssetNotFound         = errors.New("asset_not_found")
	ErrAssetAlreadyExists    = errors.New("asset_already_exists")
	ErrMaxSupplyExceeded     = errors.New("max_supply_exceeded")
	ErrInsufficientSupply    = errors.New("insufficient_supply")
	ErrStalePrice            = errors.New("stale_price")
	ErrWebhookNotFound       = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
