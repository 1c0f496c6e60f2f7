package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
	"github.com/K-Pomian/synthetify-protocol/internal/domain"
	"github.com/K-Pomian/synthetify-protocol/internal/store"
	"github.com/google/uuid"
)

const (
	minListLength = 2 // room for the usd and collateral assets
	maxListLength = 255
	maxDecimals   = 18
	maxFeePercent = 10_000 // 100% at decimal.PercentScale
)

var addressRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// EventDispatcher delivers assets list events to subscribers.
type EventDispatcher interface {
	DispatchPricesUpdated(listID string, slot uint64, assets []domain.Asset)
	DispatchMaxSupplyChanged(listID string, asset domain.Asset)
}

// InitializeListRequest represents the input for list initialization.
type InitializeListRequest struct {
	CollateralToken     string
	CollateralTokenFeed string
	USDToken            string
}

// AddAssetRequest represents the input for registering a new asset.
type AddAssetRequest struct {
	FeedAddress  string
	AssetAddress string
	Decimals     uint8
	MaxSupply    uint64
}

// FeedPrice is a price reported by one oracle feed, at decimal.PriceScale.
type FeedPrice struct {
	FeedAddress string
	Price       uint64
}

// Valuation is the USD value of an amount of an asset.
type Valuation struct {
	Asset  domain.Asset
	Amount decimal.Decimal
	USD    decimal.Decimal
}

// Quote is the result of swapping one asset for another at current prices.
type Quote struct {
	From   domain.Asset
	To     domain.Asset
	Amount decimal.Decimal // of From
	USD    decimal.Decimal // value of Amount before fees
	Fee    decimal.Decimal // in USD
	Out    decimal.Decimal // of To
}

// AssetService manages assets lists: registration, prices and supply.
type AssetService struct {
	store       *store.AssetsListStore
	dispatcher  EventDispatcher
	adminKey    string
	priceMaxAge uint64
}

// NewAssetService creates a new AssetService. A nil dispatcher disables
// event delivery. A priceMaxAge of 0 disables staleness checks.
func NewAssetService(
	store *store.AssetsListStore,
	dispatcher EventDispatcher,
	adminKey string,
	priceMaxAge uint64,
) *AssetService {
	return &AssetService{
		store:       store,
		dispatcher:  dispatcher,
		adminKey:    adminKey,
		priceMaxAge: priceMaxAge,
	}
}

func (s *AssetService) authorize(key string) error {
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}

// CreateList creates an empty, uninitialized list that holds at most
// length assets.
func (s *AssetService) CreateList(length int) (*domain.AssetsList, error) {
	if length < minListLength || length > maxListLength {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("length must be between %d and %d", minListLength, maxListLength),
		}
	}

	l := &domain.AssetsList{
		ID:        uuid.New().String(),
		Capacity:  length,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.store.Create(l); err != nil {
		return nil, err
	}
	slog.Info("assets list created", slog.String("list_id", l.ID), slog.Int("capacity", length))
	return s.store.Get(l.ID)
}

// Get returns a list by ID.
func (s *AssetService) Get(listID string) (*domain.AssetsList, error) {
	return s.store.Get(listID)
}

// Asset returns one asset of a list.
func (s *AssetService) Asset(listID, address string) (domain.Asset, error) {
	return s.store.GetAsset(listID, address)
}

// InitializeList seeds a list with the usd asset and the collateral asset.
// The usd asset is pinned at a price of 1 and is never updated by feeds.
func (s *AssetService) InitializeList(adminKey, listID string, req InitializeListRequest) (*domain.AssetsList, error) {
	if err := s.authorize(adminKey); err != nil {
		return nil, err
	}
	for _, f := range []struct{ name, value string }{
		{"collateral_token", req.CollateralToken},
		{"collateral_token_feed", req.CollateralTokenFeed},
		{"usd_token", req.USDToken},
	} {
		if !addressRegex.MatchString(f.value) {
			return nil, &domain.ValidationError{Message: f.name + " must match ^[a-zA-Z0-9_-]{1,64}$"}
		}
	}
	if req.CollateralToken == req.USDToken {
		return nil, &domain.ValidationError{Message: "collateral_token and usd_token must differ"}
	}

	err := s.store.Update(listID, func(tx *store.AssetsTx) error {
		if tx.List().Initialized {
			return domain.ErrAssetsListInitialized
		}
		tx.Put(domain.Asset{
			AssetAddress: req.USDToken,
			Price:        domain.USDPrice,
			MaxSupply:    math.MaxUint64,
			Decimals:     decimal.USDScale,
			LastUpdate:   math.MaxUint64,
		})
		tx.Put(domain.Asset{
			FeedAddress:  req.CollateralTokenFeed,
			AssetAddress: req.CollateralToken,
			MaxSupply:    math.MaxUint64,
			Decimals:     decimal.TokenScale,
		})
		tx.List().Initialized = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("assets list initialized", slog.String("list_id", listID))
	return s.store.Get(listID)
}

// AddAsset registers a new asset with no price and no supply.
func (s *AssetService) AddAsset(adminKey, listID string, req AddAssetRequest) (domain.Asset, error) {
	if err := s.authorize(adminKey); err != nil {
		return domain.Asset{}, err
	}
	if !addressRegex.MatchString(req.AssetAddress) {
		return domain.Asset{}, &domain.ValidationError{Message: "asset_address must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if !addressRegex.MatchString(req.FeedAddress) {
		return domain.Asset{}, &domain.ValidationError{Message: "feed_address must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if req.Decimals > maxDecimals {
		return domain.Asset{}, &domain.ValidationError{Message: fmt.Sprintf("decimals must be at most %d", maxDecimals)}
	}

	asset := domain.Asset{
		FeedAddress:  req.FeedAddress,
		AssetAddress: req.AssetAddress,
		MaxSupply:    req.MaxSupply,
		Decimals:     req.Decimals,
	}
	err := s.store.Update(listID, func(tx *store.AssetsTx) error {
		if !tx.List().Initialized {
			return domain.ErrAssetsListNotReady
		}
		if _, exists := tx.Get(req.AssetAddress); exists {
			return domain.ErrAssetAlreadyExists
		}
		if _, exists := tx.GetByFeed(req.FeedAddress); exists {
			return &domain.ValidationError{Message: "feed_address " + req.FeedAddress + " already prices another asset"}
		}
		if tx.Len() >= tx.List().Capacity {
			return domain.ErrAssetsListFull
		}
		tx.Put(asset)
		return nil
	})
	if err != nil {
		return domain.Asset{}, err
	}

	slog.Info("asset added",
		slog.String("list_id", listID),
		slog.String("asset_address", asset.AssetAddress),
		slog.Int("decimals", int(asset.Decimals)),
	)
	return asset, nil
}

// SetMaxSupply changes the supply cap of an asset. The cap may be set below
// the current supply, which only blocks further minting.
func (s *AssetService) SetMaxSupply(adminKey, listID, address string, maxSupply uint64) (domain.Asset, error) {
	if err := s.authorize(adminKey); err != nil {
		return domain.Asset{}, err
	}

	var asset domain.Asset
	err := s.store.Update(listID, func(tx *store.AssetsTx) error {
		a, ok := tx.Get(address)
		if !ok {
			return domain.ErrAssetNotFound
		}
		a.MaxSupply = maxSupply
		tx.Put(a)
		asset = a
		return nil
	})
	if err != nil {
		return domain.Asset{}, err
	}

	slog.Info("max supply changed",
		slog.String("list_id", listID),
		slog.String("asset_address", address),
		slog.Uint64("max_supply", maxSupply),
	)
	if s.dispatcher != nil {
		s.dispatcher.DispatchMaxSupplyChanged(listID, asset)
	}
	return asset, nil
}

// SetAssetsPrices applies feed prices observed at slot. Every feed must
// price an asset of the list; otherwise nothing is applied.
func (s *AssetService) SetAssetsPrices(listID string, slot uint64, prices []FeedPrice) ([]domain.Asset, error) {
	if len(prices) == 0 {
		return nil, &domain.ValidationError{Message: "prices must be a non-empty array"}
	}

	var updated []domain.Asset
	err := s.store.Update(listID, func(tx *store.AssetsTx) error {
		if slot < tx.List().LastSlot {
			return &domain.ValidationError{
				Message: fmt.Sprintf("slot %d is older than the last update at slot %d", slot, tx.List().LastSlot),
			}
		}
		index := make(map[string]int, len(prices))
		updated = make([]domain.Asset, 0, len(prices))
		for _, p := range prices {
			if p.FeedAddress == "" {
				return &domain.ValidationError{Message: "feed_address is required"}
			}
			a, ok := tx.GetByFeed(p.FeedAddress)
			if !ok {
				return fmt.Errorf("%w: no asset priced by feed %s", domain.ErrAssetNotFound, p.FeedAddress)
			}
			a.Price = p.Price
			a.LastUpdate = slot
			tx.Put(a)

			// A feed listed twice keeps its last price.
			if i, dup := index[a.AssetAddress]; dup {
				updated[i] = a
				continue
			}
			index[a.AssetAddress] = len(updated)
			updated = append(updated, a)
		}
		tx.List().LastSlot = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("prices updated",
		slog.String("list_id", listID),
		slog.Uint64("slot", slot),
		slog.Int("count", len(updated)),
	)
	if s.dispatcher != nil {
		s.dispatcher.DispatchPricesUpdated(listID, slot, updated)
	}
	return updated, nil
}

// Mint increases the supply of an asset, bounded by its max supply.
func (s *AssetService) Mint(listID, address string, amount uint64) (domain.Asset, error) {
	return s.changeSupply(listID, address, func(a domain.Asset) (decimal.Decimal, error) {
		ok, err := a.CanMint(amount)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if !ok {
			return decimal.Decimal{}, domain.ErrMaxSupplyExceeded
		}
		return a.Amount(a.Supply).Add(a.Amount(amount))
	})
}

// Burn decreases the supply of an asset.
func (s *AssetService) Burn(listID, address string, amount uint64) (domain.Asset, error) {
	return s.changeSupply(listID, address, func(a domain.Asset) (decimal.Decimal, error) {
		supply, err := a.Amount(a.Supply).Sub(a.Amount(amount))
		if errors.Is(err, decimal.ErrUnderflow) {
			return decimal.Decimal{}, domain.ErrInsufficientSupply
		}
		return supply, err
	})
}

func (s *AssetService) changeSupply(
	listID, address string,
	next func(domain.Asset) (decimal.Decimal, error),
) (domain.Asset, error) {
	var asset domain.Asset
	err := s.store.Update(listID, func(tx *store.AssetsTx) error {
		if !tx.List().Initialized {
			return domain.ErrAssetsListNotReady
		}
		a, ok := tx.Get(address)
		if !ok {
			return domain.ErrAssetNotFound
		}
		supply, err := next(a)
		if err != nil {
			return err
		}
		if a.Supply, err = supply.Uint64(); err != nil {
			return err
		}
		tx.Put(a)
		asset = a
		return nil
	})
	if err != nil {
		return domain.Asset{}, err
	}
	return asset, nil
}

// CheckFresh returns domain.ErrStalePrice if the asset's price is older
// than maxAge slots at slot.
func CheckFresh(asset domain.Asset, slot, maxAge uint64) error {
	if asset.IsStale(slot, maxAge) {
		return fmt.Errorf("%w: %s last updated at slot %d", domain.ErrStalePrice, asset.AssetAddress, asset.LastUpdate)
	}
	return nil
}

// Value returns the USD value of amount of an asset at its current price.
func (s *AssetService) Value(listID, address string, amount uint64) (Valuation, error) {
	l, err := s.store.Get(listID)
	if err != nil {
		return Valuation{}, err
	}
	a, err := s.pricedAsset(l, address)
	if err != nil {
		return Valuation{}, err
	}

	usd, err := a.USDValue(amount)
	if err != nil {
		return Valuation{}, err
	}
	return Valuation{Asset: a, Amount: a.Amount(amount), USD: usd}, nil
}

// Quote returns how much of asset to is obtained for amount of asset from,
// after a fee expressed at decimal.PercentScale.
func (s *AssetService) Quote(listID, from, to string, amount uint64, feePercent uint16) (Quote, error) {
	if feePercent > maxFeePercent {
		return Quote{}, &domain.ValidationError{Message: fmt.Sprintf("fee must be at most %d", maxFeePercent)}
	}
	if from == to {
		return Quote{}, &domain.ValidationError{Message: "from and to must differ"}
	}

	l, err := s.store.Get(listID)
	if err != nil {
		return Quote{}, err
	}
	fromAsset, err := s.pricedAsset(l, from)
	if err != nil {
		return Quote{}, err
	}
	toAsset, err := s.pricedAsset(l, to)
	if err != nil {
		return Quote{}, err
	}

	usd, err := fromAsset.USDValue(amount)
	if err != nil {
		return Quote{}, err
	}
	fee, err := usd.MulUp(decimal.FromPercent(feePercent))
	if err != nil {
		return Quote{}, err
	}
	net, err := usd.Sub(fee)
	if err != nil {
		return Quote{}, err
	}
	out, err := toAsset.AmountForUSD(net)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		From:   fromAsset,
		To:     toAsset,
		Amount: fromAsset.Amount(amount),
		USD:    usd,
		Fee:    fee,
		Out:    out,
	}, nil
}

// pricedAsset looks up an asset that may be used for valuation.
func (s *AssetService) pricedAsset(l *domain.AssetsList, address string) (domain.Asset, error) {
	if !l.Initialized {
		return domain.Asset{}, domain.ErrAssetsListNotReady
	}
	for _, a := range l.Assets {
		if a.AssetAddress == address {
			if err := CheckFresh(a, l.LastSlot, s.priceMaxAge); err != nil {
				return domain.Asset{}, err
			}
			return a, nil
		}
	}
	return domain.Asset{}, domain.ErrAssetNotFound
}
