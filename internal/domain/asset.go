package domain

import (
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
)

// USDPrice is the fixed price of the usd asset, 1 at decimal.PriceScale.
const USDPrice uint64 = 10_000

// Asset is a synthetic or collateral token tracked by an assets list.
// Amounts are stored as plain integers; their scale is implied by the field.
type Asset struct {
	FeedAddress  string
	AssetAddress string
	Price        uint64 // at decimal.PriceScale
	Supply       uint64 // at Decimals
	MaxSupply    uint64 // at Decimals
	Decimals     uint8
	LastUpdate   uint64 // slot of the last price update
}

// AssetsList is the registry of assets priced by the protocol.
type AssetsList struct {
	ID          string
	Initialized bool
	Capacity    int
	LastSlot    uint64  // highest slot seen in a price update
	Assets      []Asset // ordered by AssetAddress
	CreatedAt   time.Time
}

// PriceDecimal returns the asset price at decimal.PriceScale.
func (a Asset) PriceDecimal() decimal.Decimal {
	return decimal.FromPrice(a.Price)
}

// Amount tags a raw token amount with the asset's decimals.
func (a Asset) Amount(raw uint64) decimal.Decimal {
	return decimal.NewFromUint64(raw, a.Decimals)
}

// USDValue returns the value of a raw token amount at decimal.USDScale,
// truncated.
func (a Asset) USDValue(amount uint64) (decimal.Decimal, error) {
	amt := a.Amount(amount)
	if amt.Scale() < decimal.USDScale {
		var err error
		amt, err = amt.ToUSD()
		if err != nil {
			return decimal.Decimal{}, err
		}
	}

	value, err := amt.Mul(a.PriceDecimal())
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value.ToUSD()
}

// AmountForUSD returns how many tokens, at the asset's decimals, are worth
// usd at the current price. The result is truncated.
func (a Asset) AmountForUSD(usd decimal.Decimal) (decimal.Decimal, error) {
	return usd.DivToScale(a.PriceDecimal(), a.Decimals)
}

// CanMint reports whether amount more tokens fit under MaxSupply.
func (a Asset) CanMint(amount uint64) (bool, error) {
	supply, err := a.Amount(a.Supply).Add(a.Amount(amount))
	if err != nil {
		return false, err
	}
	return supply.Ltq(a.Amount(a.MaxSupply))
}

// IsStale reports whether the price was last updated more than maxAge slots
// before slot. A maxAge of 0 disables the check.
func (a Asset) IsStale(slot, maxAge uint64) bool {
	if maxAge == 0 || a.LastUpdate >= slot {
		return false
	}
	return slot-a.LastUpdate > maxAge
}
