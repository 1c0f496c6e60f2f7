package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
)

// DebtPool is the protocol's outstanding debt and the interest charged on it.
type DebtPool struct {
	Debt        decimal.Decimal // at decimal.USDScale
	Rate        decimal.Decimal // per interval, at decimal.InterestRateScale
	LastAccrual time.Time
}

// Accruer compounds interest on a DebtPool once per elapsed interval.
type Accruer struct {
	interval time.Duration
	mu       sync.Mutex // protects pool
	pool     DebtPool
}

// NewAccruer creates an Accruer with no debt. rate is rescaled to
// decimal.InterestRateScale.
func NewAccruer(interval time.Duration, rate decimal.Decimal, start time.Time) (*Accruer, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid accrual interval: %s", interval)
	}
	r, err := rate.ToInterestRate()
	if err != nil {
		return nil, fmt.Errorf("invalid interest rate: %w", err)
	}
	return &Accruer{
		interval: interval,
		pool: DebtPool{
			Debt:        decimal.FromUSD(0),
			Rate:        r,
			LastAccrual: start,
		},
	}, nil
}

// Start launches a background goroutine that ticks at the configured
// interval and accrues interest. It stops when ctx is cancelled.
func (a *Accruer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if _, err := a.Accrue(t); err != nil {
					slog.Error("interest accrual failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Accrue compounds interest for every whole interval between the last
// accrual and now, rounding the new debt up. It returns the number of
// periods applied. On error the pool is left unchanged.
func (a *Accruer) Accrue(now time.Time) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := now.Sub(a.pool.LastAccrual)
	if elapsed < a.interval {
		return 0, nil
	}
	periods := uint64(elapsed / a.interval)

	debt := a.pool.Debt
	if !debt.IsZero() && !a.pool.Rate.IsZero() {
		one, err := decimal.One(decimal.InterestRateScale)
		if err != nil {
			return 0, err
		}
		base, err := one.Add(a.pool.Rate)
		if err != nil {
			return 0, err
		}
		factor, err := base.PowWithAccuracy(periods)
		if err != nil {
			return 0, fmt.Errorf("compound %d periods: %w", periods, err)
		}
		debt, err = debt.MulUp(factor)
		if err != nil {
			return 0, fmt.Errorf("apply interest: %w", err)
		}
	}

	a.pool.Debt = debt
	a.pool.LastAccrual = a.pool.LastAccrual.Add(time.Duration(periods) * a.interval)

	slog.Debug("interest accrued",
		slog.Uint64("periods", periods),
		slog.String("debt", debt.String()),
	)
	return periods, nil
}

// AddDebt increases the pool's debt by amount, which must be at
// decimal.USDScale.
func (a *Accruer) AddDebt(amount decimal.Decimal) (DebtPool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	debt, err := a.pool.Debt.Add(amount)
	if err != nil {
		return DebtPool{}, err
	}
	a.pool.Debt = debt
	return a.pool, nil
}

// RepayDebt decreases the pool's debt by amount. Repaying more than is owed
// fails with decimal.ErrUnderflow.
func (a *Accruer) RepayDebt(amount decimal.Decimal) (DebtPool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	debt, err := a.pool.Debt.Sub(amount)
	if err != nil {
		return DebtPool{}, err
	}
	a.pool.Debt = debt
	return a.pool, nil
}

// Snapshot returns a copy of the pool.
func (a *Accruer) Snapshot() DebtPool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pool
}
