package handler

import (
	"net/http"

	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
	"github.com/K-Pomian/synthetify-protocol/internal/engine"
)

// DebtHandler handles HTTP requests for the debt pool.
type DebtHandler struct {
	accruer *engine.Accruer
}

// NewDebtHandler creates a new DebtHandler.
func NewDebtHandler(accruer *engine.Accruer) *DebtHandler {
	return &DebtHandler{accruer: accruer}
}

// debtAmountRequest is the JSON request body for borrow and repay.
// Amount is a decimal string with at most 6 fractional digits.
type debtAmountRequest struct {
	Amount string `json:"amount"`
}

// debtResponse is the JSON response for debt endpoints.
type debtResponse struct {
	Debt        decimal.Decimal `json:"debt"`
	Rate        decimal.Decimal `json:"rate"`
	LastAccrual string          `json:"last_accrual"`
}

// Get handles GET /debt.
func (h *DebtHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, buildDebtResponse(h.accruer.Snapshot()))
}

// Borrow handles POST /debt/borrow.
func (h *DebtHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.accruer.AddDebt)
}

// Repay handles POST /debt/repay.
func (h *DebtHandler) Repay(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.accruer.RepayDebt)
}

func (h *DebtHandler) apply(
	w http.ResponseWriter,
	r *http.Request,
	op func(decimal.Decimal) (engine.DebtPool, error),
) {
	var req debtAmountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	amount, err := decimal.Parse(req.Amount, decimal.USDScale)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error",
			"amount must be a decimal string with at most 6 fractional digits")
		return
	}

	pool, err := op(amount)
	if err != nil {
		if writeArithmeticError(w, err) {
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	WriteJSON(w, http.StatusOK, buildDebtResponse(pool))
}

func buildDebtResponse(p engine.DebtPool) debtResponse {
	return debtResponse{
		Debt:        p.Debt,
		Rate:        p.Rate,
		LastAccrual: p.LastAccrual.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
