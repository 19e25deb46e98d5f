package ledger

import (
	"math"

	"github.com/shopspring/decimal"

	"loyalty-ledger/internal/model"
	apperrors "loyalty-ledger/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Redemption is the cashier's choice to apply the tier discount and spend
// points against the bill.
type Redemption struct {
	Apply           bool    `json:"apply"`
	RequestedPoints float64 `json:"requestedPoints"`
}

// BillRequest is the input of ComputeBill. Customer is nil for a mobile
// number that is not yet in the ledger.
type BillRequest struct {
	Subtotal    float64
	CashGiven   float64
	Customer    *model.Customer
	Tiers       TierInfo
	Discounts   model.DiscountSettings
	Eligibility Eligibility
	Redemption  Redemption
}

// BillResult is the computed bill. CashGiven is kept so the result can be
// validated before it is applied.
type BillResult struct {
	Subtotal           float64 `json:"subtotal"`
	DiscountPercentage float64 `json:"discountPercentage"`
	DiscountAmount     float64 `json:"discountAmount"`
	FinalBill          float64 `json:"finalBill"`
	PointsUsed         float64 `json:"pointsUsed"`
	CashPayable        float64 `json:"cashPayable"`
	CashGiven          float64 `json:"cashGiven"`
	PointsEarned       float64 `json:"pointsEarned"`
}

// ComputeBill applies discount, redemption and earning rules in that order.
// It never fails; missing or non-numeric amounts count as zero.
func ComputeBill(req BillRequest) BillResult {
	subtotal := amount(req.Subtotal)
	cashGiven := amount(req.CashGiven)
	known := req.Customer != nil

	pct := decimal.Zero
	discount := decimal.Zero
	if req.Redemption.Apply && req.Eligibility.Eligible && known && subtotal.IsPositive() {
		pct = amount(req.Discounts.For(req.Tiers.EffectiveTier))
		discount = subtotal.Mul(pct).Div(hundred)
	}

	finalBill := subtotal.Sub(discount)

	used := decimal.Zero
	if req.Redemption.Apply && known && req.Customer.Points > 0 {
		requested := decimal.Max(decimal.Zero, amount(req.Redemption.RequestedPoints))
		used = decimal.Min(amount(req.Customer.Points), finalBill, requested)
		// a non-positive final bill cannot absorb points
		used = decimal.Max(decimal.Zero, used)
	}

	cashPayable := finalBill.Sub(used)
	earned := decimal.Max(decimal.Zero, cashGiven.Sub(cashPayable).Floor())

	return BillResult{
		Subtotal:           subtotal.InexactFloat64(),
		DiscountPercentage: pct.InexactFloat64(),
		DiscountAmount:     discount.InexactFloat64(),
		FinalBill:          finalBill.InexactFloat64(),
		PointsUsed:         used.InexactFloat64(),
		CashPayable:        cashPayable.InexactFloat64(),
		CashGiven:          cashGiven.InexactFloat64(),
		PointsEarned:       earned.InexactFloat64(),
	}
}

// Validate must pass before the bill is handed to Apply.
func (b BillResult) Validate() error {
	if !(b.Subtotal > 0) {
		return &apperrors.ValidationError{Field: "subtotal", Reason: "must be greater than zero"}
	}
	if b.CashGiven < b.CashPayable {
		return &apperrors.InsufficientPaymentError{CashGiven: b.CashGiven, CashPayable: b.CashPayable}
	}
	return nil
}

func amount(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
