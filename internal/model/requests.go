package model

// CreateBusinessRequest registers a new business ledger. Over HTTP the
// business id is taken from the caller's token.
type CreateBusinessRequest struct {
	BusinessID   string `json:"businessId"`
	BusinessName string `json:"businessName" binding:"required"`
}

// VerifyPINRequest checks a customer's PIN before the transaction form
type VerifyPINRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// TransactionRequest is the cashier's transaction form. Name and PIN are
// required for a mobile number that is not yet in the ledger.
type TransactionRequest struct {
	Mobile          string  `json:"mobile" binding:"required"`
	PIN             string  `json:"pin"`
	Name            string  `json:"name"`
	Subtotal        float64 `json:"subtotal"`
	CashGiven       float64 `json:"cashGiven"`
	ApplyRedemption bool    `json:"applyRedemption"`
	PointsToUse     float64 `json:"pointsToUse"`
}
