package ledger

import (
	"time"

	"loyalty-ledger/internal/model"
	apperrors "loyalty-ledger/pkg/errors"
)

// CustomerLookup is the outcome of looking a mobile number up in the ledger:
// either NewCustomer or ExistingCustomer.
type CustomerLookup interface {
	mobile() string
}

// NewCustomer is a mobile number with no ledger record. Name and PIN are the
// values chosen at registration.
type NewCustomer struct {
	Mobile string
	Name   string
	PIN    string
}

// ExistingCustomer wraps the record the caller just read from the ledger.
type ExistingCustomer struct {
	Customer model.Customer
}

func (n NewCustomer) mobile() string      { return n.Mobile }
func (e ExistingCustomer) mobile() string { return e.Customer.Mobile }

// Lookup builds the CustomerLookup for mobile against customers.
func Lookup(customers []model.Customer, mobile string) CustomerLookup {
	for _, c := range customers {
		if c.Mobile == mobile {
			return ExistingCustomer{Customer: c}
		}
	}
	return NewCustomer{Mobile: mobile}
}

// ApplyRequest carries everything Apply needs. Eligibility must be the value
// evaluated before the bill was computed.
type ApplyRequest struct {
	Customers   []model.Customer
	Lookup      CustomerLookup
	Bill        BillResult
	Eligibility Eligibility
	Tiers       model.TierSettings
	Deadlines   model.DeadlineSettings
	Now         time.Time
	EntryID     string
}

// Notification is the payload handed to the notifier once the transaction is
// persisted. BusinessName is filled in by the caller.
type Notification struct {
	Mobile       string
	CustomerName string
	BusinessName string
	Points       float64
	DeadlineDays int
}

// ApplyResult is the next state of the collection.
type ApplyResult struct {
	Customers    []model.Customer
	Customer     model.Customer
	Entry        model.TransactionHistoryEntry
	TotalPoints  float64
	DeadlineDays int
	Notification Notification
}

// Apply commits bill against the looked-up customer and returns a new
// collection. The input slice and its customers are never modified.
func Apply(req ApplyRequest) (ApplyResult, error) {
	entry := historyEntry(req)

	var (
		updated   model.Customer
		customers []model.Customer
		deadline  int
	)

	switch l := req.Lookup.(type) {
	case NewCustomer:
		updated = model.Customer{
			Mobile:     l.Mobile,
			Name:       l.Name,
			PIN:        l.PIN,
			Points:     req.Bill.PointsEarned,
			TotalSpent: req.Bill.FinalBill,
			History:    []model.TransactionHistoryEntry{entry},
		}
		customers = make([]model.Customer, len(req.Customers), len(req.Customers)+1)
		copy(customers, req.Customers)
		customers = append(customers, updated)
		deadline = req.Deadlines.Bronze

	case ExistingCustomer:
		idx := indexOf(req.Customers, l.Customer.Mobile)
		if idx < 0 {
			return ApplyResult{}, &apperrors.CustomerNotFoundError{Mobile: l.Customer.Mobile}
		}
		updated = req.Customers[idx].Clone()
		updated.Points = updated.Points - req.Bill.PointsUsed + req.Bill.PointsEarned
		updated.TotalSpent += req.Bill.FinalBill
		updated.History = append(updated.History, entry)

		customers = make([]model.Customer, len(req.Customers))
		copy(customers, req.Customers)
		customers[idx] = updated

		if remaining, ok := req.Eligibility.RemainingDays(); ok {
			deadline = remaining
		} else {
			deadline = req.Deadlines.For(ClassifyByPoints(updated, req.Tiers))
		}

	default:
		return ApplyResult{}, &apperrors.ValidationError{Field: "customer", Reason: "unknown lookup"}
	}

	return ApplyResult{
		Customers:    customers,
		Customer:     updated,
		Entry:        entry,
		TotalPoints:  updated.Points,
		DeadlineDays: deadline,
		Notification: Notification{
			Mobile:       updated.Mobile,
			CustomerName: updated.Name,
			Points:       updated.Points,
			DeadlineDays: deadline,
		},
	}, nil
}

func historyEntry(req ApplyRequest) model.TransactionHistoryEntry {
	b := req.Bill
	entry := model.TransactionHistoryEntry{
		ID:           req.EntryID,
		Timestamp:    req.Now,
		OriginalBill: b.Subtotal,
		FinalBill:    b.FinalBill,
		PointsEarned: b.PointsEarned,
	}
	if b.DiscountPercentage > 0 {
		pct := b.DiscountPercentage
		entry.DiscountPercentage = &pct
	}
	if b.PointsUsed > 0 {
		used := b.PointsUsed
		entry.PointsUsed = &used
	}
	return entry
}

func indexOf(customers []model.Customer, mobile string) int {
	for i, c := range customers {
		if c.Mobile == mobile {
			return i
		}
	}
	return -1
}
