package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer is a loyalty member keyed by mobile number
type Customer struct {
	Mobile     string                    `bson:"mobile" json:"mobile"`
	Name       string                    `bson:"name" json:"name"`
	PIN        string                    `bson:"pin" json:"-"`
	Points     float64                   `bson:"points" json:"points"`
	TotalSpent float64                   `bson:"total_spent" json:"totalSpent"`
	History    []TransactionHistoryEntry `bson:"history" json:"history"`
}

// TransactionHistoryEntry records one committed transaction
type TransactionHistoryEntry struct {
	ID                 string    `bson:"id" json:"id"`
	Timestamp          time.Time `bson:"timestamp" json:"timestamp"`
	OriginalBill       float64   `bson:"original_bill" json:"originalBill"`
	DiscountPercentage *float64  `bson:"discount_percentage,omitempty" json:"discountPercentage,omitempty"`
	FinalBill          float64   `bson:"final_bill" json:"finalBill"`
	PointsUsed         *float64  `bson:"points_used,omitempty" json:"pointsUsed,omitempty"`
	PointsEarned       float64   `bson:"points_earned" json:"pointsEarned"`
}

// Clone returns a deep copy so callers never share the history backing array.
func (c Customer) Clone() Customer {
	out := c
	if c.History != nil {
		out.History = make([]TransactionHistoryEntry, len(c.History))
		copy(out.History, c.History)
	}
	return out
}

// Ledger is the per-business document: one customer collection plus settings
type Ledger struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	BusinessID   string             `bson:"business_id" json:"businessId"`
	BusinessName string             `bson:"business_name" json:"businessName"`
	Customers    []Customer         `bson:"customers" json:"customers"`
	Settings     Settings           `bson:"settings" json:"settings"`
	Version      int64              `bson:"version" json:"version"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// FindCustomer returns the customer with the given mobile, if present.
func (l *Ledger) FindCustomer(mobile string) (Customer, bool) {
	for _, c := range l.Customers {
		if c.Mobile == mobile {
			return c, true
		}
	}
	return Customer{}, false
}

// SmsLog records a notification attempt made after a committed transaction
type SmsLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	BusinessID string             `bson:"business_id" json:"businessId"`
	Mobile     string             `bson:"mobile" json:"mobile"`
	Message    string             `bson:"message" json:"message"`
	ProviderID string             `bson:"provider_id,omitempty" json:"providerId,omitempty"`
	Status     string             `bson:"status" json:"status"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
}

// SmsLog status values
const (
	SmsStatusSent   = "sent"
	SmsStatusFailed = "failed"
)
