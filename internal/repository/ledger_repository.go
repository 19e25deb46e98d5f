package repository

import (
	"context"

	"loyalty-ledger/internal/model"
)

// LedgerRepository loads and stores whole per-business ledgers
type LedgerRepository interface {
	// CreateLedger stores a new business ledger
	// Returns ErrBusinessAlreadyExists if the business id is taken
	CreateLedger(ctx context.Context, ledger *model.Ledger) error

	// GetLedger retrieves the customers and settings of a business
	GetLedger(ctx context.Context, businessID string) (*model.Ledger, error)

	// SaveCustomers replaces the customer collection if the stored version
	// still equals expectedVersion, and bumps the version
	// Returns ErrVersionConflict otherwise
	SaveCustomers(ctx context.Context, businessID string, customers []model.Customer, expectedVersion int64) error

	// UpdateSettings replaces all three settings objects of a business
	UpdateSettings(ctx context.Context, businessID string, settings model.Settings) error
}

// SmsLogRepository defines the interface for notification log operations
type SmsLogRepository interface {
	// CreateSmsLog appends a notification attempt
	CreateSmsLog(ctx context.Context, log *model.SmsLog) error

	// ListSmsLogs returns the attempts of a business, newest first
	ListSmsLogs(ctx context.Context, businessID string, limit int) ([]*model.SmsLog, error)
}
