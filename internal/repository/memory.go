package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"loyalty-ledger/internal/model"
	apperrors "loyalty-ledger/pkg/errors"
)

// MemoryLedgerRepository keeps ledgers in process memory. It is used for
// local runs and tests and follows the same version semantics as MongoDB.
type MemoryLedgerRepository struct {
	mu      sync.RWMutex
	ledgers map[string]model.Ledger
}

// NewMemoryLedgerRepository creates an empty in-memory ledger repository
func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{ledgers: make(map[string]model.Ledger)}
}

func (r *MemoryLedgerRepository) CreateLedger(_ context.Context, ledger *model.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgers[ledger.BusinessID]; ok {
		return apperrors.ErrBusinessAlreadyExists
	}
	if ledger.ID.IsZero() {
		ledger.ID = primitive.NewObjectID()
	}
	r.ledgers[ledger.BusinessID] = cloneLedger(*ledger)
	return nil
}

func (r *MemoryLedgerRepository) GetLedger(_ context.Context, businessID string) (*model.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[businessID]
	if !ok {
		return nil, apperrors.ErrBusinessNotFound
	}
	out := cloneLedger(l)
	return &out, nil
}

func (r *MemoryLedgerRepository) SaveCustomers(_ context.Context, businessID string, customers []model.Customer, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[businessID]
	if !ok {
		return apperrors.ErrBusinessNotFound
	}
	if l.Version != expectedVersion {
		return apperrors.ErrVersionConflict
	}
	l.Customers = cloneCustomers(customers)
	l.Version++
	l.UpdatedAt = time.Now()
	r.ledgers[businessID] = l
	return nil
}

func (r *MemoryLedgerRepository) UpdateSettings(_ context.Context, businessID string, settings model.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[businessID]
	if !ok {
		return apperrors.ErrBusinessNotFound
	}
	l.Settings = settings
	l.Version++
	l.UpdatedAt = time.Now()
	r.ledgers[businessID] = l
	return nil
}

func cloneLedger(l model.Ledger) model.Ledger {
	l.Customers = cloneCustomers(l.Customers)
	return l
}

func cloneCustomers(in []model.Customer) []model.Customer {
	out := make([]model.Customer, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// MemorySmsLogRepository keeps SMS logs in process memory
type MemorySmsLogRepository struct {
	mu   sync.RWMutex
	logs []model.SmsLog
}

func NewMemorySmsLogRepository() *MemorySmsLogRepository {
	return &MemorySmsLogRepository{}
}

func (r *MemorySmsLogRepository) CreateSmsLog(_ context.Context, log *model.SmsLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	r.logs = append(r.logs, *log)
	return nil
}

func (r *MemorySmsLogRepository) ListSmsLogs(_ context.Context, businessID string, limit int) ([]*model.SmsLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.SmsLog{}
	for i := range r.logs {
		if r.logs[i].BusinessID == businessID {
			l := r.logs[i]
			out = append(out, &l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
