package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loyalty-ledger/internal/ledger"
	"loyalty-ledger/internal/model"
	"loyalty-ledger/internal/notifier"
	"loyalty-ledger/internal/repository"
	apperrors "loyalty-ledger/pkg/errors"
)

const maxCommitAttempts = 3

// CustomerSummary is a customer as seen by the cashier
type CustomerSummary struct {
	Mobile      string                          `json:"mobile"`
	Name        string                          `json:"name"`
	Points      float64                         `json:"points"`
	TotalSpent  float64                         `json:"totalSpent"`
	Tiers       ledger.TierInfo                 `json:"tiers"`
	Eligibility ledger.Eligibility              `json:"eligibility"`
	History     []model.TransactionHistoryEntry `json:"history"`
}

// TransactionReceipt is returned once a transaction is persisted. The SMS is
// sent afterwards and is not part of the receipt.
type TransactionReceipt struct {
	Mobile        string                        `json:"mobile"`
	Name          string                        `json:"name"`
	IsNewCustomer bool                          `json:"isNewCustomer"`
	Bill          ledger.BillResult             `json:"bill"`
	Entry         model.TransactionHistoryEntry `json:"entry"`
	TotalPoints   float64                       `json:"totalPoints"`
	DeadlineDays  int                           `json:"deadlineDays"`
	Message       string                        `json:"message"`
}

// LedgerService handles business logic around the transaction engine
type LedgerService struct {
	ledgers       repository.LedgerRepository
	smsLogs       repository.SmsLogRepository
	notifier      notifier.Notifier
	defaults      model.Settings
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string

	locks    sync.Map // business id -> *sync.Mutex
	inflight sync.WaitGroup
}

// Option configures a LedgerService
type Option func(*LedgerService)

// WithDefaultSettings sets the settings given to newly created businesses
func WithDefaultSettings(s model.Settings) Option {
	return func(svc *LedgerService) { svc.defaults = s }
}

// WithNotifyTimeout bounds each notifier call
func WithNotifyTimeout(d time.Duration) Option {
	return func(svc *LedgerService) { svc.notifyTimeout = d }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(svc *LedgerService) { svc.now = now }
}

// NewLedgerService creates a new ledger service
func NewLedgerService(ledgers repository.LedgerRepository, smsLogs repository.SmsLogRepository, n notifier.Notifier, opts ...Option) *LedgerService {
	svc := &LedgerService{
		ledgers:       ledgers,
		smsLogs:       smsLogs,
		notifier:      n,
		defaults:      model.DefaultSettings(),
		notifyTimeout: 10 * time.Second,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateBusiness registers a business with the default settings
func (s *LedgerService) CreateBusiness(ctx context.Context, req *model.CreateBusinessRequest) (*model.Ledger, error) {
	id := strings.TrimSpace(req.BusinessID)
	if id == "" {
		return nil, &apperrors.ValidationError{Field: "businessId", Reason: "is required"}
	}

	now := s.now()
	l := &model.Ledger{
		BusinessID:   id,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Customers:    []model.Customer{},
		Settings:     s.defaults,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.ledgers.CreateLedger(ctx, l); err != nil {
		return nil, err
	}

	log.Printf("business %s created", id)
	return l, nil
}

// GetCustomer returns the classification and eligibility of a customer
func (s *LedgerService) GetCustomer(ctx context.Context, businessID, mobile string) (*CustomerSummary, error) {
	current, err := s.ledgers.GetLedger(ctx, businessID)
	if err != nil {
		return nil, err
	}

	c, ok := current.FindCustomer(mobile)
	if !ok {
		return nil, &apperrors.CustomerNotFoundError{Mobile: mobile}
	}

	st := current.Settings
	return &CustomerSummary{
		Mobile:      c.Mobile,
		Name:        c.Name,
		Points:      c.Points,
		TotalSpent:  c.TotalSpent,
		Tiers:       ledger.Classify(c, st.Tiers),
		Eligibility: ledger.Evaluate(c, st.Deadlines, st.Tiers, s.now()),
		History:     c.History,
	}, nil
}

// VerifyPIN reports whether mobile is a new customer. For an existing
// customer the PIN must match the stored one exactly.
func (s *LedgerService) VerifyPIN(ctx context.Context, businessID, mobile, pin string) (isNew bool, err error) {
	current, err := s.ledgers.GetLedger(ctx, businessID)
	if err != nil {
		return false, err
	}

	switch l := ledger.Lookup(current.Customers, mobile).(type) {
	case ledger.ExistingCustomer:
		if l.Customer.PIN != pin {
			return false, apperrors.ErrInvalidPIN
		}
		return false, nil
	default:
		// a new customer picks a PIN on the transaction form
		return true, checkPIN(pin)
	}
}

// PreviewTransaction computes the bill without committing it
func (s *LedgerService) PreviewTransaction(ctx context.Context, businessID string, req *model.TransactionRequest) (*ledger.BillResult, error) {
	current, err := s.ledgers.GetLedger(ctx, businessID)
	if err != nil {
		return nil, err
	}

	lookup := ledger.Lookup(current.Customers, req.Mobile)
	if existing, ok := lookup.(ledger.ExistingCustomer); ok && existing.Customer.PIN != req.PIN {
		return nil, apperrors.ErrInvalidPIN
	}

	bill, _ := s.computeBill(current.Settings, lookup, req)
	return &bill, nil
}

// RecordTransaction validates, applies and persists a transaction, then
// sends the customer notification in the background.
func (s *LedgerService) RecordTransaction(ctx context.Context, businessID string, req *model.TransactionRequest) (*TransactionReceipt, error) {
	mu := s.lock(businessID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		receipt, err := s.commit(ctx, businessID, req)
		if errors.Is(err, apperrors.ErrVersionConflict) {
			log.Printf("business %s: version conflict on attempt %d, retrying", businessID, attempt)
			continue
		}
		return receipt, err
	}

	return nil, apperrors.ErrVersionConflict
}

func (s *LedgerService) commit(ctx context.Context, businessID string, req *model.TransactionRequest) (*TransactionReceipt, error) {
	current, err := s.ledgers.GetLedger(ctx, businessID)
	if err != nil {
		return nil, err
	}

	lookup, err := resolveCustomer(current.Customers, req)
	if err != nil {
		return nil, err
	}

	bill, elig := s.computeBill(current.Settings, lookup, req)
	if err := bill.Validate(); err != nil {
		return nil, err
	}

	res, err := ledger.Apply(ledger.ApplyRequest{
		Customers:   current.Customers,
		Lookup:      lookup,
		Bill:        bill,
		Eligibility: elig,
		Tiers:       current.Settings.Tiers,
		Deadlines:   current.Settings.Deadlines,
		Now:         s.now(),
		EntryID:     s.newID(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledgers.SaveCustomers(ctx, businessID, res.Customers, current.Version); err != nil {
		return nil, err
	}

	_, isNew := lookup.(ledger.NewCustomer)
	log.Printf("business %s: recorded %.2f for %s (new=%t, points=%v)", businessID, bill.FinalBill, req.Mobile, isNew, res.TotalPoints)

	n := res.Notification
	n.BusinessName = current.BusinessName
	s.notifyAsync(businessID, n)

	return &TransactionReceipt{
		Mobile:        res.Customer.Mobile,
		Name:          res.Customer.Name,
		IsNewCustomer: isNew,
		Bill:          bill,
		Entry:         res.Entry,
		TotalPoints:   res.TotalPoints,
		DeadlineDays:  res.DeadlineDays,
		Message:       ledger.FormatNotification(n),
	}, nil
}

func (s *LedgerService) computeBill(st model.Settings, lookup ledger.CustomerLookup, req *model.TransactionRequest) (ledger.BillResult, ledger.Eligibility) {
	br := ledger.BillRequest{
		Subtotal:  req.Subtotal,
		CashGiven: req.CashGiven,
		Discounts: st.Discounts,
		Redemption: ledger.Redemption{
			Apply:           req.ApplyRedemption,
			RequestedPoints: req.PointsToUse,
		},
	}

	elig := ledger.Eligibility{Eligible: true}
	if existing, ok := lookup.(ledger.ExistingCustomer); ok {
		c := existing.Customer
		elig = ledger.Evaluate(c, st.Deadlines, st.Tiers, s.now())
		br.Customer = &c
		br.Tiers = ledger.Classify(c, st.Tiers)
	}
	br.Eligibility = elig

	return ledger.ComputeBill(br), elig
}

// RetryNotification resends the balance message for a customer
func (s *LedgerService) RetryNotification(ctx context.Context, businessID, mobile string) error {
	current, err := s.ledgers.GetLedger(ctx, businessID)
	if err != nil {
		return err
	}

	c, ok := current.FindCustomer(mobile)
	if !ok {
		return &apperrors.CustomerNotFoundError{Mobile: mobile}
	}

	st := current.Settings
	elig := ledger.Evaluate(c, st.Deadlines, st.Tiers, s.now())
	deadline, ok := elig.RemainingDays()
	if !ok {
		deadline = st.Deadlines.For(ledger.ClassifyByPoints(c, st.Tiers))
	}

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	return s.notify(ctx, businessID, ledger.Notification{
		Mobile:       c.Mobile,
		CustomerName: c.Name,
		BusinessName: current.BusinessName,
		Points:       c.Points,
		DeadlineDays: deadline,
	})
}

// notifyAsync never blocks or rolls back the committed transaction
func (s *LedgerService) notifyAsync(businessID string, n ledger.Notification) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notify(ctx, businessID, n); err != nil {
			log.Printf("business %s: %v", businessID, err)
		}
	}()
}

func (s *LedgerService) notify(ctx context.Context, businessID string, n ledger.Notification) error {
	message := ledger.FormatNotification(n)
	entry := &model.SmsLog{
		BusinessID: businessID,
		Mobile:     n.Mobile,
		Message:    message,
		CreatedAt:  s.now(),
	}

	var failure error
	res, err := s.notifier.Send(ctx, n.Mobile, message)
	switch {
	case err != nil:
		failure = &apperrors.NotificationFailure{Destination: n.Mobile, Err: err}
	case !res.Success:
		failure = &apperrors.NotificationFailure{Destination: n.Mobile, Reason: res.ErrorMessage}
	}

	entry.ProviderID = res.ID
	entry.Status = model.SmsStatusSent
	if failure != nil {
		entry.Status = model.SmsStatusFailed
		entry.Error = failure.Error()
	}

	// the log write must outlive a notifier timeout
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.smsLogs.CreateSmsLog(logCtx, entry); err != nil {
		log.Printf("business %s: failed to write sms log: %v", businessID, err)
	}

	return failure
}

// GetSettings returns the tier, discount and deadline settings of a business
func (s *LedgerService) GetSettings(ctx context.Context, businessID string) (*model.Settings, error) {
	current, err := s.ledgers.GetLedger(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return &current.Settings, nil
}

// UpdateSettings replaces all settings of a business
func (s *LedgerService) UpdateSettings(ctx context.Context, businessID string, settings model.Settings) error {
	if err := settings.Validate(); err != nil {
		return &apperrors.ValidationError{Field: "settings", Reason: err.Error()}
	}
	if bad := settings.Tiers.NonMonotonicTiers(); len(bad) > 0 {
		log.Printf("business %s: tier thresholds not increasing at %v", businessID, bad)
	}

	mu := s.lock(businessID)
	mu.Lock()
	defer mu.Unlock()

	return s.ledgers.UpdateSettings(ctx, businessID, settings)
}

// ListSmsLogs returns the notification history of a business
func (s *LedgerService) ListSmsLogs(ctx context.Context, businessID string, limit int) ([]*model.SmsLog, error) {
	return s.smsLogs.ListSmsLogs(ctx, businessID, limit)
}

// Drain waits for background notifications to finish
func (s *LedgerService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}

func (s *LedgerService) lock(businessID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(businessID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// resolveCustomer compares an existing customer's PIN verbatim, or requires
// a name and a 4-digit PIN to register a new one.
func resolveCustomer(customers []model.Customer, req *model.TransactionRequest) (ledger.CustomerLookup, error) {
	switch l := ledger.Lookup(customers, req.Mobile).(type) {
	case ledger.ExistingCustomer:
		if l.Customer.PIN != req.PIN {
			return nil, apperrors.ErrInvalidPIN
		}
		return l, nil
	case ledger.NewCustomer:
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, &apperrors.ValidationError{Field: "name", Reason: "is required for a new customer"}
		}
		if err := checkPIN(req.PIN); err != nil {
			return nil, err
		}
		l.Name, l.PIN = name, req.PIN
		return l, nil
	}
	return nil, &apperrors.ValidationError{Field: "mobile", Reason: "unknown customer lookup"}
}

func checkPIN(pin string) error {
	if len(pin) != 4 {
		return &apperrors.ValidationError{Field: "pin", Reason: "must be 4 digits"}
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return &apperrors.ValidationError{Field: "pin", Reason: "must be 4 digits"}
		}
	}
	return nil
}
