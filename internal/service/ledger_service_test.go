package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loyalty-ledger/internal/model"
	"loyalty-ledger/internal/notifier"
	"loyalty-ledger/internal/repository"
	apperrors "loyalty-ledger/pkg/errors"
)

const testBusiness = "corner-store"

var testNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, destination, message string) (notifier.SendResult, error) {
	args := m.Called(ctx, destination, message)
	return args.Get(0).(notifier.SendResult), args.Error(1)
}

type fixture struct {
	svc      *LedgerService
	ledgers  *repository.MemoryLedgerRepository
	smsLogs  *repository.MemorySmsLogRepository
	notifier *mockNotifier
	now      time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledgers:  repository.NewMemoryLedgerRepository(),
		smsLogs:  repository.NewMemorySmsLogRepository(),
		notifier: &mockNotifier{},
		now:      testNow,
	}
	f.svc = NewLedgerService(f.ledgers, f.smsLogs, f.notifier,
		WithClock(func() time.Time { return f.now }),
		WithNotifyTimeout(time.Second),
	)
	f.svc.newID = func() string { return "entry-id" }

	_, err := f.svc.CreateBusiness(context.Background(), &model.CreateBusinessRequest{BusinessID: testBusiness, BusinessName: "Corner Store"})
	require.NoError(t, err)
	return f
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Drain(ctx))
}

func (f *fixture) seedCustomer(t *testing.T, c model.Customer) {
	t.Helper()
	l, err := f.ledgers.GetLedger(context.Background(), testBusiness)
	require.NoError(t, err)
	require.NoError(t, f.ledgers.SaveCustomers(context.Background(), testBusiness, append(l.Customers, c), l.Version))
}

func TestCreateBusinessDuplicate(t *testing.T) {
	f := setup(t)
	_, err := f.svc.CreateBusiness(context.Background(), &model.CreateBusinessRequest{BusinessID: testBusiness, BusinessName: "Again"})
	assert.ErrorIs(t, err, apperrors.ErrBusinessAlreadyExists)

	_, err = f.svc.CreateBusiness(context.Background(), &model.CreateBusinessRequest{BusinessID: "  "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRecordTransactionNewCustomer(t *testing.T) {
	f := setup(t)
	f.notifier.On("Send", mock.Anything, "0700", mock.AnythingOfType("string")).
		Return(notifier.SendResult{Success: true, ID: "SM1"}, nil).Once()

	receipt, err := f.svc.RecordTransaction(context.Background(), testBusiness, &model.TransactionRequest{
		Mobile:    "0700",
		Name:      "Ada",
		PIN:       "4321",
		Subtotal:  1000,
		CashGiven: 1000,
	})
	require.NoError(t, err)
	f.drain(t)

	assert.True(t, receipt.IsNewCustomer)
	assert.Equal(t, 1000.0, receipt.Bill.FinalBill)
	assert.Equal(t, 1000.0, receipt.Bill.CashPayable)
	assert.Equal(t, 0.0, receipt.TotalPoints)
	assert.Equal(t, model.DefaultSettings().Deadlines.Bronze, receipt.DeadlineDays)
	assert.Equal(t, "entry-id", receipt.Entry.ID)
	assert.Contains(t, receipt.Message, "Corner Store")

	l, err := f.ledgers.GetLedger(context.Background(), testBusiness)
	require.NoError(t, err)
	c, ok := l.FindCustomer("0700")
	require.True(t, ok)
	assert.Equal(t, "4321", c.PIN)
	assert.Len(t, c.History, 1)
	assert.Equal(t, 1000.0, c.TotalSpent)

	logs, err := f.svc.ListSmsLogs(context.Background(), testBusiness, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.SmsStatusSent, logs[0].Status)
	assert.Equal(t, "SM1", logs[0].ProviderID)
	f.notifier.AssertExpectations(t)
}

func TestRecordTransactionExistingCustomerWithRedemption(t *testing.T) {
	f := setup(t)
	// gold by spend under the default settings: 10% discount
	f.seedCustomer(t, model.Customer{
		Mobile:     "0701",
		Name:       "Bo",
		PIN:        "1111",
		Points:     200,
		TotalSpent: 25000,
		History: []model.TransactionHistoryEntry{
			{ID: "old", Timestamp: testNow.Add(-3 * 24 * time.Hour), OriginalBill: 25000, FinalBill: 25000},
		},
	})
	f.notifier.On("Send", mock.Anything, "0701", mock.Anything).Return(notifier.SendResult{Success: true}, nil)

	receipt, err := f.svc.RecordTransaction(context.Background(), testBusiness, &model.TransactionRequest{
		Mobile:          "0701",
		PIN:             "1111",
		Subtotal:        1000,
		CashGiven:       900,
		ApplyRedemption: true,
		PointsToUse:     50,
	})
	require.NoError(t, err)
	f.drain(t)

	assert.False(t, receipt.IsNewCustomer)
	assert.Equal(t, 100.0, receipt.Bill.DiscountAmount)
	assert.Equal(t, 900.0, receipt.Bill.FinalBill)
	assert.Equal(t, 50.0, receipt.Bill.PointsUsed)
	assert.Equal(t, 850.0, receipt.Bill.CashPayable)
	assert.Equal(t, 50.0, receipt.Bill.PointsEarned)
	assert.Equal(t, 200.0, receipt.TotalPoints)
	// bronze by points (200 < 500): 30 day window, 3 days used
	assert.Equal(t, 27, receipt.DeadlineDays)

	summary, err := f.svc.GetCustomer(context.Background(), testBusiness, "0701")
	require.NoError(t, err)
	assert.Equal(t, 25900.0, summary.TotalSpent)
	assert.Len(t, summary.History, 2)
	assert.Equal(t, model.Gold, summary.Tiers.EffectiveTier)
}

func TestRecordTransactionRejectsBeforeMutation(t *testing.T) {
	f := setup(t)
	f.seedCustomer(t, model.Customer{Mobile: "0702", Name: "Cy", PIN: "2222", Points: 10})

	cases := []struct {
		name string
		req  model.TransactionRequest
		want error
	}{
		{"wrong pin", model.TransactionRequest{Mobile: "0702", PIN: "0000", Subtotal: 10, CashGiven: 10}, apperrors.ErrInvalidPIN},
		{"zero subtotal", model.TransactionRequest{Mobile: "0702", PIN: "2222", Subtotal: 0, CashGiven: 10}, apperrors.ErrValidation},
		{"short cash", model.TransactionRequest{Mobile: "0702", PIN: "2222", Subtotal: 100, CashGiven: 99}, apperrors.ErrValidation},
		{"new without name", model.TransactionRequest{Mobile: "0799", PIN: "1234", Subtotal: 10, CashGiven: 10}, apperrors.ErrValidation},
		{"new with bad pin", model.TransactionRequest{Mobile: "0799", Name: "Di", PIN: "12a4", Subtotal: 10, CashGiven: 10}, apperrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			_, err := f.svc.RecordTransaction(context.Background(), testBusiness, &req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var perr *apperrors.InsufficientPaymentError
	_, err := f.svc.RecordTransaction(context.Background(), testBusiness, &model.TransactionRequest{Mobile: "0702", PIN: "2222", Subtotal: 100, CashGiven: 99})
	require.ErrorAs(t, err, &perr)

	l, err := f.ledgers.GetLedger(context.Background(), testBusiness)
	require.NoError(t, err)
	assert.Len(t, l.Customers, 1)
	assert.Empty(t, l.Customers[0].History)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationFailureKeepsCommit(t *testing.T) {
	f := setup(t)
	f.notifier.On("Send", mock.Anything, "0703", mock.Anything).
		Return(notifier.SendResult{}, errors.New("connection refused")).Once()

	_, err := f.svc.RecordTransaction(context.Background(), testBusiness, &model.TransactionRequest{
		Mobile: "0703", Name: "Ed", PIN: "9999", Subtotal: 50, CashGiven: 60,
	})
	require.NoError(t, err)
	f.drain(t)

	summary, err := f.svc.GetCustomer(context.Background(), testBusiness, "0703")
	require.NoError(t, err)
	assert.Equal(t, 10.0, summary.Points)

	logs, _ := f.svc.ListSmsLogs(context.Background(), testBusiness, 0)
	require.Len(t, logs, 1)
	assert.Equal(t, model.SmsStatusFailed, logs[0].Status)
	assert.Contains(t, logs[0].Error, "connection refused")
}

func TestRetryNotification(t *testing.T) {
	f := setup(t)
	f.seedCustomer(t, model.Customer{
		Mobile: "0704", Name: "Fay", PIN: "1234", Points: 40,
		History: []model.TransactionHistoryEntry{{ID: "a", Timestamp: testNow.Add(-10 * 24 * time.Hour), FinalBill: 40}},
	})

	f.notifier.On("Send", mock.Anything, "0704", mock.Anything).
		Return(notifier.SendResult{Success: false, ErrorMessage: "queue full"}, nil).Once()
	err := f.svc.RetryNotification(context.Background(), testBusiness, "0704")
	var nf *apperrors.NotificationFailure
	require.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, apperrors.ErrNotificationFailed)
	assert.Equal(t, "queue full", nf.Reason)

	f.notifier.On("Send", mock.Anything, "0704", "Dear Fay, thank you for shopping at Corner Store. Your points balance is 40. Visit again within 20 days to keep your tier benefits.").
		Return(notifier.SendResult{Success: true, ID: "SM9"}, nil).Once()
	require.NoError(t, f.svc.RetryNotification(context.Background(), testBusiness, "0704"))

	err = f.svc.RetryNotification(context.Background(), testBusiness, "0000")
	assert.ErrorIs(t, err, apperrors.ErrCustomerNotFound)
	f.notifier.AssertExpectations(t)
}

// conflictingRepo fails the first save with a version conflict
type conflictingRepo struct {
	*repository.MemoryLedgerRepository
	conflicts int
}

func (r *conflictingRepo) SaveCustomers(ctx context.Context, businessID string, customers []model.Customer, expectedVersion int64) error {
	if r.conflicts > 0 {
		r.conflicts--
		// simulate another writer bumping the version
		l, err := r.MemoryLedgerRepository.GetLedger(ctx, businessID)
		if err != nil {
			return err
		}
		if err := r.MemoryLedgerRepository.SaveCustomers(ctx, businessID, l.Customers, l.Version); err != nil {
			return err
		}
		return apperrors.ErrVersionConflict
	}
	return r.MemoryLedgerRepository.SaveCustomers(ctx, businessID, customers, expectedVersion)
}

func TestRecordTransactionRetriesOnConflict(t *testing.T) {
	repo := &conflictingRepo{MemoryLedgerRepository: repository.NewMemoryLedgerRepository(), conflicts: 2}
	n := &mockNotifier{}
	n.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(notifier.SendResult{Success: true}, nil)
	svc := NewLedgerService(repo, repository.NewMemorySmsLogRepository(), n)
	_, err := svc.CreateBusiness(context.Background(), &model.CreateBusinessRequest{BusinessID: "b", BusinessName: "B"})
	require.NoError(t, err)

	_, err = svc.RecordTransaction(context.Background(), "b", &model.TransactionRequest{Mobile: "1", Name: "X", PIN: "1234", Subtotal: 5, CashGiven: 5})
	require.NoError(t, err)
	require.NoError(t, svc.Drain(context.Background()))

	repo.conflicts = maxCommitAttempts
	_, err = svc.RecordTransaction(context.Background(), "b", &model.TransactionRequest{Mobile: "1", PIN: "1234", Subtotal: 5, CashGiven: 5})
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)

	l, err := repo.GetLedger(context.Background(), "b")
	require.NoError(t, err)
	c, _ := l.FindCustomer("1")
	assert.Len(t, c.History, 1)
}

func TestConcurrentTransactionsSameBusiness(t *testing.T) {
	f := setup(t)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(notifier.SendResult{Success: true}, nil)
	f.seedCustomer(t, model.Customer{Mobile: "0705", Name: "Gil", PIN: "5555"})

	const workers = 20
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := f.svc.RecordTransaction(context.Background(), testBusiness, &model.TransactionRequest{
				Mobile: "0705", PIN: "5555", Subtotal: 10, CashGiven: 11,
			})
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
	}
	f.drain(t)

	summary, err := f.svc.GetCustomer(context.Background(), testBusiness, "0705")
	require.NoError(t, err)
	assert.Len(t, summary.History, workers)
	assert.Equal(t, float64(workers*10), summary.TotalSpent)
	assert.Equal(t, float64(workers), summary.Points)
}

func TestPreviewDoesNotCommit(t *testing.T) {
	f := setup(t)
	f.seedCustomer(t, model.Customer{Mobile: "0706", Name: "Hal", PIN: "7777", Points: 100, TotalSpent: 60000})

	bill, err := f.svc.PreviewTransaction(context.Background(), testBusiness, &model.TransactionRequest{
		Mobile: "0706", PIN: "7777", Subtotal: 200, CashGiven: 200, ApplyRedemption: true, PointsToUse: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 15.0, bill.DiscountPercentage)
	assert.Equal(t, 170.0, bill.FinalBill)
	assert.Equal(t, 100.0, bill.PointsUsed)
	assert.Equal(t, 70.0, bill.CashPayable)
	assert.Equal(t, 130.0, bill.PointsEarned)

	_, err = f.svc.PreviewTransaction(context.Background(), testBusiness, &model.TransactionRequest{Mobile: "0706", PIN: "0000"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPIN)

	summary, _ := f.svc.GetCustomer(context.Background(), testBusiness, "0706")
	assert.Empty(t, summary.History)
}

func TestVerifyPIN(t *testing.T) {
	f := setup(t)
	f.seedCustomer(t, model.Customer{Mobile: "0707", PIN: "1212"})

	isNew, err := f.svc.VerifyPIN(context.Background(), testBusiness, "0707", "1212")
	require.NoError(t, err)
	assert.False(t, isNew)

	_, err = f.svc.VerifyPIN(context.Background(), testBusiness, "0707", "1213")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPIN)

	isNew, err = f.svc.VerifyPIN(context.Background(), testBusiness, "0808", "3434")
	require.NoError(t, err)
	assert.True(t, isNew)

	_, err = f.svc.VerifyPIN(context.Background(), testBusiness, "0808", "34")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateSettings(t *testing.T) {
	f := setup(t)
	s := model.DefaultSettings()
	s.Discounts.Platinum = 25
	// non-monotonic thresholds are accepted as-is
	s.Tiers.Silver.MinSpend = 30000
	require.NoError(t, f.svc.UpdateSettings(context.Background(), testBusiness, s))

	got, err := f.svc.GetSettings(context.Background(), testBusiness)
	require.NoError(t, err)
	assert.Equal(t, s, *got)

	bad := model.DefaultSettings()
	bad.Discounts.Gold = 120
	assert.ErrorIs(t, f.svc.UpdateSettings(context.Background(), testBusiness, bad), apperrors.ErrValidation)
	assert.ErrorIs(t, f.svc.UpdateSettings(context.Background(), "missing", model.DefaultSettings()), apperrors.ErrBusinessNotFound)
}

func TestDrainTimesOut(t *testing.T) {
	f := setup(t)
	block := make(chan struct{})
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-block }).
		Return(notifier.SendResult{Success: true}, nil)

	_, err := f.svc.RecordTransaction(context.Background(), testBusiness, &model.TransactionRequest{
		Mobile: "0709", Name: "Ivy", PIN: "1234", Subtotal: 1, CashGiven: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.svc.Drain(ctx), context.DeadlineExceeded)

	close(block)
	f.drain(t)
}

func ExampleLedgerService_RecordTransaction() {
	svc := NewLedgerService(repository.NewMemoryLedgerRepository(), repository.NewMemorySmsLogRepository(), notifier.LogNotifier{})
	ctx := context.Background()
	_, _ = svc.CreateBusiness(ctx, &model.CreateBusinessRequest{BusinessID: "demo", BusinessName: "Demo"})

	receipt, err := svc.RecordTransaction(ctx, "demo", &model.TransactionRequest{
		Mobile: "0711", Name: "Jo", PIN: "2468", Subtotal: 120, CashGiven: 150,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	_ = svc.Drain(ctx)
	fmt.Println(receipt.Bill.CashPayable, receipt.TotalPoints, receipt.DeadlineDays)
	// Output: 120 30 30
}
