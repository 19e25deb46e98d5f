package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-ledger/internal/model"
	apperrors "loyalty-ledger/pkg/errors"
)

func TestMemoryLedgerVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()

	require.NoError(t, repo.CreateLedger(ctx, &model.Ledger{BusinessID: "shop", BusinessName: "Shop", Settings: model.DefaultSettings()}))
	assert.ErrorIs(t, repo.CreateLedger(ctx, &model.Ledger{BusinessID: "shop"}), apperrors.ErrBusinessAlreadyExists)

	l, err := repo.GetLedger(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Version)

	customers := []model.Customer{{Mobile: "1", Points: 10}}
	require.NoError(t, repo.SaveCustomers(ctx, "shop", customers, 0))
	assert.ErrorIs(t, repo.SaveCustomers(ctx, "shop", customers, 0), apperrors.ErrVersionConflict)

	// stored copy is isolated from the caller's slice
	customers[0].Points = 999
	l, err = repo.GetLedger(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Version)
	assert.Equal(t, 10.0, l.Customers[0].Points)

	l.Customers[0].Points = 5
	again, _ := repo.GetLedger(ctx, "shop")
	assert.Equal(t, 10.0, again.Customers[0].Points)
}

func TestMemoryLedgerMissingBusiness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()

	_, err := repo.GetLedger(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrBusinessNotFound)
	assert.ErrorIs(t, repo.SaveCustomers(ctx, "nope", nil, 0), apperrors.ErrBusinessNotFound)
	assert.ErrorIs(t, repo.UpdateSettings(ctx, "nope", model.Settings{}), apperrors.ErrBusinessNotFound)
}

func TestMemoryLedgerUpdateSettingsBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()
	require.NoError(t, repo.CreateLedger(ctx, &model.Ledger{BusinessID: "shop"}))

	s := model.DefaultSettings()
	s.Discounts.Gold = 12
	require.NoError(t, repo.UpdateSettings(ctx, "shop", s))

	l, err := repo.GetLedger(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 12.0, l.Settings.Discounts.Gold)
	assert.Equal(t, int64(1), l.Version)
}

func TestMemorySmsLogs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySmsLogRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateSmsLog(ctx, &model.SmsLog{
			BusinessID: "shop",
			Mobile:     "1",
			Status:     model.SmsStatusSent,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.CreateSmsLog(ctx, &model.SmsLog{BusinessID: "other", CreatedAt: base}))

	logs, err := repo.ListSmsLogs(ctx, "shop", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))
	assert.False(t, logs[0].ID.IsZero())

	all, err := repo.ListSmsLogs(ctx, "shop", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
