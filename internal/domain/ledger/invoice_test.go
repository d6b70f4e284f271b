package ledger

import (
	"testing"
	"time"

	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers
func createTestInvoice(t *testing.T, amount float64) *Invoice {
	tenantID := uuid.New()
	accountID := uuid.New()
	issueDate := time.Now().AddDate(0, 0, -30)
	dueDate := time.Now().AddDate(0, 0, -5)

	inv, err := NewInvoice(
		tenantID,
		accountID,
		"INV-2026-001",
		valueobject.NewMoneyUSDFromFloat(amount),
		issueDate,
		dueDate,
	)
	require.NoError(t, err)
	return inv
}

func TestInvoiceStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  InvoiceStatus
		isValid bool
	}{
		{InvoiceStatusOpen, true},
		{InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusPaid, true},
		{InvoiceStatusDisputed, true},
		{InvoiceStatusInPaymentPlan, true},
		{InvoiceStatusCanceled, true},
		{InvoiceStatus("INVALID"), false},
		{InvoiceStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestInvoiceStatus_CountsTowardOpenBalance(t *testing.T) {
	tests := []struct {
		status InvoiceStatus
		counts bool
	}{
		{InvoiceStatusOpen, true},
		{InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusInPaymentPlan, true},
		{InvoiceStatusPaid, false},
		{InvoiceStatusDisputed, false},
		{InvoiceStatusCanceled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.counts, tt.status.CountsTowardOpenBalance())
		})
	}
}

func TestNewInvoice(t *testing.T) {
	t.Run("valid invoice starts open with full outstanding", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.True(t, inv.Amount.Equal(inv.AmountOutstanding))
		assert.Nil(t, inv.PaidDate)
		assert.Equal(t, 1, inv.GetVersion())
	})

	t.Run("empty invoice number rejected", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), uuid.New(), "",
			valueobject.NewMoneyUSDFromFloat(100), time.Now(), time.Now())
		assert.Error(t, err)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), uuid.New(), "INV-1",
			valueobject.NewMoneyUSDFromFloat(0), time.Now(), time.Now())
		assert.Error(t, err)
	})

	t.Run("due date before issue date rejected", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), uuid.New(), "INV-1",
			valueobject.NewMoneyUSDFromFloat(100), time.Now(), time.Now().AddDate(0, 0, -1))
		assert.Error(t, err)
	})
}

func TestInvoice_ApplySettlement(t *testing.T) {
	t.Run("partial settlement", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)

		err := inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(400.00))
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
		assert.Equal(t, "600", inv.AmountOutstanding.String())
		assert.Nil(t, inv.PaidDate)
	})

	t.Run("full settlement marks paid", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)

		err := inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(1000.00))
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.AmountOutstanding.IsZero())
		assert.NotNil(t, inv.PaidDate)
	})

	t.Run("settlement exceeding outstanding rejected", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)

		err := inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(1000.01))
		assert.Error(t, err)
		assert.Equal(t, "1000", inv.AmountOutstanding.String())
	})

	t.Run("cannot settle paid invoice", func(t *testing.T) {
		inv := createTestInvoice(t, 100.00)
		require.NoError(t, inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(100.00)))

		err := inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(1.00))
		assert.Error(t, err)
	})

	t.Run("cannot settle written-off invoice", func(t *testing.T) {
		inv := createTestInvoice(t, 100.00)
		require.NoError(t, inv.WriteOff("uncollectible"))

		err := inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(50.00))
		assert.Error(t, err)
	})
}

func TestInvoice_RestoreSettlement(t *testing.T) {
	t.Run("round trip restores outstanding and status", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)
		settlement := valueobject.NewMoneyUSDFromFloat(1000.00)

		require.NoError(t, inv.ApplySettlement(settlement))
		require.Equal(t, InvoiceStatusPaid, inv.Status)

		require.NoError(t, inv.RestoreSettlement(settlement))
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.Equal(t, "1000", inv.AmountOutstanding.String())
		assert.Nil(t, inv.PaidDate)

		// Reapplying the same settlement brings the invoice back to paid
		require.NoError(t, inv.ApplySettlement(settlement))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.AmountOutstanding.IsZero())
	})

	t.Run("restore beyond original amount rejected", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)
		require.NoError(t, inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(200.00)))

		err := inv.RestoreSettlement(valueobject.NewMoneyUSDFromFloat(300.00))
		assert.Error(t, err)
	})

	t.Run("restore on written-off invoice rejected", func(t *testing.T) {
		inv := createTestInvoice(t, 1000.00)
		require.NoError(t, inv.WriteOff("uncollectible"))

		err := inv.RestoreSettlement(valueobject.NewMoneyUSDFromFloat(100.00))
		assert.Error(t, err)
	})
}

func TestInvoice_WriteOff(t *testing.T) {
	inv := createTestInvoice(t, 500.00)

	require.NoError(t, inv.WriteOff("bankruptcy"))
	assert.Equal(t, InvoiceStatusCanceled, inv.Status)
	assert.True(t, inv.AmountOutstanding.IsZero())
	assert.NotNil(t, inv.WrittenOffAt)

	// Terminal: a second write-off fails
	assert.Error(t, inv.WriteOff("again"))
}

func TestInvoice_IsMatchable(t *testing.T) {
	inv := createTestInvoice(t, 500.00)
	assert.True(t, inv.IsMatchable())

	require.NoError(t, inv.EnterPaymentPlan())
	assert.True(t, inv.IsMatchable())

	require.NoError(t, inv.Dispute())
	assert.False(t, inv.IsMatchable())
}

func TestInvoice_DaysPastDue(t *testing.T) {
	inv := createTestInvoice(t, 500.00)
	inv.DueDate = time.Now().AddDate(0, 0, -10)

	assert.Equal(t, 10, inv.DaysPastDue(time.Now()))
	assert.Equal(t, 0, inv.DaysPastDue(inv.DueDate.AddDate(0, 0, -1)))
}

func TestInvoice_DaysToPay(t *testing.T) {
	inv := createTestInvoice(t, 500.00)

	_, ok := inv.DaysToPay()
	assert.False(t, ok)

	require.NoError(t, inv.ApplySettlement(valueobject.NewMoneyUSDFromFloat(500.00)))
	days, ok := inv.DaysToPay()
	assert.True(t, ok)
	assert.Equal(t, 30, days)
}
