package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgingMix holds the percentage of an account's outstanding balance falling
// into each days-past-due bucket. Percentages sum to 100 when any balance is
// outstanding, and are all zero otherwise. Stored as JSONB.
type AgingMix struct {
	Current     float64 `json:"current"`
	Days1To30   float64 `json:"days_1_30"`
	Days31To60  float64 `json:"days_31_60"`
	Days61To90  float64 `json:"days_61_90"`
	Days91To120 float64 `json:"days_91_120"`
	Days121Plus float64 `json:"days_121_plus"`
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (m AgingMix) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (m *AgingMix) Scan(value interface{}) error {
	if value == nil {
		*m = AgingMix{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan AgingMix: unsupported type")
	}

	if len(bytes) == 0 {
		*m = AgingMix{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// AccountAggregate is the per-account read model maintained by the
// reconciliation and scoring flows. It is always recomputed in full from the
// account's invoices, never incrementally patched, so recomputation is
// idempotent and safe to repeat.
type AccountAggregate struct {
	shared.TenantAggregateRoot
	AccountID        uuid.UUID       `json:"account_id"`
	TotalOpenBalance decimal.Decimal `json:"total_open_balance"`
	PaymentScore     int             `json:"payment_score"`
	PaymentRiskTier  string          `json:"payment_risk_tier"`
	AvgDaysToPay     float64         `json:"avg_days_to_pay"`
	MaxDaysPastDue   int             `json:"max_days_past_due"`
	AgingMix         AgingMix        `json:"aging_mix"`
	DisputedCount    int             `json:"disputed_count"`
	InPlanCount      int             `json:"in_plan_count"`
	WrittenOffCount  int             `json:"written_off_count"`
	ScoredAt         *time.Time      `json:"scored_at"`
}

// NewAccountAggregate creates an empty aggregate for an account
func NewAccountAggregate(tenantID, accountID uuid.UUID) (*AccountAggregate, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	return &AccountAggregate{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AccountID:           accountID,
		TotalOpenBalance:    decimal.Zero,
	}, nil
}

// RefreshBalances replaces the balance-derived fields from the given invoice
// set. Only invoices counting toward the open balance contribute.
func (a *AccountAggregate) RefreshBalances(invoices []Invoice, asOf time.Time) {
	total := decimal.Zero
	maxDPD := 0
	disputed, inPlan, writtenOff := 0, 0, 0

	for i := range invoices {
		inv := &invoices[i]
		switch inv.Status {
		case InvoiceStatusDisputed:
			disputed++
		case InvoiceStatusInPaymentPlan:
			inPlan++
		case InvoiceStatusCanceled:
			writtenOff++
		}

		if inv.Status.CountsTowardOpenBalance() {
			total = total.Add(inv.AmountOutstanding)
			if dpd := inv.DaysPastDue(asOf); dpd > maxDPD {
				maxDPD = dpd
			}
		}
	}

	a.TotalOpenBalance = total
	a.MaxDaysPastDue = maxDPD
	a.DisputedCount = disputed
	a.InPlanCount = inPlan
	a.WrittenOffCount = writtenOff
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// RecordScore stores a risk assessment result on the aggregate with the
// recalculation timestamp.
func (a *AccountAggregate) RecordScore(score int, tier string, avgDaysToPay float64, maxDPD int, mix AgingMix, disputed, inPlan, writtenOff int) {
	now := time.Now()
	a.PaymentScore = score
	a.PaymentRiskTier = tier
	a.AvgDaysToPay = avgDaysToPay
	a.MaxDaysPastDue = maxDPD
	a.AgingMix = mix
	a.DisputedCount = disputed
	a.InPlanCount = inPlan
	a.WrittenOffCount = writtenOff
	a.ScoredAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
}
