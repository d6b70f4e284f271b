package risk

import (
	"fmt"
	"time"

	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Tier buckets the numeric score. Higher score always means higher risk.
type Tier string

const (
	TierLow      Tier = "low"      // score <= 30
	TierMedium   Tier = "medium"   // score <= 55
	TierHigh     Tier = "high"     // score <= 75
	TierCritical Tier = "critical" // score > 75
)

// String returns the string representation of Tier
func (t Tier) String() string {
	return string(t)
}

// TierForScore maps a score to its risk tier. Boundaries are inclusive on
// the upper bound: 30 is low, 31 is medium.
func TierForScore(score int) Tier {
	switch {
	case score <= 30:
		return TierLow
	case score <= 55:
		return TierMedium
	case score <= 75:
		return TierHigh
	default:
		return TierCritical
	}
}

const (
	baselineScore  = 20
	noHistoryScore = 50
	minScore       = 0
	maxScore       = 100
)

// Assessment is the full risk picture for one account
type Assessment struct {
	Score           int             `json:"score"`
	Tier            Tier            `json:"tier"`
	AvgDaysToPay    float64         `json:"avg_days_to_pay"`
	MaxDaysPastDue  int             `json:"max_days_past_due"`
	AgingMix        ledger.AgingMix `json:"aging_mix"`
	DisputedCount   int             `json:"disputed_count"`
	InPlanCount     int             `json:"in_plan_count"`
	WrittenOffCount int             `json:"written_off_count"`
	Breakdown       []string        `json:"breakdown"`
}

// Score computes the payment-risk assessment for one account from its full
// invoice history. It is a pure function: the same invoices and reference
// date always produce the same assessment.
func Score(invoices []ledger.Invoice, asOf time.Time) Assessment {
	if len(invoices) == 0 {
		return Assessment{
			Score:     noHistoryScore,
			Tier:      TierForScore(noHistoryScore),
			Breakdown: []string{"no invoice history; defaulting to medium risk"},
		}
	}

	score := baselineScore
	breakdown := []string{fmt.Sprintf("baseline score %d", baselineScore)}

	avgDaysToPay, paidCount := averageDaysToPay(invoices)
	if paidCount > 0 {
		delta := daysToPayDelta(avgDaysToPay)
		if delta > 0 {
			breakdown = append(breakdown,
				fmt.Sprintf("average %.1f days to pay across %d paid invoices: +%d", avgDaysToPay, paidCount, delta))
		}
		score += delta
	}

	mix, maxDPD, openCount := agingProfile(invoices, asOf)

	switch {
	case mix.Days121Plus >= 50:
		score += 40
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 121+ days past due: +40", mix.Days121Plus))
	case mix.Days121Plus >= 25:
		score += 30
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 121+ days past due: +30", mix.Days121Plus))
	case mix.Days121Plus > 0:
		score += 20
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 121+ days past due: +20", mix.Days121Plus))
	}

	switch {
	case mix.Days91To120 >= 30:
		score += 20
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 91-120 days past due: +20", mix.Days91To120))
	case mix.Days91To120 > 0:
		score += 10
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 91-120 days past due: +10", mix.Days91To120))
	}

	if mix.Days61To90 > 20 {
		score += 10
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 61-90 days past due: +10", mix.Days61To90))
	}

	if mix.Days31To60 > 30 {
		score += 5
		breakdown = append(breakdown, fmt.Sprintf("%.0f%% of outstanding 31-60 days past due: +5", mix.Days31To60))
	}

	if openCount > 0 && mix.Current < 10 {
		score += 10
		breakdown = append(breakdown, fmt.Sprintf("only %.0f%% of outstanding is current: +10", mix.Current))
	}

	disputed, inPlan, writtenOff := statusCounts(invoices)

	switch {
	case disputed >= 2:
		score += 15
		breakdown = append(breakdown, fmt.Sprintf("%d disputed invoices: +15", disputed))
	case disputed == 1:
		score += 5
		breakdown = append(breakdown, "1 disputed invoice: +5")
	}

	if writtenOff > 0 {
		score += 20
		breakdown = append(breakdown, fmt.Sprintf("%d written-off invoices: +20", writtenOff))
	}

	if inPlan > 0 {
		breakdown = append(breakdown, fmt.Sprintf("%d invoices on payment plans: monitored", inPlan))
	}

	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}

	return Assessment{
		Score:           score,
		Tier:            TierForScore(score),
		AvgDaysToPay:    avgDaysToPay,
		MaxDaysPastDue:  maxDPD,
		AgingMix:        mix,
		DisputedCount:   disputed,
		InPlanCount:     inPlan,
		WrittenOffCount: writtenOff,
		Breakdown:       breakdown,
	}
}

// averageDaysToPay returns the mean days between issue and payment over
// paid invoices, and the number of paid invoices observed
func averageDaysToPay(invoices []ledger.Invoice) (float64, int) {
	totalDays := 0
	count := 0
	for i := range invoices {
		if days, ok := invoices[i].DaysToPay(); ok {
			totalDays += days
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return float64(totalDays) / float64(count), count
}

// daysToPayDelta maps average payment speed to a risk delta
func daysToPayDelta(avg float64) int {
	switch {
	case avg <= 5:
		return 0
	case avg <= 15:
		return 5
	case avg <= 30:
		return 15
	case avg <= 60:
		return 25
	default:
		return 35
	}
}

// agingProfile buckets the outstanding balance of open and in-plan invoices
// by days past due, weighted by each invoice's outstanding amount and
// normalized to the account's total outstanding. All buckets are zero when
// nothing is outstanding.
func agingProfile(invoices []ledger.Invoice, asOf time.Time) (ledger.AgingMix, int, int) {
	buckets := [6]decimal.Decimal{}
	total := decimal.Zero
	maxDPD := 0
	openCount := 0

	for i := range invoices {
		inv := &invoices[i]
		if inv.Status != ledger.InvoiceStatusOpen && inv.Status != ledger.InvoiceStatusInPaymentPlan {
			continue
		}
		if inv.AmountOutstanding.LessThanOrEqual(decimal.Zero) {
			continue
		}

		openCount++
		dpd := inv.DaysPastDue(asOf)
		if dpd > maxDPD {
			maxDPD = dpd
		}

		var idx int
		switch {
		case dpd == 0:
			idx = 0
		case dpd <= 30:
			idx = 1
		case dpd <= 60:
			idx = 2
		case dpd <= 90:
			idx = 3
		case dpd <= 120:
			idx = 4
		default:
			idx = 5
		}
		buckets[idx] = buckets[idx].Add(inv.AmountOutstanding)
		total = total.Add(inv.AmountOutstanding)
	}

	var mix ledger.AgingMix
	if total.GreaterThan(decimal.Zero) {
		hundred := decimal.NewFromInt(100)
		pct := func(b decimal.Decimal) float64 {
			return b.Mul(hundred).Div(total).InexactFloat64()
		}
		mix = ledger.AgingMix{
			Current:     pct(buckets[0]),
			Days1To30:   pct(buckets[1]),
			Days31To60:  pct(buckets[2]),
			Days61To90:  pct(buckets[3]),
			Days91To120: pct(buckets[4]),
			Days121Plus: pct(buckets[5]),
		}
	}

	return mix, maxDPD, openCount
}

// statusCounts tallies disputed, in-plan, and written-off invoices
func statusCounts(invoices []ledger.Invoice) (disputed, inPlan, writtenOff int) {
	for i := range invoices {
		switch invoices[i].Status {
		case ledger.InvoiceStatusDisputed:
			disputed++
		case ledger.InvoiceStatusInPaymentPlan:
			inPlan++
		case ledger.InvoiceStatusCanceled:
			writtenOff++
		}
	}
	return disputed, inPlan, writtenOff
}
