package paymentfile

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Column names expected in a payment file. Bank exports are matched
// case-insensitively against these after header normalization.
const (
	ColumnReference     = "reference"
	ColumnAccountID     = "account_id"
	ColumnAmount        = "amount"
	ColumnCurrency      = "currency"
	ColumnPaymentDate   = "payment_date"
	ColumnInvoiceNumber = "invoice_number"
	ColumnNotes         = "notes"
)

// requiredColumns must all be present in the header row.
var requiredColumns = []string{ColumnReference, ColumnAccountID, ColumnAmount, ColumnPaymentDate}

// dateLayouts are tried in order when parsing payment dates. Bank exports
// disagree on date formatting.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006-01-02T15:04:05Z07:00"}

// defaultCurrency is applied when the currency column is absent or blank.
const defaultCurrency = "USD"

// PaymentRow is one validated row of a payment file.
type PaymentRow struct {
	Line              int
	Reference         string
	AccountID         uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	PaymentDate       time.Time
	InvoiceNumberHint string
	Notes             string
}

// ParseResult holds the validated rows and the per-row rejections of one
// payment file.
type ParseResult struct {
	Rows        []PaymentRow
	TotalRows   int
	Errors      []RowError
	TotalErrors int
	Truncated   bool
}

// Valid reports whether every data row passed validation.
func (r *ParseResult) Valid() bool {
	return r.TotalErrors == 0
}

// ParsePaymentFile reads an entire payment file and validates every row.
// File-level problems (encoding, missing header, missing required columns,
// no data) are returned as an error; row-level problems are collected in
// the result so the caller can report them all at once.
func ParsePaymentFile(r io.Reader) (*ParseResult, error) {
	parser, err := NewParser(r, ',')
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.MissingHeaders(requiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("payment file is missing required columns: %s", strings.Join(missing, ", "))
	}

	result := &ParseResult{}
	var errs ErrorCollection
	seenRefs := make(map[string]int)

	for {
		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs.Add(RowError{Line: parser.line, Code: ErrCodeRequiredField, Message: err.Error()})
			continue
		}
		if row.IsEmpty() {
			continue
		}

		result.TotalRows++
		payment, ok := validateRow(row, seenRefs, &errs)
		if ok {
			result.Rows = append(result.Rows, payment)
		}
	}

	if result.TotalRows == 0 && !errs.HasErrors() {
		return nil, ErrNoDataRows
	}

	result.Errors = errs.Errors()
	result.TotalErrors = errs.Total()
	result.Truncated = errs.Truncated()
	return result, nil
}

// validateRow converts one raw row into a PaymentRow, recording every field
// problem it finds rather than stopping at the first.
func validateRow(row *Row, seenRefs map[string]int, errs *ErrorCollection) (PaymentRow, bool) {
	before := errs.Total()
	payment := PaymentRow{
		Line:              row.Line,
		InvoiceNumberHint: row.Get(ColumnInvoiceNumber),
		Notes:             row.Get(ColumnNotes),
	}

	payment.Reference = row.Get(ColumnReference)
	if payment.Reference == "" {
		errs.AddField(row.Line, ColumnReference, ErrCodeRequiredField, "reference is required", "")
	} else if firstLine, dup := seenRefs[payment.Reference]; dup {
		errs.AddField(row.Line, ColumnReference, ErrCodeDuplicateReference,
			fmt.Sprintf("reference already appears at line %d", firstLine), payment.Reference)
	} else {
		seenRefs[payment.Reference] = row.Line
	}

	if raw := row.Get(ColumnAccountID); raw == "" {
		errs.AddField(row.Line, ColumnAccountID, ErrCodeRequiredField, "account_id is required", "")
	} else if id, err := uuid.Parse(raw); err != nil {
		errs.AddField(row.Line, ColumnAccountID, ErrCodeInvalidAccount, "account_id must be a UUID", raw)
	} else {
		payment.AccountID = id
	}

	if raw := row.Get(ColumnAmount); raw == "" {
		errs.AddField(row.Line, ColumnAmount, ErrCodeRequiredField, "amount is required", "")
	} else if amount, err := decimal.NewFromString(raw); err != nil {
		errs.AddField(row.Line, ColumnAmount, ErrCodeInvalidAmount, "amount must be a decimal number", raw)
	} else if amount.LessThanOrEqual(decimal.Zero) {
		errs.AddField(row.Line, ColumnAmount, ErrCodeInvalidAmount, "amount must be positive", raw)
	} else {
		payment.Amount = amount
	}

	payment.Currency = strings.ToUpper(row.Get(ColumnCurrency))
	if payment.Currency == "" {
		payment.Currency = defaultCurrency
	} else if !isCurrencyCode(payment.Currency) {
		errs.AddField(row.Line, ColumnCurrency, ErrCodeInvalidCurrency, "currency must be a 3-letter ISO code", payment.Currency)
	}

	if raw := row.Get(ColumnPaymentDate); raw == "" {
		errs.AddField(row.Line, ColumnPaymentDate, ErrCodeRequiredField, "payment_date is required", "")
	} else if date, ok := parseDate(raw); !ok {
		errs.AddField(row.Line, ColumnPaymentDate, ErrCodeInvalidDate, "payment_date is not a recognized date", raw)
	} else {
		payment.PaymentDate = date
	}

	return payment, errs.Total() == before
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
