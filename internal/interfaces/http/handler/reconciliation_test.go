package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arflow/backend/internal/application/reconciliation"
	"github.com/arflow/backend/internal/infrastructure/paymentfile"
	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/domain/shared/valueobject"
	"github.com/arflow/backend/internal/interfaces/http/dto"
	"github.com/arflow/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMatchRunner struct {
	summary  *reconciliation.RunSummary
	err      error
	tenantID uuid.UUID
	batchID  *uuid.UUID
}

func (s *stubMatchRunner) RunMatching(_ context.Context, tenantID uuid.UUID, batchID *uuid.UUID) (*reconciliation.RunSummary, error) {
	s.tenantID = tenantID
	s.batchID = batchID
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

type stubManualMatcher struct {
	err       error
	paymentID uuid.UUID
	lines     []reconciliation.ManualMatchLine
}

func (s *stubManualMatcher) ManualMatch(_ context.Context, _, paymentID uuid.UUID, lines []reconciliation.ManualMatchLine) error {
	s.paymentID = paymentID
	s.lines = lines
	return s.err
}

type stubCompensator struct {
	unmatchErr      error
	rematchErr      error
	allocationID    uuid.UUID
	oldAllocationID uuid.UUID
	newInvoiceID    uuid.UUID
	amountApplied   decimal.Decimal
}

func (s *stubCompensator) Unmatch(_ context.Context, _, allocationID uuid.UUID) error {
	s.allocationID = allocationID
	return s.unmatchErr
}

func (s *stubCompensator) Rematch(_ context.Context, _, oldAllocationID, newInvoiceID uuid.UUID, amountApplied decimal.Decimal) error {
	s.oldAllocationID = oldAllocationID
	s.newInvoiceID = newInvoiceID
	s.amountApplied = amountApplied
	return s.rematchErr
}

type stubAllocationRepo struct {
	allocations []ledger.Allocation
	err         error
}

func (s *stubAllocationRepo) FindByIDForTenant(_ context.Context, _, _ uuid.UUID) (*ledger.Allocation, error) {
	return nil, shared.ErrNotFound
}

func (s *stubAllocationRepo) FindByPayment(_ context.Context, _, _ uuid.UUID) ([]ledger.Allocation, error) {
	return s.allocations, s.err
}

func (s *stubAllocationRepo) FindByInvoice(_ context.Context, _, _ uuid.UUID) ([]ledger.Allocation, error) {
	return nil, nil
}

func (s *stubAllocationRepo) SumConfirmedByInvoice(_ context.Context, _, _ uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubAllocationRepo) Save(_ context.Context, _ *ledger.Allocation) error { return nil }

func (s *stubAllocationRepo) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

type stubPaymentImporter struct {
	summary  *reconciliation.ImportSummary
	err      error
	received string
}

func (s *stubPaymentImporter) ImportPayments(_ context.Context, _ uuid.UUID, file io.Reader) (*reconciliation.ImportSummary, error) {
	raw, _ := io.ReadAll(file)
	s.received = string(raw)
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

type reconciliationFixture struct {
	runner      *stubMatchRunner
	allocator   *stubManualMatcher
	compensator *stubCompensator
	importer    *stubPaymentImporter
	repo        *stubAllocationRepo
	router      *gin.Engine
}

func newReconciliationFixture() *reconciliationFixture {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	f := &reconciliationFixture{
		runner:      &stubMatchRunner{summary: &reconciliation.RunSummary{RunID: uuid.New(), Processed: 3}},
		allocator:   &stubManualMatcher{},
		compensator: &stubCompensator{},
		importer:    &stubPaymentImporter{},
		repo:        &stubAllocationRepo{},
	}
	h := NewReconciliationHandler(f.runner, f.allocator, f.compensator, f.importer, f.repo)
	f.router = gin.New()
	api := f.router.Group("/api/v1")
	h.RegisterRoutes(api)
	return f
}

func (f *reconciliationFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeaderKey, uuid.New().String())

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestReconciliationHandler_RunMatching(t *testing.T) {
	f := newReconciliationFixture()

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/runs", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["processed"])
	assert.Nil(t, f.runner.batchID)
}

func TestReconciliationHandler_RunMatchingWithBatch(t *testing.T) {
	f := newReconciliationFixture()
	batchID := uuid.New()

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/runs", gin.H{"batch_id": batchID.String()})

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.runner.batchID)
	assert.Equal(t, batchID, *f.runner.batchID)
}

func TestReconciliationHandler_RunMatchingConflict(t *testing.T) {
	f := newReconciliationFixture()
	f.runner.err = shared.ErrRunInProgress

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/runs", nil)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeRunInProgress, resp.Error.Code)
}

func TestReconciliationHandler_RunMatchingRequiresTenant(t *testing.T) {
	f := newReconciliationFixture()

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/reconciliation/runs", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconciliationHandler_ManualMatch(t *testing.T) {
	f := newReconciliationFixture()
	paymentID := uuid.New()
	invoiceID := uuid.New()

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/manual-match", gin.H{
		"payment_id": paymentID.String(),
		"lines": []gin.H{
			{"invoice_id": invoiceID.String(), "amount_applied": "150.00"},
		},
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, paymentID, f.allocator.paymentID)
	require.Len(t, f.allocator.lines, 1)
	assert.Equal(t, invoiceID, f.allocator.lines[0].InvoiceID)
	assert.True(t, f.allocator.lines[0].Amount.Equal(decimal.RequireFromString("150.00")))
}

func TestReconciliationHandler_ManualMatchValidation(t *testing.T) {
	f := newReconciliationFixture()

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "missing payment_id", body: gin.H{"lines": []gin.H{{"invoice_id": uuid.New().String(), "amount_applied": "10"}}}},
		{name: "empty lines", body: gin.H{"payment_id": uuid.New().String(), "lines": []gin.H{}}},
		{name: "bad invoice uuid", body: gin.H{"payment_id": uuid.New().String(), "lines": []gin.H{{"invoice_id": "nope", "amount_applied": "10"}}}},
		{name: "negative amount", body: gin.H{"payment_id": uuid.New().String(), "lines": []gin.H{{"invoice_id": uuid.New().String(), "amount_applied": "-5"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/reconciliation/manual-match", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestReconciliationHandler_ManualMatchExceedsOutstanding(t *testing.T) {
	f := newReconciliationFixture()
	f.allocator.err = shared.ErrExceedsOutstanding

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/manual-match", gin.H{
		"payment_id": uuid.New().String(),
		"lines": []gin.H{
			{"invoice_id": uuid.New().String(), "amount_applied": "150.00"},
		},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeExceedsOutstanding, resp.Error.Code)
}

func TestReconciliationHandler_Unmatch(t *testing.T) {
	f := newReconciliationFixture()
	allocationID := uuid.New()

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/unmatch", gin.H{
		"allocation_id": allocationID.String(),
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, allocationID, f.compensator.allocationID)
}

func TestReconciliationHandler_UnmatchNotFound(t *testing.T) {
	f := newReconciliationFixture()
	f.compensator.unmatchErr = shared.ErrNotFound

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/unmatch", gin.H{
		"allocation_id": uuid.New().String(),
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReconciliationHandler_Rematch(t *testing.T) {
	f := newReconciliationFixture()
	oldAllocationID := uuid.New()
	newInvoiceID := uuid.New()

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/rematch", gin.H{
		"old_allocation_id": oldAllocationID.String(),
		"new_invoice_id":    newInvoiceID.String(),
		"amount_applied":    "420.50",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, oldAllocationID, f.compensator.oldAllocationID)
	assert.Equal(t, newInvoiceID, f.compensator.newInvoiceID)
	assert.True(t, f.compensator.amountApplied.Equal(decimal.RequireFromString("420.50")))
}

func TestReconciliationHandler_RematchMissingFields(t *testing.T) {
	f := newReconciliationFixture()

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/rematch", gin.H{
		"old_allocation_id": uuid.New().String(),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconciliationHandler_ListPaymentAllocations(t *testing.T) {
	f := newReconciliationFixture()
	paymentID := uuid.New()

	allocation, err := ledger.NewAllocation(
		uuid.New(), paymentID, uuid.New(),
		valueobject.NewMoneyUSD(decimal.RequireFromString("250.00")),
		1.0, ledger.MatchMethodExact, ledger.AllocationStatusConfirmed,
	)
	require.NoError(t, err)
	f.repo.allocations = []ledger.Allocation{*allocation}

	w := f.do(t, http.MethodGet, "/api/v1/payments/"+paymentID.String()+"/allocations", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	items := resp.Data.([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "250.00", item["amount_applied"])
	assert.Equal(t, "exact", item["match_method"])
	assert.Equal(t, "confirmed", item["status"])
}

func TestReconciliationHandler_ImportPayments(t *testing.T) {
	f := newReconciliationFixture()
	batchID := uuid.New()
	f.importer.summary = &reconciliation.ImportSummary{BatchID: &batchID, TotalRows: 2, Imported: 2}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "payments.csv")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("reference,account_id,amount,payment_date\nPAY-1,"+uuid.New().String()+",100.00,2026-01-15"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/api/v1/reconciliation/imports", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(middleware.TenantHeaderKey, uuid.New().String())

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, f.importer.received, "PAY-1")

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, batchID.String(), data["batch_id"])
	assert.Equal(t, float64(2), data["imported"])
}

func TestReconciliationHandler_ImportPaymentsRawBody(t *testing.T) {
	f := newReconciliationFixture()
	batchID := uuid.New()
	f.importer.summary = &reconciliation.ImportSummary{BatchID: &batchID, TotalRows: 1, Imported: 1}

	csv := "reference,account_id,amount,payment_date\nPAY-1," + uuid.New().String() + ",100.00,2026-01-15"
	req, err := http.NewRequest(http.MethodPost, "/api/v1/reconciliation/imports", strings.NewReader(csv))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set(middleware.TenantHeaderKey, uuid.New().String())

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, csv, f.importer.received)
}

func TestReconciliationHandler_ImportPaymentsRejected(t *testing.T) {
	f := newReconciliationFixture()
	f.importer.summary = &reconciliation.ImportSummary{
		TotalRows:   1,
		TotalErrors: 1,
		Errors: []paymentfile.RowError{
			{Line: 2, Column: "amount", Code: paymentfile.ErrCodeInvalidAmount, Message: "amount must be positive"},
		},
	}

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/imports", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeImportRejected, resp.Error.Code)

	data := resp.Data.(map[string]interface{})
	errs := data["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, paymentfile.ErrCodeInvalidAmount, errs[0].(map[string]interface{})["code"])
}

func TestReconciliationHandler_ImportPaymentsBadFile(t *testing.T) {
	f := newReconciliationFixture()
	f.importer.err = paymentfile.ErrEmptyFile

	w := f.do(t, http.MethodPost, "/api/v1/reconciliation/imports", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconciliationHandler_ListPaymentAllocationsBadID(t *testing.T) {
	f := newReconciliationFixture()

	w := f.do(t, http.MethodGet, "/api/v1/payments/not-a-uuid/allocations", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
