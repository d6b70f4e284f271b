package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/arflow/backend/internal/application/reconciliation"
	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/infrastructure/paymentfile"
	"github.com/arflow/backend/internal/interfaces/http/dto"
	"github.com/arflow/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchRunner executes a full reconciliation run. Implemented by BatchCoordinator.
type MatchRunner interface {
	RunMatching(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID) (*reconciliation.RunSummary, error)
}

// ManualMatcher applies operator-selected allocations. Implemented by AllocationService.
type ManualMatcher interface {
	ManualMatch(ctx context.Context, tenantID, paymentID uuid.UUID, lines []reconciliation.ManualMatchLine) error
}

// AllocationCompensator reverses and moves allocations. Implemented by CompensationService.
type AllocationCompensator interface {
	Unmatch(ctx context.Context, tenantID, allocationID uuid.UUID) error
	Rematch(ctx context.Context, tenantID, oldAllocationID, newInvoiceID uuid.UUID, amountApplied decimal.Decimal) error
}

// PaymentImporter ingests payment files. Implemented by PaymentImportService.
type PaymentImporter interface {
	ImportPayments(ctx context.Context, tenantID uuid.UUID, file io.Reader) (*reconciliation.ImportSummary, error)
}

// ReconciliationHandler exposes the reconciliation operations over HTTP
type ReconciliationHandler struct {
	BaseHandler
	runner         MatchRunner
	allocator      ManualMatcher
	compensator    AllocationCompensator
	importer       PaymentImporter
	allocationRepo ledger.AllocationRepository
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(
	runner MatchRunner,
	allocator ManualMatcher,
	compensator AllocationCompensator,
	importer PaymentImporter,
	allocationRepo ledger.AllocationRepository,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		runner:         runner,
		allocator:      allocator,
		compensator:    compensator,
		importer:       importer,
		allocationRepo: allocationRepo,
	}
}

// RegisterRoutes registers reconciliation routes on the API group
func (h *ReconciliationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	recon := rg.Group("/reconciliation")
	{
		recon.POST("/imports", h.ImportPayments)
		recon.POST("/runs", h.RunMatching)
		recon.POST("/manual-match", h.ManualMatch)
		recon.POST("/unmatch", h.Unmatch)
		recon.POST("/rematch", h.Rematch)
	}
	rg.GET("/payments/:id/allocations", h.ListPaymentAllocations)
}

// bindJSON binds the request body, responding with a validation error on failure.
// Returns false when the request has already been answered.
func (h *ReconciliationHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			middleware.HandleValidationError(c, err)
			return false
		}
		h.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}

// RunMatching triggers a reconciliation run for the tenant.
// The body is optional; when present it may scope the run to one import batch.
func (h *ReconciliationHandler) RunMatching(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	var batchID *uuid.UUID
	if c.Request.ContentLength > 0 {
		var req dto.RunMatchingRequest
		if !h.bindJSON(c, &req) {
			return
		}
		if req.BatchID != nil {
			id, parseErr := uuid.Parse(*req.BatchID)
			if parseErr != nil {
				h.BadRequest(c, "Invalid batch ID format")
				return
			}
			batchID = &id
		}
	}

	summary, err := h.runner.RunMatching(c.Request.Context(), tenantID, batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ImportPayments accepts a CSV payment file, either as a multipart upload
// under the "file" field or as the raw request body. A file with invalid
// rows imports nothing; the summary reports the row errors.
func (h *ReconciliationHandler) ImportPayments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	var file io.Reader = c.Request.Body
	if upload, _, formErr := c.Request.FormFile("file"); formErr == nil {
		defer upload.Close()
		file = upload
	}

	summary, err := h.importer.ImportPayments(c.Request.Context(), tenantID, file)
	if err != nil {
		if errors.Is(err, paymentfile.ErrEmptyFile) || errors.Is(err, paymentfile.ErrInvalidEncoding) ||
			errors.Is(err, paymentfile.ErrMissingHeader) || errors.Is(err, paymentfile.ErrNoDataRows) ||
			strings.Contains(err.Error(), "missing required columns") {
			h.BadRequest(c, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}

	if summary.Imported == 0 && summary.TotalErrors > 0 {
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeImportRejected,
			"Payment file rejected; no rows were imported", getRequestID(c))
		resp.Data = summary
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	h.Created(c, summary)
}

// ManualMatch applies a payment across one or more invoices
func (h *ReconciliationHandler) ManualMatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	var req dto.ManualMatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	lines := make([]reconciliation.ManualMatchLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		invoiceID, parseErr := uuid.Parse(line.InvoiceID)
		if parseErr != nil {
			h.BadRequest(c, "Invalid invoice ID format")
			return
		}
		lines = append(lines, reconciliation.ManualMatchLine{
			InvoiceID: invoiceID,
			Amount:    line.AmountApplied,
		})
	}

	if err := h.allocator.ManualMatch(c.Request.Context(), tenantID, paymentID, lines); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Unmatch reverses a single allocation
func (h *ReconciliationHandler) Unmatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	var req dto.UnmatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	allocationID, err := uuid.Parse(req.AllocationID)
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	if err := h.compensator.Unmatch(c.Request.Context(), tenantID, allocationID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Rematch moves an allocation to a different invoice
func (h *ReconciliationHandler) Rematch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	var req dto.RematchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	oldAllocationID, err := uuid.Parse(req.OldAllocationID)
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}
	newInvoiceID, err := uuid.Parse(req.NewInvoiceID)
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	if err := h.compensator.Rematch(c.Request.Context(), tenantID, oldAllocationID, newInvoiceID, req.AmountApplied); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListPaymentAllocations returns all allocations recorded for a payment
func (h *ReconciliationHandler) ListPaymentAllocations(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	allocations, err := h.allocationRepo.FindByPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewAllocationResponseList(allocations))
}
