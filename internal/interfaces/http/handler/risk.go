package handler

import (
	"context"

	riskapp "github.com/arflow/backend/internal/application/risk"
	"github.com/arflow/backend/internal/domain/ledger"
	"github.com/arflow/backend/internal/domain/risk"
	"github.com/arflow/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountScorer computes risk scores. Implemented by the scoring service.
type AccountScorer interface {
	ScoreAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*risk.Assessment, error)
	ScoreAll(ctx context.Context, tenantID uuid.UUID) (*riskapp.ScoreRunSummary, error)
}

// RiskHandler exposes the risk scoring operations over HTTP
type RiskHandler struct {
	BaseHandler
	scorer        AccountScorer
	aggregateRepo ledger.AccountAggregateRepository
}

// NewRiskHandler creates a new RiskHandler
func NewRiskHandler(scorer AccountScorer, aggregateRepo ledger.AccountAggregateRepository) *RiskHandler {
	return &RiskHandler{
		scorer:        scorer,
		aggregateRepo: aggregateRepo,
	}
}

// RegisterRoutes registers risk routes on the API group
func (h *RiskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/risk/scores", h.Score)
	rg.GET("/accounts/:id/aggregate", h.GetAccountAggregate)
}

// Score recomputes the risk score for one account, or for every account of
// the tenant when "all" is set. Exactly one of account_id and all is accepted.
func (h *RiskHandler) Score(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	var req dto.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	if req.All == (req.AccountID != nil) {
		h.BadRequest(c, "Exactly one of account_id and all must be provided")
		return
	}

	if req.All {
		summary, err := h.scorer.ScoreAll(c.Request.Context(), tenantID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, summary)
		return
	}

	accountID, err := uuid.Parse(*req.AccountID)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	assessment, err := h.scorer.ScoreAccount(c.Request.Context(), tenantID, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, assessment)
}

// GetAccountAggregate returns the persisted balance and risk aggregate for
// one account
func (h *RiskHandler) GetAccountAggregate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Tenant identification required")
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	aggregate, err := h.aggregateRepo.FindByAccount(c.Request.Context(), tenantID, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if aggregate == nil {
		h.NotFound(c, "Account aggregate not found")
		return
	}

	h.Success(c, aggregate)
}
