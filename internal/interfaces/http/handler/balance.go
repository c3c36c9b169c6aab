package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zoneledger/backend/internal/application/ledger"
	"github.com/zoneledger/backend/internal/interfaces/http/dto"
)

// BalanceHandler handles balance projection endpoints
type BalanceHandler struct {
	BaseHandler
	queries *ledger.QueryService
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(queries *ledger.QueryService) *BalanceHandler {
	return &BalanceHandler{queries: queries}
}

// RegisterRoutes registers balance routes
func (h *BalanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	balances := rg.Group("/balances")
	{
		balances.GET("", h.ListBalances)
		balances.GET("/:account_id", h.GetBalance)
	}
}

// GetBalance returns the balance projection for one account
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	balance, err := h.queries.GetBalance(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBalanceResponse(balance))
}

// ListBalances returns account balances
func (h *BalanceHandler) ListBalances(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid list parameters: "+err.Error())
		return
	}

	balances, err := h.queries.ListBalances(c.Request.Context(), listReq.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]BalanceResponse, 0, len(balances))
	for i := range balances {
		resp = append(resp, toBalanceResponse(&balances[i]))
	}
	h.SuccessWithMeta(c, resp, listReq.Limit, len(resp))
}
