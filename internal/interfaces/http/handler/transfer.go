package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/application/ledger"
	domain "github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/interfaces/http/dto"
)

// TransferHandler handles transfer submission and lookup endpoints
type TransferHandler struct {
	BaseHandler
	transfers *ledger.TransferService
	queries   *ledger.QueryService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transfers *ledger.TransferService, queries *ledger.QueryService) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		queries:   queries,
	}
}

// RegisterRoutes registers transfer routes
func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup) {
	transfers := rg.Group("/transfers")
	{
		transfers.POST("", h.CreateTransfer)
		transfers.GET("", h.ListTransfers)
		transfers.GET("/:id", h.GetTransfer)
	}
}

// CreateTransfer submits a transfer through the zone gate. Replays of an
// already-posted request return the stored transaction with outcome REPLAYED;
// gated requests that were parked come back as 202 with outcome SPOOLED.
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var body TransferRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
		return
	}

	req := domain.TransferRequest{
		RequestID:   body.RequestID,
		FromAccount: body.FromAccount,
		ToAccount:   body.ToAccount,
		AmountUnits: body.AmountUnits,
		ZoneID:      body.ZoneID,
		Metadata:    body.Metadata,
	}

	result, err := h.transfers.CreateTransfer(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Outcome == ledger.OutcomeSpooled {
		h.Accepted(c, toOutcomeResponse(result))
		return
	}
	h.Success(c, toOutcomeResponse(result))
}

// GetTransfer returns a posted transfer with its postings
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "transfer id must be a UUID")
		return
	}

	transfer, err := h.queries.GetTransfer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTransferResponse(transfer))
}

// ListTransfers returns recently posted transfers, newest first
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid list parameters: "+err.Error())
		return
	}

	transfers, err := h.queries.ListTransfers(c.Request.Context(), listReq.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]*TransferResponse, 0, len(transfers))
	for i := range transfers {
		resp = append(resp, toTransferResponse(&transfers[i]))
	}
	h.SuccessWithMeta(c, resp, listReq.Limit, len(resp))
}
