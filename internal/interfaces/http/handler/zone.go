package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zoneledger/backend/internal/application/ledger"
	domain "github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/interfaces/http/dto"
)

// ZoneHandler handles zone health and control endpoints
type ZoneHandler struct {
	BaseHandler
	zones     *ledger.ZoneService
	transfers *ledger.TransferService
}

// NewZoneHandler creates a new ZoneHandler
func NewZoneHandler(zones *ledger.ZoneService, transfers *ledger.TransferService) *ZoneHandler {
	return &ZoneHandler{
		zones:     zones,
		transfers: transfers,
	}
}

// RegisterRoutes registers zone routes
func (h *ZoneHandler) RegisterRoutes(rg *gin.RouterGroup) {
	zones := rg.Group("/zones")
	{
		zones.GET("", h.ListZones)
		zones.GET("/:id", h.GetZone)
		zones.POST("/:id/status", h.SetZoneStatus)
		zones.GET("/:id/controls", h.GetZoneControls)
		zones.PUT("/:id/controls", h.SetZoneControls)
		zones.GET("/:id/spool", h.GetSpoolStats)
		zones.POST("/:id/spool/replay", h.ReplaySpool)
		zones.GET("/:id/audit", h.ListAudit)
	}
}

// ListZones returns all zones with their current status
func (h *ZoneHandler) ListZones(c *gin.Context) {
	zones, err := h.zones.ListZones(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]ZoneResponse, 0, len(zones))
	for i := range zones {
		resp = append(resp, toZoneResponse(&zones[i]))
	}
	h.Success(c, resp)
}

// GetZone returns one zone
func (h *ZoneHandler) GetZone(c *gin.Context) {
	zone, err := h.zones.GetZone(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toZoneResponse(zone))
}

// SetZoneStatus changes a zone's operational status. Marking a zone DOWN
// opens a critical incident and is recorded in the audit log.
func (h *ZoneHandler) SetZoneStatus(c *gin.Context) {
	var body SetZoneStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
		return
	}

	zone, err := h.zones.SetZoneStatus(
		c.Request.Context(),
		c.Param("id"),
		domain.ZoneStatus(body.Status),
		body.Actor,
		body.Reason,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toZoneResponse(zone))
}

// GetZoneControls returns the operator controls for a zone
func (h *ZoneHandler) GetZoneControls(c *gin.Context) {
	controls, err := h.zones.GetZoneControls(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toControlsResponse(controls))
}

// SetZoneControls replaces the operator controls for a zone
func (h *ZoneHandler) SetZoneControls(c *gin.Context) {
	var body ZoneControlsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
		return
	}

	controls := &domain.ZoneControls{
		ZoneID:            c.Param("id"),
		WritesBlocked:     body.WritesBlocked,
		CrossZoneThrottle: body.CrossZoneThrottle,
		SpoolEnabled:      body.SpoolEnabled,
	}

	updated, err := h.zones.SetZoneControls(c.Request.Context(), controls, body.Actor, body.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toControlsResponse(updated))
}

// GetSpoolStats returns the spool backlog for a zone
func (h *ZoneHandler) GetSpoolStats(c *gin.Context) {
	stats, err := h.zones.GetSpoolStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// ReplaySpool drains pending spooled transfers for a recovered zone
func (h *ZoneHandler) ReplaySpool(c *gin.Context) {
	var body ReplaySpoolRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.transfers.ReplaySpool(
		c.Request.Context(),
		c.Param("id"),
		body.Limit,
		body.Actor,
		body.Reason,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListAudit returns audit entries for a zone, newest first
func (h *ZoneHandler) ListAudit(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid list parameters: "+err.Error())
		return
	}

	entries, err := h.zones.ListAudit(c.Request.Context(), c.Param("id"), listReq.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, toAuditResponse(&entries[i]))
	}
	h.SuccessWithMeta(c, resp, listReq.Limit, len(resp))
}
