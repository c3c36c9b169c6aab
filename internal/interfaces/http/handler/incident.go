package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zoneledger/backend/internal/application/ledger"
	domain "github.com/zoneledger/backend/internal/domain/ledger"
	"github.com/zoneledger/backend/internal/interfaces/http/dto"
)

// IncidentHandler handles incident listing and operator actions
type IncidentHandler struct {
	BaseHandler
	incidents *ledger.IncidentService
}

// NewIncidentHandler creates a new IncidentHandler
func NewIncidentHandler(incidents *ledger.IncidentService) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

// RegisterRoutes registers incident routes
func (h *IncidentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	incidents := rg.Group("/incidents")
	{
		incidents.GET("", h.ListIncidents)
		incidents.GET("/:id", h.GetIncident)
		incidents.POST("/:id/actions", h.ApplyAction)
	}
}

// ListIncidents returns recent incidents, optionally filtered by zone
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid list parameters: "+err.Error())
		return
	}

	var (
		incidents []domain.Incident
		err       error
	)
	if zoneID := c.Query("zone_id"); zoneID != "" {
		incidents, err = h.incidents.ListByZone(c.Request.Context(), zoneID, listReq.Limit)
	} else {
		incidents, err = h.incidents.ListRecent(c.Request.Context(), listReq.Limit)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]IncidentResponse, 0, len(incidents))
	for i := range incidents {
		resp = append(resp, toIncidentResponse(&incidents[i]))
	}
	h.SuccessWithMeta(c, resp, listReq.Limit, len(resp))
}

// GetIncident returns one incident
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "incident id must be a UUID")
		return
	}

	incident, err := h.incidents.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toIncidentResponse(incident))
}

// ApplyAction applies an operator action (ACK, ASSIGN, RESOLVE) to an incident
func (h *IncidentHandler) ApplyAction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "incident id must be a UUID")
		return
	}

	var body IncidentActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
		return
	}

	incident, err := h.incidents.ApplyAction(c.Request.Context(), id, domain.IncidentAction{
		Action:   body.Action,
		Assignee: body.Assignee,
		Note:     body.Note,
		Actor:    body.Actor,
		Reason:   body.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toIncidentResponse(incident))
}
