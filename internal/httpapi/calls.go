package httpapi

import (
	"net/http"

	"callos/internal/calls"
	"callos/internal/outcomes"

	"github.com/gin-gonic/gin"
)

func (h Handlers) CreateCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createCallRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Calls.Create(c.Request.Context(), p, calls.CreateInput{
		ProspectID:  req.ProspectID,
		AgentID:     req.AgentID,
		Mode:        calls.Mode(req.Mode),
		Language:    req.Language,
		ScheduledAt: req.ScheduledAt,
		ZoomLink:    req.ZoomLink,
		Notes:       req.Notes,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) ListCalls(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}
	out, err := h.Calls.List(c.Request.Context(), p.OrganizationID, calls.ListFilter{
		Status:  calls.Status(c.Query("status")),
		AgentID: c.Query("agentId"),
		From:    from,
		To:      to,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) GetCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Calls.Get(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UpdateCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateCallRequest
	if !bind(c, &req) {
		return
	}
	in := calls.UpdateInput{
		ProspectID:  req.ProspectID,
		Language:    req.Language,
		ScheduledAt: req.ScheduledAt,
		ZoomLink:    req.ZoomLink,
		Notes:       req.Notes,
	}
	if req.Mode != nil {
		m := calls.Mode(*req.Mode)
		in.Mode = &m
	}
	out, err := h.Calls.Update(c.Request.Context(), p, c.Param("id"), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Checklist ---

func (h Handlers) GetChecklist(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Checklist.GetChecklist(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SetChecklistItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req checklistItemRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Checklist.SetItem(c.Request.Context(), p, c.Param("id"), c.Param("item"), *req.Checked)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ValidateChecklist(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req overrideRequest
	if !bindOptional(c, &req) {
		return
	}
	out, err := h.Checklist.ValidateChecklist(c.Request.Context(), p, c.Param("id"), req.OverrideReason)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Lifecycle ---

func (h Handlers) StartCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req overrideRequest
	if !bindOptional(c, &req) {
		return
	}
	call, decision, err := h.Engine.StartCall(c.Request.Context(), p, c.Param("id"), req.OverrideReason)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": call, "validation": decision.Validation})
}

func (h Handlers) CancelCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req cancelRequest
	if !bindOptional(c, &req) {
		return
	}
	out, err := h.Engine.CancelCall(c.Request.Context(), p, c.Param("id"), req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CanCompleteCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Engine.CanCompleteCall(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CompleteCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req completeCallRequest
	if !bind(c, &req) {
		return
	}
	call, outcome, err := h.Engine.CompleteCall(c.Request.Context(), p, c.Param("id"), outcomes.Input{
		OutcomeType:            outcomes.Type(req.OutcomeType),
		DisqualificationReason: req.DisqualificationReason,
		Notes:                  req.Notes,
		FollowUpAt:             req.FollowUpAt,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": call, "outcome": outcome})
}

func (h Handlers) GetOutcome(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Outcomes.GetForCall(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
