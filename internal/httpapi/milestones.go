package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) MilestoneProgress(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Milestones.Progress(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// NextMilestone answers with {"milestone": null} once every milestone is resolved.
func (h Handlers) NextMilestone(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	m, err := h.Milestones.GetNextMilestone(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

func (h Handlers) CanStartMilestone(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Engine.CanEnterMilestone(c.Request.Context(), p.OrganizationID, c.Param("id"), c.Param("mid"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) StartMilestone(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req overrideRequest
	if !bindOptional(c, &req) {
		return
	}
	out, err := h.Milestones.StartMilestoneResponse(c.Request.Context(), p, c.Param("id"), c.Param("mid"), req.OverrideReason)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SkipMilestoneForCall(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Milestones.SkipMilestoneForCall(c.Request.Context(), p, c.Param("id"), c.Param("mid"), req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Milestone responses ---

func (h Handlers) CheckMilestoneItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req checkItemRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Milestones.CheckItem(c.Request.Context(), p, c.Param("rid"), c.Param("item"), *req.Value)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UpdateMilestoneResponse(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateResponseRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Milestones.UpdateNotes(c.Request.Context(), p, c.Param("rid"), *req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CompleteMilestone(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Milestones.CompleteMilestone(c.Request.Context(), p, c.Param("rid"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SkipMilestone(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Milestones.SkipMilestone(c.Request.Context(), p, c.Param("rid"), req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
