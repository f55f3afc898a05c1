package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"callos/internal/apperr"
	"callos/internal/audit"
	"callos/internal/auth"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/reporting"
	"callos/pkg/logger"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func itemDefs(in []itemDefDTO) []milestones.ItemDef {
	out := make([]milestones.ItemDef, 0, len(in))
	for _, d := range in {
		out = append(out, milestones.ItemDef{ID: d.ID, Text: d.Text, Required: d.Required})
	}
	return out
}

func (h Handlers) UpsertMilestones(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req upsertMilestonesRequest
	if !bind(c, &req) {
		return
	}
	defs := make([]milestones.DefinitionInput, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		defs = append(defs, milestones.DefinitionInput{
			Number:            m.Number,
			OrderIndex:        m.OrderIndex,
			Title:             m.Title,
			Objective:         m.Objective,
			DurationMinutes:   m.DurationMinutes,
			RequiredQuestions: itemDefs(m.RequiredQuestions),
			Confirmations:     itemDefs(m.Confirmations),
		})
	}
	out, err := h.Milestones.UpsertDefinitions(c.Request.Context(), p.OrganizationID, defs)
	if err != nil {
		RespondError(c, err)
		return
	}
	h.recordAdmin(c, p, fmt.Sprintf("upserted %d milestone definitions", len(out)))
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) UpsertObjections(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req upsertObjectionsRequest
	if !bind(c, &req) {
		return
	}
	defs := make([]objections.DefinitionInput, 0, len(req.Objections))
	for _, o := range req.Objections {
		qs := make([]objections.Question, 0, len(o.Questions))
		for _, q := range o.Questions {
			qs = append(qs, objections.Question{ID: q.ID, Text: q.Text})
		}
		var allowed []objections.Outcome
		for _, a := range o.AllowedOutcomes {
			allowed = append(allowed, objections.Outcome(a))
		}
		defs = append(defs, objections.DefinitionInput{
			Type:            objections.Type(o.Type),
			Title:           o.Title,
			Questions:       qs,
			AllowedOutcomes: allowed,
		})
	}
	out, err := h.Objections.UpsertDefinitions(c.Request.Context(), p.OrganizationID, defs)
	if err != nil {
		RespondError(c, err)
		return
	}
	h.recordAdmin(c, p, fmt.Sprintf("upserted %d objection definitions", len(out)))
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) ListAuditEvents(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.Audit.List(c.Request.Context(), p.OrganizationID, audit.Filter{
		Type:   audit.EventType(c.Query("type")),
		CallID: c.Query("callId"),
		Limit:  limit,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// recordAdmin audits a playbook change. The change itself already succeeded,
// so a failed audit write is logged rather than returned.
func (h Handlers) recordAdmin(c *gin.Context, p auth.Principal, msg string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(c.Request.Context(), p, audit.EventTypeAdminAction, "", "", msg, nil); err != nil {
		logger.FromGin(c).Error("admin audit failed", "err", err)
	}
}

// --- Analytics ---

func (h Handlers) reportRequest(c *gin.Context) (reporting.Request, bool) {
	p, ok := principal(c)
	if !ok {
		return reporting.Request{}, false
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return reporting.Request{}, false
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return reporting.Request{}, false
	}
	req := reporting.Request{OrganizationID: p.OrganizationID, AgentID: c.Query("agentId")}
	req.Range.To = h.now().UTC()
	if to != nil {
		req.Range.To = *to
	}
	req.Range.From = req.Range.To.Add(-30 * 24 * time.Hour)
	if from != nil {
		req.Range.From = *from
	}
	if !req.Range.To.After(req.Range.From) {
		RespondError(c, apperr.Validation("from must be before to"))
		return reporting.Request{}, false
	}
	return req, true
}

func (h Handlers) Dashboard(c *gin.Context) {
	req, ok := h.reportRequest(c)
	if !ok {
		return
	}
	out, err := h.Reporting.Dashboard(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ExportDashboard(c *gin.Context) {
	req, ok := h.reportRequest(c)
	if !ok {
		return
	}
	name, body, err := h.Reporting.ExportXLSX(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, body)
}
