package httpapi

import (
	"net/http"

	"callos/internal/objections"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListObjections(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Objections.ListDefinitions(c.Request.Context(), p.OrganizationID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) ListCallObjections(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Objections.ListForCall(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) CreateObjectionResponse(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createObjectionResponseRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.Objections.CreateResponse(c.Request.Context(), p, c.Param("id"), objections.CreateInput{
		ObjectionID:       req.ObjectionID,
		MilestoneID:       req.MilestoneID,
		Outcome:           objections.Outcome(req.Outcome),
		DiagnosticAnswers: objections.Answers(req.DiagnosticAnswers),
		Notes:             req.Notes,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) UpdateObjectionResponse(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateObjectionResponseRequest
	if !bind(c, &req) {
		return
	}
	in := objections.UpdateInput{
		Notes:             req.Notes,
		DiagnosticAnswers: objections.Answers(req.DiagnosticAnswers),
	}
	if req.Outcome != nil {
		o := objections.Outcome(*req.Outcome)
		in.Outcome = &o
	}
	out, err := h.Objections.UpdateResponse(c.Request.Context(), p, c.Param("id"), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) NextObjectionQuestion(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req nextQuestionRequest
	if !bindOptional(c, &req) {
		return
	}
	out, err := h.Objections.NextQuestion(c.Request.Context(), p.OrganizationID, c.Param("oid"), objections.Answers(req.Answers))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
