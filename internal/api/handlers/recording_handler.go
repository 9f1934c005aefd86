package handlers

import (
	"net/http"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/services"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/gin-gonic/gin"
)

type RecordingHandler struct {
	svc services.RecordingService
}

func NewRecordingHandler(svc services.RecordingService) *RecordingHandler {
	return &RecordingHandler{svc: svc}
}

type LatestRequest struct {
	CompanyUUID       string   `json:"company_uuid"`
	EvaluatedRowsOnly bool     `json:"evaluated_rows_only"`
	RecordingIDs      []string `json:"recording_ids"`
}

func (h *RecordingHandler) Latest(c *gin.Context) {
	var req LatestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RecordingHandler.Latest", "invalid request body", err))
		return
	}

	res, err := h.svc.Latest(c.Request.Context(), services.LatestQuery{
		Identifier:    req.CompanyUUID,
		EvaluatedOnly: req.EvaluatedRowsOnly,
		RecordingIDs:  req.RecordingIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":       res.Records,
		"column_order": res.ColumnOrder,
	})
}

type SubmitEvaluationsRequest struct {
	UpdatedRecords []paramount.Row `json:"updated_records" binding:"required"`
}

func (h *RecordingHandler) SubmitEvaluations(c *gin.Context) {
	var req SubmitEvaluationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RecordingHandler.SubmitEvaluations", "invalid request body", err))
		return
	}

	if err := h.svc.SubmitEvaluations(c.Request.Context(), req.UpdatedRecords); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
