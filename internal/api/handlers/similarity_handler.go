package handlers

import (
	"net/http"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/services"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/gin-gonic/gin"
)

type SimilarityHandler struct {
	svc services.SimilarityService
}

func NewSimilarityHandler(svc services.SimilarityService) *SimilarityHandler {
	return &SimilarityHandler{svc: svc}
}

type SimilarityRequest struct {
	OutputColToBeTested string          `json:"output_col_to_be_tested" binding:"required"`
	Records             []paramount.Row `json:"records" binding:"required"`
}

func (h *SimilarityHandler) Similarity(c *gin.Context) {
	var req SimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SimilarityHandler.Similarity", "invalid request body", err))
		return
	}

	scores, err := h.svc.Score(c.Request.Context(), req.Records, req.OutputColToBeTested)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": scores})
}
