package handlers

import (
	"net/http"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/services"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/gin-gonic/gin"
)

type ReplayHandler struct {
	svc services.ReplayService
}

func NewReplayHandler(svc services.ReplayService) *ReplayHandler {
	return &ReplayHandler{svc: svc}
}

type InferRequest struct {
	Record     paramount.Row `json:"record" binding:"required"`
	OutputCols []string      `json:"output_cols" binding:"required"`
}

func (h *ReplayHandler) Infer(c *gin.Context) {
	var req InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ReplayHandler.Infer", "invalid request body", err))
		return
	}

	res, err := h.svc.Infer(c.Request.Context(), req.Record, req.OutputCols)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
