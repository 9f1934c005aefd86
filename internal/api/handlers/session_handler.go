package handlers

import (
	"net/http"

	"github.com/fini-ai/paramount/internal/services"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	svc services.SessionService
}

func NewSessionHandler(svc services.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	Name        string   `json:"session_name" binding:"required"`
	RecordedIDs []string `json:"recorded_ids" binding:"required"`
	Accuracy    float64  `json:"accuracy"`
	SplitterID  string   `json:"splitter_id"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "invalid request body", err))
		return
	}

	row, err := h.svc.Create(c.Request.Context(), services.CreateSessionInput{
		Name:        req.Name,
		RecordedIDs: req.RecordedIDs,
		Accuracy:    req.Accuracy,
		SplitterID:  req.SplitterID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": row})
}

func (h *SessionHandler) List(c *gin.Context) {
	rows, cols, err := h.svc.List(c.Request.Context(), c.Query("splitter_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":       rows,
		"column_order": cols,
	})
}
