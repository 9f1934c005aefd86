package handlers

import (
	"net/http"

	"github.com/fini-ai/paramount/config"
	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Get serves the UI-facing column display configuration.
func (h *ConfigHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"meta_cols":   emptyIfNil(h.cfg.MetaCols),
		"input_cols":  emptyIfNil(h.cfg.InputCols),
		"output_cols": emptyIfNil(h.cfg.OutputCols),
		"split_by_id": h.cfg.SplitByID,
	})
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
