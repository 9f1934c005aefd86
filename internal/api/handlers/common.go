package handlers

import (
	"errors"
	"net/http"

	"github.com/fini-ai/paramount/internal/utils"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, gin.H{"error": APIError{
			Code:    ae.Code,
			Message: ae.Message,
		}})
		return
	}

	c.JSON(status, gin.H{"error": APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	}})
}
