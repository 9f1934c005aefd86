package paramount

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// InvokeRequest is the payload of the per-function remote invocation
// endpoint: positional arguments keyed by parameter name plus keyword
// arguments. Both are merged into a single call.
type InvokeRequest struct {
	Args   map[string]any `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// RegisterFunctionRoutes mounts the remote invocation endpoint for every
// recorded function: POST /paramount_functions/:name. This is the hook the
// replay engine calls to re-invoke a recorded function out of process.
func (r *Recorder) RegisterFunctionRoutes(router gin.IRouter) {
	router.POST("/paramount_functions/:name", r.invokeFunction)
}

func (r *Recorder) invokeFunction(c *gin.Context) {
	name := c.Param("name")
	fn, ok := r.function(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown function: " + name})
		return
	}

	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	// Positional values arrive keyed by parameter name; reorder them by
	// the declared parameter list. Unknown names fall through as kwargs.
	args := make([]any, 0, len(fn.Params))
	kwargs := make(map[string]any, len(req.Kwargs))
	for k, v := range req.Kwargs {
		kwargs[k] = v
	}
	byName := make(map[string]any, len(req.Args))
	for k, v := range req.Args {
		byName[k] = v
	}
	for _, p := range fn.Params {
		v, present := byName[p]
		if !present {
			break
		}
		args = append(args, v)
		delete(byName, p)
	}
	for k, v := range byName {
		kwargs[k] = v
	}

	result, err := fn.Call(c.Request.Context(), args, kwargs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outputs, err := SerializeResult(result)
	if err != nil {
		if errors.Is(err, ErrStreamingResult) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "streaming results cannot be replayed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The replay engine consumes the serialized result tuple directly.
	c.JSON(http.StatusOK, outputs)
}
