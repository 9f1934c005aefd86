package routes

import (
	"github.com/fini-ai/paramount/internal/api/handlers"
	"github.com/fini-ai/paramount/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Recording  *handlers.RecordingHandler
	Replay     *handlers.ReplayHandler
	Similarity *handlers.SimilarityHandler
	Session    *handlers.SessionHandler
	Config     *handlers.ConfigHandler

	// JWTSecret guards the data routes when set.
	JWTSecret string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(cors())

	r.GET("/health", handlers.Health)
	r.GET("/config", d.Config.Get)

	// Data routes (bearer token when configured)
	auth := r.Group("/")
	auth.Use(middleware.BearerAuth(d.JWTSecret))

	auth.POST("/latest", d.Recording.Latest)
	auth.POST("/submit_evaluations", d.Recording.SubmitEvaluations)
	auth.POST("/infer", d.Replay.Infer)
	auth.POST("/similarity", d.Similarity.Similarity)
	auth.POST("/sessions", d.Session.Create)
	auth.GET("/sessions", d.Session.List)
}

// The curation UI is served from another origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "OPTIONS, HEAD, GET, POST, DELETE, PUT")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
