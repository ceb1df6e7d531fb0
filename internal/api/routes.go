package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/auth"
)

// SetupRoutes registers all API routes on the router.
func SetupRoutes(router *gin.Engine, handler *Handler, jwtManager *auth.JWTManager) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if handler.telemetry != nil {
		router.GET("/metrics", gin.WrapH(handler.telemetry.Handler()))
	}

	authGroup := router.Group("/auth")
	authGroup.POST("/token", handler.Login)

	protected := router.Group("/", auth.RequireUser(jwtManager))
	protected.GET("/me", handler.Me)

	classifierGroup := protected.Group("/classifier")
	classifierGroup.GET("/progress", handler.Progress)
	classifierGroup.GET("/results/:doc_id", handler.ClassificationResults)
	classifierGroup.GET("/stats", handler.Stats)
	classifierGroup.GET("/all", handler.AllClassifications)

	guidelinesGroup := protected.Group("/guidelines")
	guidelinesGroup.GET("", handler.ListGuidelines)
	guidelinesGroup.GET("/facets", handler.GuidelineFacets)

	indexGroup := protected.Group("/index")
	indexGroup.GET("/search", handler.SearchIndex)
	indexGroup.GET("/stats", handler.IndexStats)

	admin := protected.Group("/", auth.RequireAdmin())
	admin.POST("/classifier/classify", handler.Classify)
	admin.POST("/guidelines", handler.CreateGuideline)
	admin.POST("/index/documents", handler.IndexDocuments)

	crawlerGroup := admin.Group("/crawler")
	crawlerGroup.POST("/run", handler.RunCrawler)
	crawlerGroup.GET("/status", handler.CrawlerStatus)

	adminGroup := admin.Group("/admin")
	adminGroup.GET("/documents", handler.ListDocuments)
	adminGroup.DELETE("/documents/:doc_id", handler.DeleteDocument)
	adminGroup.GET("/users", handler.ListUsers)
	adminGroup.POST("/users", handler.CreateUser)
	adminGroup.PUT("/users/:id/admin", handler.SetUserAdmin)
}
