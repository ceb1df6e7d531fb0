package api

import "github.com/gin-gonic/gin"

// errorResponse is the uniform error body.
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// progressResponse is the wire shape of a job snapshot. current_count and
// total_count map to the store's completed and target counts.
type progressResponse struct {
	Status       string `json:"status"`
	CurrentCount int    `json:"current_count"`
	TotalCount   int    `json:"total_count"`
	Error        string `json:"error,omitempty"`
}

// classifyResponse is the acceptance body for a classification start.
type classifyResponse struct {
	Status           string   `json:"status"`
	CurrentCount     int      `json:"current_count"`
	TotalCount       int      `json:"total_count"`
	SkippedDocuments []string `json:"skipped_documents,omitempty"`
	Message          string   `json:"message,omitempty"`
}
