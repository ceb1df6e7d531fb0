package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/logging"
)

// IndexDocumentsRequest selects documents to push into the search index. An
// empty id list indexes every document in the catalog.
type IndexDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// IndexDocuments handles POST /index/documents.
func (h *Handler) IndexDocuments(c *gin.Context) {
	var req IndexDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	docs, err := h.documents.GetManyByDocIDs(ctx, req.DocumentIDs)
	if len(req.DocumentIDs) == 0 {
		// Empty selection means the whole catalog, not a recent page.
		docs, err = h.documents.ListAll(ctx)
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	indexed, err := h.indexer.IndexDocuments(ctx, docs)
	if err != nil {
		h.logger.Error("indexing failed", logging.Error(err))
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	if h.telemetry != nil {
		h.telemetry.Metrics.DocumentsIndexed.Add(float64(indexed))
	}
	c.JSON(http.StatusOK, gin.H{"indexed": indexed})
}

// SearchIndex handles GET /index/search?q=...&top_k=N.
func (h *Handler) SearchIndex(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		errorResponse(c, http.StatusBadRequest, "missing query parameter q")
		return
	}
	topK := intQuery(c, "top_k", 10)

	hits, err := h.indexer.Search(c.Request.Context(), query, topK)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	if h.telemetry != nil {
		h.telemetry.Metrics.IndexSearches.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "hits": hits})
}

// IndexStats handles GET /index/stats.
func (h *Handler) IndexStats(c *gin.Context) {
	stats, err := h.indexer.Stats(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}
