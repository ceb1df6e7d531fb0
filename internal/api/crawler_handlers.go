package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/crawler"
	"github.com/cybermed/agent/internal/logging"
)

// RunCrawler handles POST /crawler/run. The crawl runs in the background;
// the request returns as soon as the target is accepted.
func (h *Handler) RunCrawler(c *gin.Context) {
	var target crawler.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := currentUserID(c)
	h.logger.Info("crawl requested",
		logging.Int64("user_id", userID),
		logging.String("url", target.URL),
		logging.Int("depth", target.Depth),
		logging.String("client_ip", c.ClientIP()),
	)

	go func() {
		if _, err := h.crawler.Crawl(context.Background(), target); err != nil {
			h.logger.Error("background crawl failed",
				logging.String("url", target.URL),
				logging.Error(err),
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "crawler started",
		"target":  target,
		"status":  "processing",
	})
}

// CrawlerStatus handles GET /crawler/status: the most recently downloaded
// documents.
func (h *Handler) CrawlerStatus(c *gin.Context) {
	limit := intQuery(c, "limit", 10)

	docs, err := h.documents.ListRecent(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, docs)
}
