package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
)

// ListGuidelines handles GET /guidelines with optional category, standard,
// region, and q filters.
func (h *Handler) ListGuidelines(c *gin.Context) {
	filter := domain.GuidelineFilter{
		Category: c.Query("category"),
		Standard: c.Query("standard"),
		Region:   c.Query("region"),
		Query:    c.Query("q"),
		Offset:   intQuery(c, "offset", 0),
		Limit:    intQuery(c, "limit", defaultPageSize),
	}

	guidelines, err := h.guidelines.List(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, guidelines)
}

// GuidelineFacets handles GET /guidelines/facets: the distinct categories,
// standards, and regions for filter dropdowns.
func (h *Handler) GuidelineFacets(c *gin.Context) {
	ctx := c.Request.Context()

	categories, err := h.guidelines.Categories(ctx)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	standards, err := h.guidelines.Standards(ctx)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	regions, err := h.guidelines.Regions(ctx)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"standards":  standards,
		"regions":    regions,
	})
}

// CreateGuidelineRequest carries a new guideline with its keywords.
type CreateGuidelineRequest struct {
	GuidelineID string   `json:"guideline_id" binding:"required"`
	Category    string   `json:"category" binding:"required"`
	Standard    string   `json:"standard" binding:"required"`
	ControlText string   `json:"control_text" binding:"required"`
	SourceURL   string   `json:"source_url"`
	Region      string   `json:"region"`
	Keywords    []string `json:"keywords"`
}

// CreateGuideline handles POST /guidelines (admin only).
func (h *Handler) CreateGuideline(c *gin.Context) {
	var req CreateGuidelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	guideline := &domain.Guideline{
		GuidelineID: req.GuidelineID,
		Category:    req.Category,
		Standard:    req.Standard,
		ControlText: req.ControlText,
		SourceURL:   req.SourceURL,
		Region:      req.Region,
		Keywords:    req.Keywords,
	}
	if err := h.guidelines.Create(c.Request.Context(), guideline); err != nil {
		errorResponse(c, http.StatusConflict, "guideline already exists")
		return
	}

	h.logger.Info("guideline created",
		logging.String("guideline_id", guideline.GuidelineID),
		logging.String("standard", guideline.Standard),
	)
	c.JSON(http.StatusCreated, guideline)
}
