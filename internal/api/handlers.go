package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cybermed/agent/internal/auth"
	"github.com/cybermed/agent/internal/crawler"
	"github.com/cybermed/agent/internal/database"
	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/indexer"
	"github.com/cybermed/agent/internal/jobs"
	"github.com/cybermed/agent/internal/logging"
	"github.com/cybermed/agent/internal/telemetry"
)

// Handler handles HTTP requests for the cybermed API.
type Handler struct {
	store      *jobs.Store
	worker     *jobs.Worker
	documents  *database.DocumentsRepository
	results    *database.ClassificationsRepository
	guidelines *database.GuidelinesRepository
	users      *database.UsersRepository
	crawler    *crawler.Crawler
	indexer    *indexer.Indexer
	jwt        *auth.JWTManager
	telemetry  *telemetry.Provider
	logger     logging.Logger
}

// HandlerConfig bundles the handler's collaborators.
type HandlerConfig struct {
	Store      *jobs.Store
	Worker     *jobs.Worker
	Documents  *database.DocumentsRepository
	Results    *database.ClassificationsRepository
	Guidelines *database.GuidelinesRepository
	Users      *database.UsersRepository
	Crawler    *crawler.Crawler
	Indexer    *indexer.Indexer
	JWT        *auth.JWTManager
	Telemetry  *telemetry.Provider
	Logger     logging.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		store:      cfg.Store,
		worker:     cfg.Worker,
		documents:  cfg.Documents,
		results:    cfg.Results,
		guidelines: cfg.Guidelines,
		users:      cfg.Users,
		crawler:    cfg.Crawler,
		indexer:    cfg.Indexer,
		jwt:        cfg.JWT,
		telemetry:  cfg.Telemetry,
		logger:     cfg.Logger,
	}
}

// ClassifyRequest selects documents for a classification run. Explicit ids
// and the all_documents flag are mutually exclusive; all_documents resolves
// to every document without a stored result.
type ClassifyRequest struct {
	AllDocuments bool     `json:"all_documents"`
	DocumentIDs  []string `json:"document_ids"`
}

// Classify handles POST /classifier/classify. It performs the atomic job
// start and hands the selected documents to the background worker; it never
// blocks for the duration of classification.
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	// Validation precedes any job state mutation.
	if !req.AllDocuments && len(req.DocumentIDs) == 0 {
		errorResponse(c, http.StatusBadRequest, "no documents selected for classification")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		errorResponse(c, http.StatusUnauthorized, "invalid token subject")
		return
	}

	ctx := c.Request.Context()
	docs, skipped, err := h.resolveDocuments(ctx, req)
	if err != nil {
		h.logger.Error("resolve documents for classification failed", logging.Error(err))
		errorResponse(c, http.StatusInternalServerError, "failed to resolve documents")
		return
	}

	if err := h.store.TryStart(len(docs)); err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			if h.telemetry != nil {
				h.telemetry.Metrics.JobStartsRejected.Inc()
			}
			errorResponse(c, http.StatusConflict, err.Error())
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("classification job accepted",
		logging.Int64("user_id", userID),
		logging.Int("target_count", len(docs)),
		logging.Int("skipped", len(skipped)),
	)

	// The job outlives the request; detach it from the request context.
	go h.worker.Run(context.Background(), docs, userID)

	resp := classifyResponse{
		Status:           string(jobs.StatusInitializing),
		CurrentCount:     0,
		TotalCount:       len(docs),
		SkippedDocuments: skipped,
	}
	if len(skipped) > 0 {
		resp.Message = fmt.Sprintf("skipped already classified documents: %s", strings.Join(skipped, ", "))
	}
	c.JSON(http.StatusAccepted, resp)
}

// resolveDocuments turns a classify request into the concrete document set,
// returning titles of explicitly selected documents skipped because they
// already have a result. Unknown ids are skipped silently.
func (h *Handler) resolveDocuments(ctx context.Context, req ClassifyRequest) ([]*domain.Document, []string, error) {
	if req.AllDocuments {
		docs, err := h.documents.ListUnclassified(ctx)
		return docs, nil, err
	}

	candidates, err := h.documents.GetManyByDocIDs(ctx, req.DocumentIDs)
	if err != nil {
		return nil, nil, err
	}

	var docs []*domain.Document
	var skipped []string
	for _, doc := range candidates {
		_, err := h.results.LatestForDocument(ctx, doc.ID)
		switch {
		case err == nil:
			skipped = append(skipped, doc.Title)
		case errors.Is(err, database.ErrNotFound):
			docs = append(docs, doc)
		default:
			return nil, nil, err
		}
	}
	return docs, skipped, nil
}

// Progress handles GET /classifier/progress. Safe at any time, including
// when no job has ever run.
func (h *Handler) Progress(c *gin.Context) {
	snapshot := h.store.Snapshot()
	c.JSON(http.StatusOK, progressResponse{
		Status:       string(snapshot.Status),
		CurrentCount: snapshot.CompletedCount,
		TotalCount:   snapshot.TargetCount,
		Error:        snapshot.LastError,
	})
}

// ClassificationResults handles GET /classifier/results/:doc_id.
func (h *Handler) ClassificationResults(c *gin.Context) {
	docID := c.Param("doc_id")
	ctx := c.Request.Context()

	doc, err := h.documents.GetByDocID(ctx, docID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "document not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.results.LatestForDocument(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"doc_id":  docID,
				"title":   doc.Title,
				"status":  "not_classified",
				"message": "this document has not been classified yet",
			})
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	var output domain.ClassificationOutput
	if err := json.Unmarshal([]byte(result.ResultJSON), &output); err != nil {
		h.logger.Error("stored classification result not parseable",
			logging.String("doc_id", docID),
			logging.Error(err),
		)
		errorResponse(c, http.StatusInternalServerError, "stored classification result is corrupt")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doc_id":     docID,
		"title":      doc.Title,
		"status":     "classified",
		"created_at": result.CreatedAt,
		"result":     output,
	})
}

// Stats handles GET /classifier/stats: catalog totals plus the distribution
// of primary categories over the newest result per document.
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.documents.Count(ctx)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	classified, err := h.results.CountClassified(ctx)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	nistStats := make(map[string]int, len(domain.NISTCategories))
	for _, cat := range domain.NISTCategories {
		nistStats[cat] = 0
	}
	iecStats := make(map[string]int, len(domain.IECRequirements))
	for _, fr := range domain.IECRequirements {
		iecStats[fr] = 0
	}

	latest, err := h.results.ListLatest(ctx)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	for _, row := range latest {
		var output domain.ClassificationOutput
		if err := json.Unmarshal([]byte(row.ResultJSON), &output); err != nil {
			h.logger.Warn("skipping unparseable classification result",
				logging.String("doc_id", row.DocID),
				logging.Error(err),
			)
			continue
		}
		if nist, ok := output.Frameworks[domain.FrameworkNISTCSF]; ok {
			if _, known := nistStats[nist.PrimaryCategory]; known {
				nistStats[nist.PrimaryCategory]++
			}
		}
		if iec, ok := output.Frameworks[domain.FrameworkIEC62443]; ok {
			if _, known := iecStats[iec.PrimaryCategory]; known {
				iecStats[iec.PrimaryCategory]++
			}
		}
	}

	percentage := 0.0
	if total > 0 {
		percentage = float64(classified) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"total_documents":           total,
		"classified_documents":      classified,
		"classification_percentage": percentage,
		"nist_categories":           nistStats,
		"iec_requirements":          iecStats,
	})
}

// AllClassifications handles GET /classifier/all: the newest result per
// document, flattened for the frontend.
func (h *Handler) AllClassifications(c *gin.Context) {
	rows, err := h.results.ListLatest(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		var output domain.ClassificationOutput
		if err := json.Unmarshal([]byte(row.ResultJSON), &output); err != nil {
			h.logger.Warn("skipping unparseable classification result",
				logging.String("doc_id", row.DocID),
				logging.Error(err),
			)
			continue
		}

		entry := gin.H{
			"doc_id":         row.DocID,
			"document_title": row.Title,
			"source_url":     row.URL,
			"keywords":       output.Keywords,
		}
		if nist, ok := output.Frameworks[domain.FrameworkNISTCSF]; ok {
			entry["nist"] = nist
		}
		if iec, ok := output.Frameworks[domain.FrameworkIEC62443]; ok {
			entry["iec"] = iec
		}
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, results)
}

// currentUserID extracts the authenticated user id from the request claims.
func currentUserID(c *gin.Context) (int64, bool) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return id, true
}
