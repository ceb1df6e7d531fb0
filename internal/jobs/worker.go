package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
	"github.com/cybermed/agent/internal/telemetry"
)

// Classifier produces a classification for one document.
type Classifier interface {
	ClassifyDocument(ctx context.Context, doc *domain.Document) (*domain.ClassificationOutput, error)
}

// ResultSink persists classification results.
type ResultSink interface {
	SaveResult(ctx context.Context, result *domain.ClassificationResult) error
}

// Worker drives one classification job to a terminal state. It holds no
// locking responsibility of its own: the store's TryStart atomicity is the
// sole guard against two workers mutating the same job.
type Worker struct {
	store      *Store
	classifier Classifier
	results    ResultSink
	limiter    *rate.Limiter
	docTimeout time.Duration
	logger     logging.Logger
	telemetry  *telemetry.Provider
}

// WorkerConfig holds worker tuning parameters.
type WorkerConfig struct {
	// DocumentTimeout bounds each classifier invocation.
	DocumentTimeout time.Duration
	// RequestsPerSec throttles calls to the external classifier.
	RequestsPerSec int
}

// NewWorker creates a classification worker.
func NewWorker(
	store *Store,
	classifier Classifier,
	results ResultSink,
	cfg WorkerConfig,
	logger logging.Logger,
	tel *telemetry.Provider,
) *Worker {
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 2 * time.Minute
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Worker{
		store:      store,
		classifier: classifier,
		results:    results,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsPerSec),
		docTimeout: cfg.DocumentTimeout,
		logger:     logger,
		telemetry:  tel,
	}
}

// Run processes the resolved document set in order and drives the job store
// to a terminal state. The document set is a snapshot taken at start; catalog
// changes after that do not affect this run. The first failure of any kind
// (classification, timeout, or result persistence) aborts the whole job.
//
// Run is meant to be launched on its own goroutine by the controller; the
// caller must have claimed the store with TryStart first.
func (w *Worker) Run(ctx context.Context, docs []*domain.Document, userID int64) {
	if len(docs) == 0 {
		w.store.MarkCompleted()
		return
	}

	w.store.MarkRunning()

	for i, doc := range docs {
		if err := w.processDocument(ctx, doc, userID); err != nil {
			w.store.Advance(0, fmt.Errorf("document %s: %w", doc.DocID, err))
			if w.telemetry != nil {
				w.telemetry.Metrics.DocumentsFailed.Inc()
			}
			return
		}

		w.store.Advance(1, nil)
		if w.telemetry != nil {
			w.telemetry.Metrics.DocumentsClassified.Inc()
		}

		w.logger.Info("document classified",
			logging.String("doc_id", doc.DocID),
			logging.Int("position", i+1),
			logging.Int("total", len(docs)),
		)
	}

	w.store.MarkCompleted()
}

// processDocument classifies one document and persists the result.
func (w *Worker) processDocument(ctx context.Context, doc *domain.Document, userID int64) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	docCtx, cancel := context.WithTimeout(ctx, w.docTimeout)
	defer cancel()

	if w.telemetry != nil {
		var span telemetry.Span
		docCtx, span = w.telemetry.StartSpan(docCtx, "classify_document")
		defer span.End()
	}

	start := time.Now()
	output, err := w.classifier.ClassifyDocument(docCtx, doc)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if w.telemetry != nil {
		w.telemetry.Metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	}

	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	result := &domain.ClassificationResult{
		DocumentID: doc.ID,
		UserID:     userID,
		ResultJSON: string(payload),
		CreatedAt:  time.Now().UTC(),
	}

	if err := w.results.SaveResult(docCtx, result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	return nil
}
