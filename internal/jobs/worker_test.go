//nolint:testpackage // Testing internal worker requires same package access
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
)

// fakeClassifier classifies instantly, failing for documents whose DocID is
// listed in failing. An optional gate channel makes it block until released,
// one receive per document, so tests can observe intermediate progress.
type fakeClassifier struct {
	failing map[string]bool
	gate    chan struct{}
}

func (f *fakeClassifier) ClassifyDocument(ctx context.Context, doc *domain.Document) (*domain.ClassificationOutput, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failing[doc.DocID] {
		return nil, errors.New("malformed source content")
	}
	return &domain.ClassificationOutput{
		Timestamp:  time.Now(),
		Frameworks: map[string]domain.FrameworkResult{domain.FrameworkNISTCSF: {PrimaryCategory: "PR"}},
	}, nil
}

// memorySink collects persisted results; failAfter >= 0 fails the save at
// that index.
type memorySink struct {
	mu        sync.Mutex
	saved     []*domain.ClassificationResult
	failAfter int
}

func newMemorySink() *memorySink {
	return &memorySink{failAfter: -1}
}

func (m *memorySink) SaveResult(ctx context.Context, result *domain.ClassificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && len(m.saved) == m.failAfter {
		return errors.New("result store unavailable")
	}
	m.saved = append(m.saved, result)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func testDocs(ids ...string) []*domain.Document {
	docs := make([]*domain.Document, 0, len(ids))
	for i, id := range ids {
		docs = append(docs, &domain.Document{
			ID:      int64(i + 1),
			DocID:   id,
			Title:   fmt.Sprintf("Document %s", id),
			Content: "Access to the device shall require authentication.",
		})
	}
	return docs
}

func newTestWorker(store *Store, classifier Classifier, sink ResultSink) *Worker {
	return NewWorker(store, classifier, sink, WorkerConfig{
		DocumentTimeout: time.Second,
		RequestsPerSec:  1000,
	}, logging.NewNop(), nil)
}

func TestWorker_Run_CompletesAllDocuments(t *testing.T) {
	store := NewStore(logging.NewNop())
	sink := newMemorySink()
	worker := newTestWorker(store, &fakeClassifier{}, sink)

	docs := testDocs("d1", "d2")
	require.NoError(t, store.TryStart(len(docs)))

	worker.Run(context.Background(), docs, 1)

	snap := store.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 2, snap.CompletedCount)
	require.Equal(t, 2, snap.TargetCount)
	require.Equal(t, 2, sink.count())
}

func TestWorker_Run_ObservableProgressAndMidJobConflict(t *testing.T) {
	store := NewStore(logging.NewNop())
	sink := newMemorySink()
	classifier := &fakeClassifier{gate: make(chan struct{})}
	worker := newTestWorker(store, classifier, sink)

	docs := testDocs("d1", "d2")
	require.NoError(t, store.TryStart(len(docs)))

	snap := store.Snapshot()
	require.Equal(t, StatusInitializing, snap.Status)
	require.Equal(t, 0, snap.CompletedCount)
	require.Equal(t, 2, snap.TargetCount)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background(), docs, 1)
	}()

	// Release the first document and wait for its advance.
	classifier.gate <- struct{}{}
	require.Eventually(t, func() bool {
		s := store.Snapshot()
		return s.Status == StatusInProgress && s.CompletedCount == 1
	}, time.Second, time.Millisecond)

	// A start issued mid-job is rejected without touching the running job.
	require.ErrorIs(t, store.TryStart(1), ErrAlreadyRunning)

	classifier.gate <- struct{}{}
	<-done

	snap = store.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 2, snap.CompletedCount)
}

func TestWorker_Run_FirstDocumentFailureAbortsJob(t *testing.T) {
	store := NewStore(logging.NewNop())
	sink := newMemorySink()
	worker := newTestWorker(store, &fakeClassifier{failing: map[string]bool{"bad": true}}, sink)

	docs := testDocs("bad")
	require.NoError(t, store.TryStart(len(docs)))

	worker.Run(context.Background(), docs, 1)

	snap := store.Snapshot()
	require.Equal(t, StatusError, snap.Status)
	require.Equal(t, 0, snap.CompletedCount)
	require.Equal(t, 1, snap.TargetCount)
	require.Contains(t, snap.LastError, "bad")
	require.Zero(t, sink.count())

	// The job is terminal, so a new start succeeds and resets progress.
	require.NoError(t, store.TryStart(2))
	after := store.Snapshot()
	require.Equal(t, StatusInitializing, after.Status)
	require.Equal(t, 0, after.CompletedCount)
}

func TestWorker_Run_FailureMidwayKeepsEarlierProgress(t *testing.T) {
	store := NewStore(logging.NewNop())
	sink := newMemorySink()
	worker := newTestWorker(store, &fakeClassifier{failing: map[string]bool{"d2": true}}, sink)

	docs := testDocs("d1", "d2", "d3")
	require.NoError(t, store.TryStart(len(docs)))

	worker.Run(context.Background(), docs, 1)

	snap := store.Snapshot()
	require.Equal(t, StatusError, snap.Status)
	require.Equal(t, 1, snap.CompletedCount)
	require.Equal(t, 1, sink.count(), "d3 must not be processed after the failure")
}

func TestWorker_Run_PersistFailureIsDocumentFailure(t *testing.T) {
	store := NewStore(logging.NewNop())
	sink := newMemorySink()
	sink.failAfter = 0
	worker := newTestWorker(store, &fakeClassifier{}, sink)

	docs := testDocs("d1")
	require.NoError(t, store.TryStart(len(docs)))

	worker.Run(context.Background(), docs, 1)

	snap := store.Snapshot()
	require.Equal(t, StatusError, snap.Status)
	require.Contains(t, snap.LastError, "persist result")
}

func TestWorker_Run_ZeroTargetsCompletesImmediately(t *testing.T) {
	store := NewStore(logging.NewNop())
	worker := newTestWorker(store, &fakeClassifier{}, newMemorySink())

	require.NoError(t, store.TryStart(0))
	worker.Run(context.Background(), nil, 1)

	snap := store.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	require.Equal(t, 0, snap.CompletedCount)
	require.Equal(t, 0, snap.TargetCount)
}

func TestWorker_Run_ClassifierTimeoutAbortsJob(t *testing.T) {
	store := NewStore(logging.NewNop())
	sink := newMemorySink()
	classifier := &fakeClassifier{gate: make(chan struct{})} // never released
	worker := newTestWorker(store, classifier, sink)

	docs := testDocs("slow")
	require.NoError(t, store.TryStart(len(docs)))

	worker.Run(context.Background(), docs, 1)

	snap := store.Snapshot()
	require.Equal(t, StatusError, snap.Status)
	require.Contains(t, snap.LastError, "context deadline exceeded")
}
