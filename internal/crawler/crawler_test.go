package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybermed/agent/internal/config"
	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
)

type memoryStore struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]*domain.Document)}
}

func (s *memoryStore) Upsert(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.docs[doc.DocID] = doc
	return nil
}

func (s *memoryStore) byURL(url string) *domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[DocID(url)]
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Guidance Index</title></head>
			<body>
				<script>ignored()</script>
				<p>Medical device cybersecurity guidance.</p>
				<a href="/premarket">Premarket</a>
				<a href="/report.pdf">Report</a>
			</body></html>`))
	})
	mux.HandleFunc("/premarket", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Premarket Guidance</title></head>
			<body><p>Submit a security risk assessment.</p>
			<a href="/deep">Deep</a></body></html>`))
	})
	mux.HandleFunc("/deep", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Too Deep</title></head><body><p>deep page</p></body></html>`))
	})
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestCrawler(store DocumentStore) *Crawler {
	return New(store, config.CrawlerConfig{
		UserAgent:    "cybermed-agent-test/1.0",
		MaxDepth:     2,
		FetchTimeout: 5 * time.Second,
	}, logging.NewNop(), nil)
}

func TestCrawl(t *testing.T) {
	server := testSite(t)
	store := newMemoryStore()
	c := newTestCrawler(store)

	stored, err := c.Crawl(context.Background(), Target{URL: server.URL + "/", Depth: 1})
	require.NoError(t, err)

	// Seed page, one linked HTML page, one PDF. /deep is beyond depth 1.
	assert.Equal(t, 3, stored)

	index := store.byURL(server.URL + "/")
	require.NotNil(t, index)
	assert.Equal(t, "Guidance Index", index.Title)
	assert.Equal(t, domain.SourceTypeHTML, index.SourceType)
	assert.Contains(t, index.Content, "Medical device cybersecurity guidance.")
	assert.NotContains(t, index.Content, "ignored()")

	pdf := store.byURL(server.URL + "/report.pdf")
	require.NotNil(t, pdf)
	assert.Equal(t, domain.SourceTypePDF, pdf.SourceType)
	assert.Equal(t, "report.pdf", pdf.Title)
	assert.Contains(t, pdf.Content, "application/pdf")

	assert.Nil(t, store.byURL(server.URL+"/deep"))
}

func TestCrawl_MIMEFilters(t *testing.T) {
	server := testSite(t)
	store := newMemoryStore()
	c := newTestCrawler(store)

	stored, err := c.Crawl(context.Background(), Target{
		URL:         server.URL + "/",
		Depth:       1,
		MIMEFilters: []string{"application/pdf"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stored)
	assert.NotNil(t, store.byURL(server.URL+"/report.pdf"))
	assert.Nil(t, store.byURL(server.URL+"/"))
}

func TestCrawl_SeedUnreachable(t *testing.T) {
	store := newMemoryStore()
	c := newTestCrawler(store)

	_, err := c.Crawl(context.Background(), Target{URL: "not a url"})
	assert.Error(t, err)
}

func TestCrawl_StoreFailureSkipsDocument(t *testing.T) {
	server := testSite(t)
	store := newMemoryStore()
	store.err = errors.New("disk full")
	c := newTestCrawler(store)

	stored, err := c.Crawl(context.Background(), Target{URL: server.URL + "/", Depth: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
}

func TestDocID(t *testing.T) {
	a := DocID("https://example.com/a")
	b := DocID("https://example.com/b")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, DocID("https://example.com/a"))
}
