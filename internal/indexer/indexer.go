// Package indexer maintains the Elasticsearch full-text index over crawled
// documents.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/cybermed/agent/internal/config"
	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
)

// Indexer writes documents into and searches the Elasticsearch index.
type Indexer struct {
	client *es.Client
	index  string
	logger logging.Logger
}

// NewClient creates an Elasticsearch client from configuration. The URL is
// normalized to carry a scheme.
func NewClient(cfg config.ElasticsearchConfig) (*es.Client, error) {
	clientConfig := es.Config{
		Addresses:  []string{normalizeURL(cfg.URL)},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// New creates an indexer over the given client and index name.
func New(client *es.Client, index string, logger logging.Logger) *Indexer {
	return &Indexer{client: client, index: index, logger: logger}
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

// indexedDocument is the shape stored in Elasticsearch.
type indexedDocument struct {
	DocID        string `json:"doc_id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceType   string `json:"source_type"`
	Lang         string `json:"lang"`
	DownloadedAt string `json:"downloaded_at"`
}

// IndexDocuments indexes the given documents, keyed by doc_id so re-runs
// overwrite rather than duplicate. Returns the number indexed.
func (i *Indexer) IndexDocuments(ctx context.Context, docs []*domain.Document) (int, error) {
	indexed := 0
	for _, doc := range docs {
		if err := i.indexOne(ctx, doc); err != nil {
			return indexed, err
		}
		indexed++
	}

	i.logger.Info("documents indexed",
		logging.String("index", i.index),
		logging.Int("count", indexed),
	)
	return indexed, nil
}

func (i *Indexer) indexOne(ctx context.Context, doc *domain.Document) error {
	body, err := json.Marshal(indexedDocument{
		DocID:        doc.DocID,
		URL:          doc.URL,
		Title:        doc.Title,
		Content:      doc.Content,
		SourceType:   doc.SourceType,
		Lang:         doc.Lang,
		DownloadedAt: doc.DownloadedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.DocID, err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(doc.DocID),
	)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.DocID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document %s: %s", doc.DocID, res.String())
	}
	return nil
}

// SearchHit is one full-text search result.
type SearchHit struct {
	DocID string  `json:"doc_id"`
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Search runs a full-text match query over title and content.
func (i *Indexer) Search(ctx context.Context, queryText string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  queryText,
				"fields": []string{"title^2", "content"},
			},
		},
		"size": topK,
	}

	queryBytes, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(queryBytes)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source indexedDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		hits = append(hits, SearchHit{
			DocID: hit.Source.DocID,
			URL:   hit.Source.URL,
			Title: hit.Source.Title,
			Score: hit.Score,
		})
	}
	return hits, nil
}

// Stats reports the index document count.
type Stats struct {
	Index         string `json:"index"`
	DocumentCount int64  `json:"document_count"`
}

// Stats returns basic statistics about the index.
func (i *Indexer) Stats(ctx context.Context) (*Stats, error) {
	res, err := i.client.Count(
		i.client.Count.WithContext(ctx),
		i.client.Count.WithIndex(i.index),
	)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("count index: %s", res.String())
	}

	var countResult struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResult); err != nil {
		return nil, fmt.Errorf("decode count response: %w", err)
	}

	return &Stats{Index: i.index, DocumentCount: countResult.Count}, nil
}
