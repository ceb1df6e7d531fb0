// Package classifier maps crawled documents onto cybersecurity frameworks
// using an LLM, with a dictionary matcher for known guideline keywords.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cybermed/agent/internal/config"
	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
)

const (
	minKeywordLength = 2
	maxKeywords      = 10
	maxOutputTokens  = 1024
)

// completer abstracts the LLM call so tests can script responses.
type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type anthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
}

func (a *anthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxOutputTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	return sb.String(), nil
}

// DocumentClassifier classifies medical device cybersecurity documents.
type DocumentClassifier struct {
	llm             completer
	matcher         *KeywordMatcher
	maxDocumentSize int
	logger          logging.Logger
}

// New creates a classifier backed by the Anthropic API. The matcher may be
// nil when no guideline dictionary is loaded.
func New(cfg config.ClassifierConfig, matcher *KeywordMatcher, logger logging.Logger) *DocumentClassifier {
	return &DocumentClassifier{
		llm: &anthropicCompleter{
			client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
			model:  anthropic.Model(cfg.Model),
		},
		matcher:         matcher,
		maxDocumentSize: cfg.MaxDocumentSize,
		logger:          logger,
	}
}

// ClassifyDocument runs the full classification pipeline on one document:
// requirement extraction, NIST CSF and IEC 62443 classification, and keyword
// extraction. An LLM transport error fails the document; an unparseable LLM
// response degrades to an empty section, matching lenient parsing elsewhere.
func (c *DocumentClassifier) ClassifyDocument(ctx context.Context, doc *domain.Document) (*domain.ClassificationOutput, error) {
	text := c.truncate(doc.Content)

	out := &domain.ClassificationOutput{
		Timestamp:  time.Now().UTC(),
		Frameworks: make(map[string]domain.FrameworkResult, 2),
	}

	reqs, err := c.extractRequirements(ctx, text)
	if err != nil {
		return nil, err
	}
	out.Requirements = reqs

	// Frameworks and keywords see the structured requirements when any
	// were extracted, otherwise the raw document text.
	fwText := requirementsText(reqs)
	if fwText == "" {
		fwText = text
	}
	fwText = c.truncate(fwText)

	nist, err := c.classifyNIST(ctx, fwText)
	if err != nil {
		return nil, err
	}
	out.Frameworks[domain.FrameworkNISTCSF] = nist

	iec, err := c.classifyIEC(ctx, fwText)
	if err != nil {
		return nil, err
	}
	out.Frameworks[domain.FrameworkIEC62443] = iec

	keywords, err := c.extractKeywords(ctx, fwText)
	if err != nil {
		return nil, err
	}
	out.Keywords = c.mergeDictionaryMatches(keywords, doc.Content)

	return out, nil
}

func (c *DocumentClassifier) truncate(text string) string {
	if c.maxDocumentSize <= 0 || len(text) <= c.maxDocumentSize {
		return text
	}
	// Back up to a rune boundary so a multi-byte character is never split.
	cut := c.maxDocumentSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func requirementsText(reqs []domain.Requirement) string {
	if len(reqs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", r.ID, r.Type, r.Text))
	}
	return strings.Join(lines, "\n")
}

type scoredEntry struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

func (c *DocumentClassifier) classifyNIST(ctx context.Context, text string) (domain.FrameworkResult, error) {
	raw, err := c.llm.Complete(ctx, nistPrompt(text))
	if err != nil {
		return domain.FrameworkResult{}, err
	}

	var parsed struct {
		Categories      map[string]scoredEntry `json:"categories"`
		PrimaryCategory string                 `json:"primary_category"`
		Explanation     string                 `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(normalizeJSON(raw)), &parsed); err != nil {
		c.logger.Warn("nist response not parseable", logging.Error(err))
		return domain.FrameworkResult{}, nil
	}

	return domain.FrameworkResult{
		PrimaryCategory: parsed.PrimaryCategory,
		Categories:      scoreMap(parsed.Categories),
		Explanation:     parsed.Explanation,
	}, nil
}

func (c *DocumentClassifier) classifyIEC(ctx context.Context, text string) (domain.FrameworkResult, error) {
	raw, err := c.llm.Complete(ctx, iecPrompt(text))
	if err != nil {
		return domain.FrameworkResult{}, err
	}

	var parsed struct {
		Requirements       map[string]scoredEntry `json:"requirements"`
		PrimaryRequirement string                 `json:"primary_requirement"`
		Explanation        string                 `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(normalizeJSON(raw)), &parsed); err != nil {
		c.logger.Warn("iec response not parseable", logging.Error(err))
		return domain.FrameworkResult{}, nil
	}

	return domain.FrameworkResult{
		PrimaryCategory: parsed.PrimaryRequirement,
		Categories:      scoreMap(parsed.Requirements),
		Explanation:     parsed.Explanation,
	}, nil
}

func (c *DocumentClassifier) extractRequirements(ctx context.Context, text string) ([]domain.Requirement, error) {
	raw, err := c.llm.Complete(ctx, extractPrompt(text))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Requirements []domain.Requirement `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(normalizeJSON(raw)), &parsed); err != nil {
		c.logger.Warn("requirement extraction not parseable", logging.Error(err))
		return nil, nil
	}
	return parsed.Requirements, nil
}

func (c *DocumentClassifier) extractKeywords(ctx context.Context, text string) ([]domain.Keyword, error) {
	raw, err := c.llm.Complete(ctx, keywordsPrompt(text, minKeywordLength, maxKeywords))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Keywords []struct {
			Keyword    string  `json:"keyword"`
			Importance float64 `json:"importance"`
		} `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(normalizeJSON(raw)), &parsed); err != nil {
		c.logger.Warn("keyword extraction not parseable", logging.Error(err))
		return nil, nil
	}

	keywords := make([]domain.Keyword, 0, len(parsed.Keywords))
	for _, k := range parsed.Keywords {
		if k.Keyword == "" {
			continue
		}
		keywords = append(keywords, domain.Keyword{Term: k.Keyword, Weight: k.Importance})
	}
	return keywords, nil
}

// mergeDictionaryMatches appends guideline dictionary terms found in the
// document body that the LLM did not already report.
func (c *DocumentClassifier) mergeDictionaryMatches(keywords []domain.Keyword, content string) []domain.Keyword {
	if c.matcher == nil {
		return keywords
	}

	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		seen[strings.ToLower(k.Term)] = true
	}

	for _, term := range c.matcher.Match(content) {
		if seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		keywords = append(keywords, domain.Keyword{Term: term, Weight: 1.0})
	}
	return keywords
}

func scoreMap(entries map[string]scoredEntry) map[string]float64 {
	if len(entries) == 0 {
		return nil
	}
	scores := make(map[string]float64, len(entries))
	for key, entry := range entries {
		scores[key] = entry.Score
	}
	return scores
}

var trailingBraces = regexp.MustCompile(`\}\s*\}\s*$`)

// normalizeJSON extracts the JSON object from an LLM response, dropping any
// surrounding prose and collapsing a duplicated closing brace at the end.
func normalizeJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	candidate := raw[start : end+1]
	return trailingBraces.ReplaceAllString(candidate, "}")
}
