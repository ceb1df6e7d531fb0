package domain

import "time"

// Frameworks the classifier maps documents onto.
const (
	FrameworkNISTCSF  = "NIST_CSF"
	FrameworkIEC62443 = "IEC_62443"
)

// NIST CSF function categories.
var NISTCategories = []string{"ID", "PR", "DE", "RS", "RC"}

// IEC 62443 foundational requirements.
var IECRequirements = []string{"FR1", "FR2", "FR3", "FR4", "FR5", "FR6", "FR7"}

// FrameworkResult holds one framework's classification of a document.
type FrameworkResult struct {
	PrimaryCategory string             `json:"primary_category,omitempty"`
	Categories      map[string]float64 `json:"categories,omitempty"`
	Explanation     string             `json:"explanation,omitempty"`
}

// Requirement is a security requirement extracted from document text.
type Requirement struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Keyword is an extracted keyword with a relevance weight.
type Keyword struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// ClassificationOutput is the full LLM classification of one document.
type ClassificationOutput struct {
	Timestamp    time.Time                  `json:"timestamp"`
	Frameworks   map[string]FrameworkResult `json:"frameworks"`
	Requirements []Requirement              `json:"requirements"`
	Keywords     []Keyword                  `json:"keywords"`
}

// ClassificationResult is a persisted classification row. ResultJSON holds
// the serialized ClassificationOutput; the job core treats it as opaque.
type ClassificationResult struct {
	ID         int64     `db:"id"          json:"id"`
	DocumentID int64     `db:"document_id" json:"document_id"`
	UserID     int64     `db:"user_id"     json:"user_id"`
	ResultJSON string    `db:"result_json" json:"-"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
