package domain

// Guideline is one cybersecurity control extracted from a standard or
// regulatory document.
type Guideline struct {
	ID          int64    `db:"id"           json:"id"`
	GuidelineID string   `db:"guideline_id" json:"guideline_id"`
	Category    string   `db:"category"     json:"category"`
	Standard    string   `db:"standard"     json:"standard"`
	ControlText string   `db:"control_text" json:"control_text"`
	SourceURL   string   `db:"source_url"   json:"source_url"`
	Region      string   `db:"region"       json:"region"`
	Keywords    []string `db:"-"            json:"keywords"`
}

// GuidelineFilter narrows guideline queries. Zero-value fields are ignored.
type GuidelineFilter struct {
	Category string
	Standard string
	Region   string
	Query    string
	Offset   int
	Limit    int
}
