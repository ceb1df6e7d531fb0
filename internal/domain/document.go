// Package domain defines the core types shared across the cybermed backend.
package domain

import "time"

// Source types for crawled documents.
const (
	SourceTypeHTML = "HTML"
	SourceTypePDF  = "PDF"
	SourceTypeDOCX = "DOCX"
)

// Document is a crawled regulatory or guidance document.
type Document struct {
	ID           int64     `db:"id"            json:"id"`
	DocID        string    `db:"doc_id"        json:"doc_id"`
	URL          string    `db:"url"           json:"url"`
	Title        string    `db:"title"         json:"title"`
	Content      string    `db:"content"       json:"content"`
	SourceType   string    `db:"source_type"   json:"source_type"`
	Lang         string    `db:"lang"          json:"lang"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
	OwnerID      int64     `db:"owner_id"      json:"owner_id"`
}

// DocumentInfo is the catalog view of a document: metadata plus whether a
// classification result exists for it. The document body is omitted.
type DocumentInfo struct {
	ID           int64     `db:"id"            json:"id"`
	DocID        string    `db:"doc_id"        json:"doc_id"`
	URL          string    `db:"url"           json:"url"`
	Title        string    `db:"title"         json:"title"`
	SourceType   string    `db:"source_type"   json:"source_type"`
	Lang         string    `db:"lang"          json:"lang"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
	IsClassified bool      `db:"is_classified" json:"is_classified"`
}
