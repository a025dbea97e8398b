package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType classifies a Federal Register document.
type DocumentType string

const (
	DocTypeRule         DocumentType = "RULE"
	DocTypeProposedRule DocumentType = "PROPOSED_RULE"
	DocTypeNotice       DocumentType = "NOTICE"
	DocTypePresidential DocumentType = "PRESIDENTIAL_DOCUMENT"
)

// Regulation is a Federal Register document. DocumentNumber is the natural key.
type Regulation struct {
	ID              uuid.UUID    `json:"id"`
	DocumentNumber  string       `json:"document_number"`
	Title           string       `json:"title"`
	Abstract        string       `json:"abstract,omitempty"`
	DocumentType    DocumentType `json:"document_type,omitempty"`
	PublicationDate *time.Time   `json:"publication_date,omitempty"`
	EffectiveOn     *time.Time   `json:"effective_on,omitempty"`
	AgencyNames     []string     `json:"agency_names,omitempty"`
	SourceURL       string       `json:"source_url,omitempty"`
	PDFURL          string       `json:"pdf_url,omitempty"`
	ImportSource    string       `json:"import_source,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
