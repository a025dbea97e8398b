package models

import (
	"time"

	"github.com/google/uuid"
)

// Statute is a single US Code section imported from USLM XML.
// USCIdentifier is the natural key, e.g. "/us/usc/t5/s101".
type Statute struct {
	ID            uuid.UUID `json:"id"`
	USCIdentifier string    `json:"usc_identifier"`
	TitleNumber   int       `json:"title_number"`
	TitleName     string    `json:"title_name,omitempty"`
	ChapterNumber string    `json:"chapter_number,omitempty"`
	ChapterName   string    `json:"chapter_name,omitempty"`
	SectionNumber string    `json:"section_number"`
	Heading       string    `json:"heading,omitempty"`
	ContentText   string    `json:"content_text,omitempty"`
	SourceCredit  string    `json:"source_credit,omitempty"`
	SourceURL     string    `json:"source_url,omitempty"`
	ReleasePoint  string    `json:"release_point,omitempty"`
	ImportSource  string    `json:"import_source,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
