package fedreg

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/registry"
)

const sourceName = "Federal Register"

// DocumentView is a document shaped for operator review before import.
type DocumentView struct {
	DocumentNumber  string   `json:"documentNumber"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract,omitempty"`
	Type            string   `json:"type,omitempty"`
	PublicationDate string   `json:"publicationDate,omitempty"`
	EffectiveOn     string   `json:"effectiveOn,omitempty"`
	AgencyNames     []string `json:"agencyNames,omitempty"`
	HTMLURL         string   `json:"htmlUrl,omitempty"`
	PDFURL          string   `json:"pdfUrl,omitempty"`
}

// DocumentResult is one document annotated with its local duplicate status.
type DocumentResult struct {
	Document  DocumentView                 `json:"document"`
	Source    string                       `json:"source"`
	SourceURL string                       `json:"sourceUrl"`
	Duplicate registry.DuplicateAnnotation `json:"duplicate"`
}

// SearchService previews Federal Register documents with local duplicate
// annotation so an operator can review before confirming an import.
type SearchService interface {
	// GetDocument fetches one document, nil when absent upstream.
	GetDocument(ctx context.Context, documentNumber string) (*DocumentResult, error)
}

type searchService struct {
	client  *Client
	checker *registry.DuplicateChecker
	logger  *zap.Logger
}

// NewSearchService creates a new SearchService.
func NewSearchService(client *Client, checker *registry.DuplicateChecker, logger *zap.Logger) SearchService {
	return &searchService{
		client:  client,
		checker: checker,
		logger:  logger.Named("fedreg-search"),
	}
}

var _ SearchService = (*searchService)(nil)

func (s *searchService) GetDocument(ctx context.Context, documentNumber string) (*DocumentResult, error) {
	doc, err := s.client.FetchDocument(ctx, documentNumber)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	annotation, err := s.checker.Check(ctx, doc.DocumentNumber, doc.Title)
	if err != nil {
		return nil, err
	}

	agencyNames := make([]string, 0, len(doc.Agencies))
	for _, agency := range doc.Agencies {
		if agency.Name != "" {
			agencyNames = append(agencyNames, agency.Name)
		}
	}

	return &DocumentResult{
		Document: DocumentView{
			DocumentNumber:  doc.DocumentNumber,
			Title:           doc.Title,
			Abstract:        doc.Abstract,
			Type:            doc.Type,
			PublicationDate: doc.PublicationDate,
			EffectiveOn:     doc.EffectiveOn,
			AgencyNames:     agencyNames,
			HTMLURL:         doc.HTMLURL,
			PDFURL:          doc.PDFURL,
		},
		Source:    sourceName,
		SourceURL: "https://www.federalregister.gov/d/" + doc.DocumentNumber,
		Duplicate: annotation,
	}, nil
}
