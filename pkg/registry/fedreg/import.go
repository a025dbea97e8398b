package fedreg

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
	"github.com/civicgraph/civic-engine/pkg/models"
	"github.com/civicgraph/civic-engine/pkg/repositories"
)

// ImportSourceFederalRegister tags regulations imported from the Federal Register.
const ImportSourceFederalRegister = "FEDREG"

const maxTitleLength = 1000

// ImportOutcome reports what a single-document import did.
type ImportOutcome struct {
	ID             uuid.UUID `json:"id,omitempty"`
	DocumentNumber string    `json:"documentNumber"`
	Title          string    `json:"title,omitempty"`
	Created        bool      `json:"created"`
	Updated        bool      `json:"updated"`
	Skipped        bool      `json:"skipped"`
	Message        string    `json:"message,omitempty"`
}

// ImportService imports individual Federal Register documents on operator
// request. An existing document is never overwritten unless the operator
// passes the explicit overwrite flag; a plain re-import is a no-op skip.
type ImportService interface {
	ImportDocument(ctx context.Context, documentNumber string, forceOverwrite bool) (*ImportOutcome, error)
}

type importService struct {
	client         *Client
	regulationRepo repositories.RegulationRepository
	logger         *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(client *Client, regulationRepo repositories.RegulationRepository, logger *zap.Logger) ImportService {
	return &importService{
		client:         client,
		regulationRepo: regulationRepo,
		logger:         logger.Named("fedreg-import"),
	}
}

var _ ImportService = (*importService)(nil)

func (s *importService) ImportDocument(ctx context.Context, documentNumber string, forceOverwrite bool) (*ImportOutcome, error) {
	s.logger.Info("Importing federal register document",
		zap.String("documentNumber", documentNumber),
		zap.Bool("forceOverwrite", forceOverwrite))

	existing, err := s.regulationRepo.GetByDocumentNumber(ctx, documentNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing document: %w", err)
	}

	if existing != nil && !forceOverwrite {
		return &ImportOutcome{
			ID:             existing.ID,
			DocumentNumber: existing.DocumentNumber,
			Title:          existing.Title,
			Skipped:        true,
			Message:        "record already exists, set forceOverwrite to update",
		}, nil
	}

	doc, err := s.client.FetchDocument(ctx, documentNumber)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentNumber, apperrors.ErrNotFound)
	}

	regulation := regulationFromDocument(doc)
	if existing == nil {
		if err := s.regulationRepo.Create(ctx, regulation); err != nil {
			return nil, fmt.Errorf("failed to create regulation: %w", err)
		}
		return &ImportOutcome{
			ID:             regulation.ID,
			DocumentNumber: regulation.DocumentNumber,
			Title:          regulation.Title,
			Created:        true,
		}, nil
	}

	regulation.ID = existing.ID
	if err := s.regulationRepo.Update(ctx, regulation); err != nil {
		return nil, fmt.Errorf("failed to update regulation: %w", err)
	}
	return &ImportOutcome{
		ID:             regulation.ID,
		DocumentNumber: regulation.DocumentNumber,
		Title:          regulation.Title,
		Updated:        true,
	}, nil
}

func regulationFromDocument(doc *Document) *models.Regulation {
	agencyNames := make([]string, 0, len(doc.Agencies))
	for _, agency := range doc.Agencies {
		if agency.Name != "" {
			agencyNames = append(agencyNames, agency.Name)
		}
	}

	return &models.Regulation{
		DocumentNumber:  doc.DocumentNumber,
		Title:           truncate(doc.Title, maxTitleLength),
		Abstract:        doc.Abstract,
		DocumentType:    documentType(doc.Type),
		PublicationDate: parseDate(doc.PublicationDate),
		EffectiveOn:     parseDate(doc.EffectiveOn),
		AgencyNames:     agencyNames,
		SourceURL:       "https://www.federalregister.gov/d/" + doc.DocumentNumber,
		PDFURL:          doc.PDFURL,
		ImportSource:    ImportSourceFederalRegister,
	}
}

func documentType(apiType string) models.DocumentType {
	switch strings.ToLower(apiType) {
	case "rule":
		return models.DocTypeRule
	case "proposed rule":
		return models.DocTypeProposedRule
	case "notice":
		return models.DocTypeNotice
	case "presidential document":
		return models.DocTypePresidential
	default:
		return models.DocTypeNotice
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// truncate caps s at max bytes, cutting on a rune boundary so a multi-byte
// character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
