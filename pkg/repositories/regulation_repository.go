package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/civicgraph/civic-engine/pkg/database"
	"github.com/civicgraph/civic-engine/pkg/models"
)

// RegulationRepository provides data access for Federal Register documents.
type RegulationRepository interface {
	// GetByDocumentNumber looks up the natural key. Returns nil when absent.
	GetByDocumentNumber(ctx context.Context, documentNumber string) (*models.Regulation, error)
	// Create inserts a new regulation.
	Create(ctx context.Context, regulation *models.Regulation) error
	// Update overwrites an existing regulation by document number.
	Update(ctx context.Context, regulation *models.Regulation) error
}

type regulationRepository struct {
	db *database.DB
}

// NewRegulationRepository creates a new RegulationRepository.
func NewRegulationRepository(db *database.DB) RegulationRepository {
	return &regulationRepository{db: db}
}

var _ RegulationRepository = (*regulationRepository)(nil)

func (r *regulationRepository) GetByDocumentNumber(ctx context.Context, documentNumber string) (*models.Regulation, error) {
	query := `
		SELECT id, document_number, title, abstract, document_type,
		       publication_date, effective_on, agency_names, source_url,
		       pdf_url, import_source, created_at, updated_at
		FROM regulations WHERE document_number = $1`

	var reg models.Regulation
	var abstract, documentType, sourceURL, pdfURL, importSource *string
	err := r.db.QueryRow(ctx, query, documentNumber).Scan(
		&reg.ID, &reg.DocumentNumber, &reg.Title, &abstract, &documentType,
		&reg.PublicationDate, &reg.EffectiveOn, &reg.AgencyNames,
		&sourceURL, &pdfURL, &importSource, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get regulation %q: %w", documentNumber, err)
	}
	reg.Abstract = deref(abstract)
	reg.DocumentType = models.DocumentType(deref(documentType))
	reg.SourceURL = deref(sourceURL)
	reg.PDFURL = deref(pdfURL)
	reg.ImportSource = deref(importSource)
	return &reg, nil
}

func (r *regulationRepository) Create(ctx context.Context, regulation *models.Regulation) error {
	if regulation.ID == uuid.Nil {
		regulation.ID = uuid.New()
	}
	now := time.Now()
	regulation.CreatedAt = now
	regulation.UpdatedAt = now

	query := `
		INSERT INTO regulations (
			id, document_number, title, abstract, document_type,
			publication_date, effective_on, agency_names, source_url,
			pdf_url, import_source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		regulation.ID, regulation.DocumentNumber, regulation.Title,
		nullString(regulation.Abstract), nullString(string(regulation.DocumentType)),
		regulation.PublicationDate, regulation.EffectiveOn, regulation.AgencyNames,
		nullString(regulation.SourceURL), nullString(regulation.PDFURL),
		nullString(regulation.ImportSource), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create regulation %q: %w", regulation.DocumentNumber, err)
	}
	return nil
}

func (r *regulationRepository) Update(ctx context.Context, regulation *models.Regulation) error {
	query := `
		UPDATE regulations
		SET title = $2, abstract = $3, document_type = $4, publication_date = $5,
		    effective_on = $6, agency_names = $7, source_url = $8, pdf_url = $9,
		    import_source = $10, updated_at = NOW()
		WHERE document_number = $1`

	tag, err := r.db.Exec(ctx, query,
		regulation.DocumentNumber, regulation.Title,
		nullString(regulation.Abstract), nullString(string(regulation.DocumentType)),
		regulation.PublicationDate, regulation.EffectiveOn, regulation.AgencyNames,
		nullString(regulation.SourceURL), nullString(regulation.PDFURL),
		nullString(regulation.ImportSource),
	)
	if err != nil {
		return fmt.Errorf("failed to update regulation %q: %w", regulation.DocumentNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("regulation %q not found", regulation.DocumentNumber)
	}
	return nil
}
