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

// StatuteRepository provides data access for US Code sections.
type StatuteRepository interface {
	// GetByUSCIdentifier looks up the natural key, e.g. "/us/usc/t5/s101".
	// Returns nil when absent.
	GetByUSCIdentifier(ctx context.Context, identifier string) (*models.Statute, error)
	// InsertTx inserts inside a batch transaction; a natural-key collision is
	// reported as inserted=false.
	InsertTx(ctx context.Context, tx pgx.Tx, statute *models.Statute) (inserted bool, err error)
	// UpdateTx updates inside a batch transaction; changed=false means the
	// stored row already carried identical content.
	UpdateTx(ctx context.Context, tx pgx.Tx, statute *models.Statute) (changed bool, err error)
	// CountByImportSource returns how many sections a pipeline owns.
	CountByImportSource(ctx context.Context, source string) (int64, error)
}

type statuteRepository struct {
	db *database.DB
}

// NewStatuteRepository creates a new StatuteRepository.
func NewStatuteRepository(db *database.DB) StatuteRepository {
	return &statuteRepository{db: db}
}

var _ StatuteRepository = (*statuteRepository)(nil)

func (r *statuteRepository) GetByUSCIdentifier(ctx context.Context, identifier string) (*models.Statute, error) {
	query := `
		SELECT id, usc_identifier, title_number, title_name, chapter_number,
		       chapter_name, section_number, heading, content_text, source_credit,
		       source_url, release_point, import_source, created_at, updated_at
		FROM statutes WHERE usc_identifier = $1`

	var s models.Statute
	var titleName, chapterNumber, chapterName, heading, contentText *string
	var sourceCredit, sourceURL, releasePoint, importSource *string
	err := r.db.QueryRow(ctx, query, identifier).Scan(
		&s.ID, &s.USCIdentifier, &s.TitleNumber, &titleName, &chapterNumber,
		&chapterName, &s.SectionNumber, &heading, &contentText, &sourceCredit,
		&sourceURL, &releasePoint, &importSource, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statute %q: %w", identifier, err)
	}
	s.TitleName = deref(titleName)
	s.ChapterNumber = deref(chapterNumber)
	s.ChapterName = deref(chapterName)
	s.Heading = deref(heading)
	s.ContentText = deref(contentText)
	s.SourceCredit = deref(sourceCredit)
	s.SourceURL = deref(sourceURL)
	s.ReleasePoint = deref(releasePoint)
	s.ImportSource = deref(importSource)
	return &s, nil
}

func (r *statuteRepository) InsertTx(ctx context.Context, tx pgx.Tx, statute *models.Statute) (bool, error) {
	if statute.ID == uuid.Nil {
		statute.ID = uuid.New()
	}
	now := time.Now()
	statute.CreatedAt = now
	statute.UpdatedAt = now

	query := `
		INSERT INTO statutes (
			id, usc_identifier, title_number, title_name, chapter_number,
			chapter_name, section_number, heading, content_text, source_credit,
			source_url, release_point, import_source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (usc_identifier) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		statute.ID, statute.USCIdentifier, statute.TitleNumber,
		nullString(statute.TitleName), nullString(statute.ChapterNumber),
		nullString(statute.ChapterName), statute.SectionNumber,
		nullString(statute.Heading), nullString(statute.ContentText),
		nullString(statute.SourceCredit), nullString(statute.SourceURL),
		nullString(statute.ReleasePoint), nullString(statute.ImportSource),
		now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert statute %q: %w", statute.USCIdentifier, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *statuteRepository) UpdateTx(ctx context.Context, tx pgx.Tx, statute *models.Statute) (bool, error) {
	query := `
		UPDATE statutes
		SET title_number = $2, title_name = $3, chapter_number = $4,
		    chapter_name = $5, section_number = $6, heading = $7,
		    content_text = $8, source_credit = $9, source_url = $10,
		    release_point = $11, import_source = $12, updated_at = NOW()
		WHERE usc_identifier = $1
		  AND (title_number, COALESCE(title_name, ''), COALESCE(chapter_number, ''),
		       COALESCE(chapter_name, ''), section_number, COALESCE(heading, ''),
		       COALESCE(content_text, ''), COALESCE(source_credit, ''),
		       COALESCE(release_point, ''))
		      IS DISTINCT FROM
		      ($2, COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''), $6,
		       COALESCE($7, ''), COALESCE($8, ''), COALESCE($9, ''), COALESCE($11, ''))`

	tag, err := tx.Exec(ctx, query,
		statute.USCIdentifier, statute.TitleNumber,
		nullString(statute.TitleName), nullString(statute.ChapterNumber),
		nullString(statute.ChapterName), statute.SectionNumber,
		nullString(statute.Heading), nullString(statute.ContentText),
		nullString(statute.SourceCredit), nullString(statute.SourceURL),
		nullString(statute.ReleasePoint), nullString(statute.ImportSource),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update statute %q: %w", statute.USCIdentifier, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *statuteRepository) CountByImportSource(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM statutes WHERE import_source = $1`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count statutes for source %q: %w", source, err)
	}
	return count, nil
}
