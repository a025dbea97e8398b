// Package repositories provides pgx-backed data access for civic-engine.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/civicgraph/civic-engine/pkg/database"
	"github.com/civicgraph/civic-engine/pkg/models"
)

// OrganizationRepository provides data access for government organizations.
type OrganizationRepository interface {
	// GetByID returns the organization or nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.GovernmentOrganization, error)
	// GetByExternalID looks up the source-tagged natural key (e.g. "GOVMAN:123").
	GetByExternalID(ctx context.Context, externalID string) (*models.GovernmentOrganization, error)
	// GetByNameInsensitive returns all organizations whose official name
	// matches case-insensitively after whitespace trimming.
	GetByNameInsensitive(ctx context.Context, name string) ([]*models.GovernmentOrganization, error)
	// InsertTx inserts inside a batch transaction. A natural-key collision is
	// reported as inserted=false, never an error: the caller treats it as a
	// late-discovered duplicate.
	InsertTx(ctx context.Context, tx pgx.Tx, org *models.GovernmentOrganization) (inserted bool, err error)
	// UpdateTx updates inside a batch transaction. changed=false means the
	// stored row was already byte-identical.
	UpdateTx(ctx context.Context, tx pgx.Tx, org *models.GovernmentOrganization) (changed bool, err error)
	// SetParent wires a resolved parent reference after both rows exist.
	SetParent(ctx context.Context, childID, parentID uuid.UUID) error
	// CountByImportSource returns how many organizations a pipeline owns.
	CountByImportSource(ctx context.Context, source string) (int64, error)
}

type organizationRepository struct {
	db *database.DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *database.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

var _ OrganizationRepository = (*organizationRepository)(nil)

const organizationColumns = `
	id, official_name, acronym, branch, org_type, parent_id, sort_order,
	mission_statement, website_url, external_id, import_source, created_at, updated_at`

func scanOrganization(row pgx.Row) (*models.GovernmentOrganization, error) {
	var org models.GovernmentOrganization
	var acronym, mission, website, externalID, importSource *string
	err := row.Scan(
		&org.ID, &org.OfficialName, &acronym, &org.Branch, &org.OrgType,
		&org.ParentID, &org.SortOrder, &mission, &website, &externalID,
		&importSource, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	org.Acronym = deref(acronym)
	org.MissionStatement = deref(mission)
	org.WebsiteURL = deref(website)
	org.ExternalID = deref(externalID)
	org.ImportSource = deref(importSource)
	return &org, nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GovernmentOrganization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %s: %w", id, err)
	}
	return org, nil
}

func (r *organizationRepository) GetByExternalID(ctx context.Context, externalID string) (*models.GovernmentOrganization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE external_id = $1`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization by external id %q: %w", externalID, err)
	}
	return org, nil
}

func (r *organizationRepository) GetByNameInsensitive(ctx context.Context, name string) ([]*models.GovernmentOrganization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE LOWER(official_name) = LOWER($1)`
	rows, err := r.db.Query(ctx, query, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations by name %q: %w", name, err)
	}
	defer rows.Close()

	var orgs []*models.GovernmentOrganization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *organizationRepository) InsertTx(ctx context.Context, tx pgx.Tx, org *models.GovernmentOrganization) (bool, error) {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now

	query := `
		INSERT INTO organizations (
			id, official_name, acronym, branch, org_type, sort_order,
			mission_statement, website_url, external_id, import_source,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (external_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		org.ID, org.OfficialName, nullString(org.Acronym), org.Branch, org.OrgType,
		org.SortOrder, nullString(org.MissionStatement), nullString(org.WebsiteURL),
		nullString(org.ExternalID), nullString(org.ImportSource), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert organization %q: %w", org.OfficialName, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *organizationRepository) UpdateTx(ctx context.Context, tx pgx.Tx, org *models.GovernmentOrganization) (bool, error) {
	query := `
		UPDATE organizations
		SET official_name = $2, acronym = $3, branch = $4, org_type = $5,
		    sort_order = $6, mission_statement = $7, website_url = $8,
		    import_source = $9, updated_at = NOW()
		WHERE id = $1
		  AND (official_name, COALESCE(acronym, ''), branch::text, org_type::text,
		       sort_order, COALESCE(mission_statement, ''), COALESCE(website_url, ''))
		      IS DISTINCT FROM
		      ($2, COALESCE($3, ''), $4, $5, $6, COALESCE($7, ''), COALESCE($8, ''))`

	tag, err := tx.Exec(ctx, query,
		org.ID, org.OfficialName, nullString(org.Acronym), org.Branch, org.OrgType,
		org.SortOrder, nullString(org.MissionStatement), nullString(org.WebsiteURL),
		nullString(org.ImportSource),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update organization %s: %w", org.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *organizationRepository) SetParent(ctx context.Context, childID, parentID uuid.UUID) error {
	query := `UPDATE organizations SET parent_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, childID, parentID)
	if err != nil {
		return fmt.Errorf("failed to set parent for organization %s: %w", childID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s not found", childID)
	}
	return nil
}

func (r *organizationRepository) CountByImportSource(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM organizations WHERE import_source = $1`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count organizations for source %q: %w", source, err)
	}
	return count, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
