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

// PersonRepository provides data access for legislators and appointees.
type PersonRepository interface {
	// GetByBioguideID looks up the congressional natural key. Returns nil when absent.
	GetByBioguideID(ctx context.Context, bioguideID string) (*models.Person, error)
	// Upsert creates or updates by bioguide id, reporting whether a new row
	// was created.
	Upsert(ctx context.Context, person *models.Person) (created bool, err error)
}

type personRepository struct {
	db *database.DB
}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository(db *database.DB) PersonRepository {
	return &personRepository{db: db}
}

var _ PersonRepository = (*personRepository)(nil)

func (r *personRepository) GetByBioguideID(ctx context.Context, bioguideID string) (*models.Person, error) {
	query := `
		SELECT id, bioguide_id, first_name, last_name, party, state, chamber,
		       image_url, import_source, created_at, updated_at
		FROM people WHERE bioguide_id = $1`

	var p models.Person
	var party, state, chamber, imageURL, importSource *string
	err := r.db.QueryRow(ctx, query, bioguideID).Scan(
		&p.ID, &p.BioguideID, &p.FirstName, &p.LastName, &party, &state,
		&chamber, &imageURL, &importSource, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person by bioguide id %q: %w", bioguideID, err)
	}
	p.Party = deref(party)
	p.State = deref(state)
	p.Chamber = models.Chamber(deref(chamber))
	p.ImageURL = deref(imageURL)
	p.ImportSource = deref(importSource)
	return &p, nil
}

func (r *personRepository) Upsert(ctx context.Context, person *models.Person) (bool, error) {
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO people (
			id, bioguide_id, first_name, last_name, party, state, chamber,
			image_url, import_source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (bioguide_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		    party = EXCLUDED.party, state = EXCLUDED.state,
		    chamber = EXCLUDED.chamber, image_url = EXCLUDED.image_url,
		    import_source = EXCLUDED.import_source, updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)`

	var created bool
	err := r.db.QueryRow(ctx, query,
		person.ID, person.BioguideID, person.FirstName, person.LastName,
		nullString(person.Party), nullString(person.State),
		nullString(string(person.Chamber)), nullString(person.ImageURL),
		nullString(person.ImportSource), now,
	).Scan(&person.ID, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert person %q: %w", person.BioguideID, err)
	}
	return created, nil
}
