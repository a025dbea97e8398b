package congress

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
	"github.com/civicgraph/civic-engine/pkg/models"
	"github.com/civicgraph/civic-engine/pkg/repositories"
)

// ImportSourceCongress tags people imported from Congress.gov.
const ImportSourceCongress = "CONGRESS"

// ImportOutcome reports what a single-member import did.
type ImportOutcome struct {
	ID         uuid.UUID `json:"id,omitempty"`
	BioguideID string    `json:"bioguideId"`
	Name       string    `json:"name,omitempty"`
	Created    bool      `json:"created"`
	Updated    bool      `json:"updated"`
	Skipped    bool      `json:"skipped"`
	Message    string    `json:"message,omitempty"`
}

// ImportService imports individual Congress.gov members on operator request.
// Like the other registry imports, an existing record is only overwritten
// when the operator passes the explicit overwrite flag.
type ImportService interface {
	ImportMember(ctx context.Context, bioguideID string, forceOverwrite bool) (*ImportOutcome, error)
}

type importService struct {
	client     *Client
	personRepo repositories.PersonRepository
	logger     *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(client *Client, personRepo repositories.PersonRepository, logger *zap.Logger) ImportService {
	return &importService{
		client:     client,
		personRepo: personRepo,
		logger:     logger.Named("congress-import"),
	}
}

var _ ImportService = (*importService)(nil)

func (s *importService) ImportMember(ctx context.Context, bioguideID string, forceOverwrite bool) (*ImportOutcome, error) {
	s.logger.Info("Importing congress member",
		zap.String("bioguideId", bioguideID),
		zap.Bool("forceOverwrite", forceOverwrite))

	existing, err := s.personRepo.GetByBioguideID(ctx, bioguideID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing member: %w", err)
	}

	if existing != nil && !forceOverwrite {
		return &ImportOutcome{
			ID:         existing.ID,
			BioguideID: existing.BioguideID,
			Name:       existing.FirstName + " " + existing.LastName,
			Skipped:    true,
			Message:    "record already exists, set forceOverwrite to update",
		}, nil
	}

	member, err := s.client.FetchMemberByBioguideID(ctx, bioguideID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("member %s: %w", bioguideID, apperrors.ErrNotFound)
	}

	view := memberView(member)
	person := &models.Person{
		BioguideID:   view.BioguideID,
		FirstName:    view.FirstName,
		LastName:     view.LastName,
		Party:        view.Party,
		State:        view.State,
		Chamber:      models.Chamber(view.Chamber),
		ImageURL:     view.ImageURL,
		ImportSource: ImportSourceCongress,
	}
	created, err := s.personRepo.Upsert(ctx, person)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert member %s: %w", bioguideID, err)
	}

	return &ImportOutcome{
		ID:         person.ID,
		BioguideID: person.BioguideID,
		Name:       view.Name,
		Created:    created,
		Updated:    !created,
	}, nil
}
