package registry

import (
	"context"

	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/repositories"
)

// PersonStore adapts the person repository to the matcher lookup surface so
// member search results can be checked against the local store. People are
// keyed by bioguide id; there is no name fallback.
type PersonStore struct {
	Repo repositories.PersonRepository
}

var _ importer.MatcherStore = PersonStore{}

func (s PersonStore) FindByExternalID(ctx context.Context, externalID string) (*importer.ExistingEntity, error) {
	person, err := s.Repo.GetByBioguideID(ctx, externalID)
	if err != nil || person == nil {
		return nil, err
	}
	return &importer.ExistingEntity{
		ID:           person.ID,
		Name:         person.FirstName + " " + person.LastName,
		ImportSource: person.ImportSource,
	}, nil
}

func (s PersonStore) FindByNormalizedName(ctx context.Context, name string) ([]*importer.ExistingEntity, error) {
	return nil, nil
}

// RegulationStore adapts the regulation repository, keyed by Federal Register
// document number.
type RegulationStore struct {
	Repo repositories.RegulationRepository
}

var _ importer.MatcherStore = RegulationStore{}

func (s RegulationStore) FindByExternalID(ctx context.Context, externalID string) (*importer.ExistingEntity, error) {
	reg, err := s.Repo.GetByDocumentNumber(ctx, externalID)
	if err != nil || reg == nil {
		return nil, err
	}
	return &importer.ExistingEntity{
		ID:           reg.ID,
		Name:         reg.Title,
		ImportSource: reg.ImportSource,
	}, nil
}

func (s RegulationStore) FindByNormalizedName(ctx context.Context, name string) ([]*importer.ExistingEntity, error) {
	return nil, nil
}
