// Package services contains the import pipelines and registry workflows that
// sit between the HTTP handlers and the repositories.
package services

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/models"
	"github.com/civicgraph/civic-engine/pkg/repositories"
)

// ImportSourceGovman tags every record the Government Manual pipeline writes.
const ImportSourceGovman = "GOVMAN"

// GovmanImportService imports Government Manual XML exports of the federal
// organizational chart.
type GovmanImportService interface {
	// ImportFromStream runs a full import from an XML byte stream. Returns
	// apperrors.ErrImportInProgress when a GOVMAN run is already in flight.
	ImportFromStream(ctx context.Context, r io.Reader) (*importer.Result, error)
	// Status reports whether a GOVMAN run is in flight.
	Status() importer.RunState
	// LastResult returns the most recent completed result, if any.
	LastResult() (*importer.Result, bool)
	// CountImported returns how many organizations the pipeline owns.
	CountImported(ctx context.Context) (int64, error)
}

type govmanImportService struct {
	orgRepo      repositories.OrganizationRepository
	orchestrator *importer.Orchestrator
	writer       importer.RecordWriter
	parser       *importer.GovmanParser
	resolver     *importer.Resolver
	logger       *zap.Logger
}

// NewGovmanImportService creates a new GovmanImportService.
func NewGovmanImportService(
	orgRepo repositories.OrganizationRepository,
	orchestrator *importer.Orchestrator,
	writer importer.RecordWriter,
	logger *zap.Logger,
) GovmanImportService {
	return &govmanImportService{
		orgRepo:      orgRepo,
		orchestrator: orchestrator,
		writer:       writer,
		parser:       importer.NewGovmanParser(logger),
		resolver:     importer.NewResolver(logger),
		logger:       logger.Named("govman-import"),
	}
}

var _ GovmanImportService = (*govmanImportService)(nil)

func (s *govmanImportService) ImportFromStream(ctx context.Context, r io.Reader) (*importer.Result, error) {
	return s.orchestrator.Run(ctx, ImportSourceGovman, func(ctx context.Context, result *importer.Result) error {
		return s.runImport(ctx, r, result)
	})
}

func (s *govmanImportService) Status() importer.RunState {
	return s.orchestrator.Status(ImportSourceGovman)
}

func (s *govmanImportService) LastResult() (*importer.Result, bool) {
	return s.orchestrator.LastResult(ImportSourceGovman)
}

func (s *govmanImportService) CountImported(ctx context.Context) (int64, error) {
	return s.orgRepo.CountByImportSource(ctx, ImportSourceGovman)
}

func (s *govmanImportService) runImport(ctx context.Context, r io.Reader, result *importer.Result) error {
	// The resolver needs the whole batch before pass two, so the GOVMAN
	// stream is drained up front. Manual exports are bounded at 15MB.
	records, err := importer.Drain(s.parser.Parse(r))
	if err != nil {
		return err
	}
	result.Total = len(records)
	s.logger.Info("Parsed GOVMAN entities", zap.Int("count", len(records)))

	valid := make([]*importer.ImportRecord, 0, len(records))
	for _, rec := range records {
		if verr := validateGovmanRecord(rec); verr != nil {
			result.Failed++
			result.AddError(verr)
			continue
		}
		valid = append(valid, rec)
	}

	nodes, herrs := s.resolver.Resolve(valid)
	for _, herr := range herrs {
		// Orphan roots and broken cycles are reported but still imported.
		result.AddError(herr)
	}

	matcher := importer.NewMatcher(
		organizationMatcherStore{repo: s.orgRepo},
		ImportSourceGovman,
		importer.MatcherOptions{NameFallback: true, ForceOverwrite: true},
		s.logger,
	)

	// Ids become visible to parent wiring only after their batch commits, so
	// a rolled-back batch never feeds phantom rows into SetParent.
	idsByExternal := make(map[string]uuid.UUID, len(nodes))
	pending := make(map[string]uuid.UUID)
	var items []importer.BatchItem
	for _, node := range nodes {
		rec := node.Record
		decision, err := matcher.Match(ctx, govmanKey(rec.ExternalID), rec.Field(importer.FieldAgencyName))
		if err != nil {
			return &importer.Error{Kind: importer.KindWriteFailure, RecordID: rec.ExternalID, Err: err,
				Msg: "store lookup failed"}
		}
		if decision.Kind == importer.DecisionReject {
			result.Failed++
			result.AddError(&importer.Error{
				Kind:     importer.KindAmbiguousMatch,
				RecordID: rec.ExternalID,
				Msg:      decision.Reason,
			})
			continue
		}
		items = append(items, importer.BatchItem{Record: rec, Decision: decision})
	}

	writeErr := s.writer.Write(ctx, items, s.applyFunc(pending), func() {
		for external, id := range pending {
			idsByExternal[external] = id
		}
		clear(pending)
	}, result)

	// Parent wiring runs over whatever committed, even after a write failure.
	s.wireParents(ctx, nodes, idsByExternal, result)

	return writeErr
}

// applyFunc persists one organization inside the batch transaction and records
// its id in pending. The caller merges pending into the parent-wiring map on
// batch commit.
func (s *govmanImportService) applyFunc(pending map[string]uuid.UUID) importer.ApplyFunc {
	return func(ctx context.Context, tx pgx.Tx, item importer.BatchItem) (importer.WriteOutcome, error) {
		rec := item.Record
		switch item.Decision.Kind {
		case importer.DecisionCreate:
			org := organizationFromRecord(rec)
			inserted, err := s.orgRepo.InsertTx(ctx, tx, org)
			if err != nil {
				return 0, err
			}
			if !inserted {
				// Unique-constraint collision: a concurrent writer got there
				// first. Late-discovered duplicate, not an overwrite.
				return importer.OutcomeSkipped, nil
			}
			pending[rec.ExternalID] = org.ID
			return importer.OutcomeCreated, nil

		case importer.DecisionUpdate:
			org := organizationFromRecord(rec)
			org.ID = item.Decision.ExistingID
			pending[rec.ExternalID] = org.ID
			changed, err := s.orgRepo.UpdateTx(ctx, tx, org)
			if err != nil {
				return 0, err
			}
			if !changed {
				return importer.OutcomeUnchanged, nil
			}
			return importer.OutcomeUpdated, nil

		default:
			pending[rec.ExternalID] = item.Decision.ExistingID
			return importer.OutcomeSkipped, nil
		}
	}
}

// wireParents sets resolved parent references once both sides of each edge
// have persisted ids.
func (s *govmanImportService) wireParents(ctx context.Context, nodes []*importer.ResolvedNode, idsByExternal map[string]uuid.UUID, result *importer.Result) {
	for _, node := range nodes {
		if node.Parent == nil {
			continue
		}
		childID, ok := idsByExternal[node.Record.ExternalID]
		if !ok {
			continue
		}
		parentID, ok := idsByExternal[node.Parent.Record.ExternalID]
		if !ok {
			// The parent may exist from a prior run even if this run skipped it.
			existing, err := s.orgRepo.GetByExternalID(ctx, govmanKey(node.Parent.Record.ExternalID))
			if err != nil || existing == nil {
				s.logger.Debug("Could not resolve persisted parent",
					zap.String("external_id", node.Record.ExternalID),
					zap.String("parent_external_id", node.Parent.Record.ExternalID))
				continue
			}
			parentID = existing.ID
		}
		if err := s.orgRepo.SetParent(ctx, childID, parentID); err != nil {
			result.AddErrorf("[hierarchy %s] failed to set parent: %v", node.Record.ExternalID, err)
		}
	}
}

func validateGovmanRecord(rec *importer.ImportRecord) *importer.Error {
	if rec.ExternalID == "" {
		return &importer.Error{Kind: importer.KindValidation, RecordID: "unknown",
			Field: "EntityId", Msg: "missing EntityId"}
	}
	if rec.Field(importer.FieldAgencyName) == "" {
		return &importer.Error{Kind: importer.KindValidation, RecordID: rec.ExternalID,
			Field: "AgencyName", Msg: "missing AgencyName"}
	}
	return nil
}

func govmanKey(entityID string) string {
	return ImportSourceGovman + ":" + entityID
}

func organizationFromRecord(rec *importer.ImportRecord) *models.GovernmentOrganization {
	return &models.GovernmentOrganization{
		OfficialName:     rec.Field(importer.FieldAgencyName),
		Branch:           models.BranchFromCategory(rec.Field(importer.FieldCategory)),
		OrgType:          models.OrgTypeFromEntityType(rec.Field(importer.FieldEntityType)),
		SortOrder:        rec.SortOrder,
		MissionStatement: rec.Field(importer.FieldMissionStatement),
		WebsiteURL:       rec.Field(importer.FieldWebAddress),
		ExternalID:       govmanKey(rec.ExternalID),
		ImportSource:     ImportSourceGovman,
	}
}

// organizationMatcherStore adapts the organization repository to the matcher's
// lookup surface.
type organizationMatcherStore struct {
	repo repositories.OrganizationRepository
}

var _ importer.MatcherStore = organizationMatcherStore{}

func (s organizationMatcherStore) FindByExternalID(ctx context.Context, externalID string) (*importer.ExistingEntity, error) {
	org, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil || org == nil {
		return nil, err
	}
	return existingFromOrganization(org), nil
}

func (s organizationMatcherStore) FindByNormalizedName(ctx context.Context, name string) ([]*importer.ExistingEntity, error) {
	orgs, err := s.repo.GetByNameInsensitive(ctx, name)
	if err != nil {
		return nil, err
	}
	existing := make([]*importer.ExistingEntity, 0, len(orgs))
	for _, org := range orgs {
		existing = append(existing, existingFromOrganization(org))
	}
	return existing, nil
}

func existingFromOrganization(org *models.GovernmentOrganization) *importer.ExistingEntity {
	return &importer.ExistingEntity{
		ID:           org.ID,
		Name:         org.OfficialName,
		ImportSource: org.ImportSource,
	}
}
