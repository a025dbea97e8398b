package services

import (
	"context"
	"io"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/models"
	"github.com/civicgraph/civic-engine/pkg/repositories"
)

// ImportSourceUSCode tags every record the US Code pipeline writes.
const ImportSourceUSCode = "USCODE"

// DefaultReleasePoint tags uploads that don't declare an upstream release.
const DefaultReleasePoint = "file-upload"

var granulePattern = regexp.MustCompile(`^/us/usc/t(\d+)/s(.+)$`)

// UsCodeImportService imports US Code title files in USLM XML from
// uscode.house.gov. Title files run to 100MB, so sections flow straight from
// the stream parser into batched writes without materializing the document.
type UsCodeImportService interface {
	// ImportFromStream runs a full import from a USLM XML byte stream.
	ImportFromStream(ctx context.Context, r io.Reader, releasePoint string) (*importer.Result, error)
	// Status reports whether a US Code run is in flight.
	Status() importer.RunState
	// LastResult returns the most recent completed result, if any.
	LastResult() (*importer.Result, bool)
	// CountImported returns how many sections the pipeline owns.
	CountImported(ctx context.Context) (int64, error)
}

type usCodeImportService struct {
	statuteRepo  repositories.StatuteRepository
	orchestrator *importer.Orchestrator
	writer       importer.RecordWriter
	parser       *importer.UslmParser
	batchSize    int
	logger       *zap.Logger
}

// NewUsCodeImportService creates a new UsCodeImportService.
func NewUsCodeImportService(
	statuteRepo repositories.StatuteRepository,
	orchestrator *importer.Orchestrator,
	writer importer.RecordWriter,
	batchSize int,
	logger *zap.Logger,
) UsCodeImportService {
	if batchSize < 1 {
		batchSize = importer.DefaultBatchSize
	}
	return &usCodeImportService{
		statuteRepo:  statuteRepo,
		orchestrator: orchestrator,
		writer:       writer,
		parser:       importer.NewUslmParser(logger),
		batchSize:    batchSize,
		logger:       logger.Named("uscode-import"),
	}
}

var _ UsCodeImportService = (*usCodeImportService)(nil)

func (s *usCodeImportService) ImportFromStream(ctx context.Context, r io.Reader, releasePoint string) (*importer.Result, error) {
	if releasePoint == "" {
		releasePoint = DefaultReleasePoint
	}
	return s.orchestrator.Run(ctx, ImportSourceUSCode, func(ctx context.Context, result *importer.Result) error {
		return s.runImport(ctx, r, releasePoint, result)
	})
}

func (s *usCodeImportService) Status() importer.RunState {
	return s.orchestrator.Status(ImportSourceUSCode)
}

func (s *usCodeImportService) LastResult() (*importer.Result, bool) {
	return s.orchestrator.LastResult(ImportSourceUSCode)
}

func (s *usCodeImportService) CountImported(ctx context.Context) (int64, error) {
	return s.statuteRepo.CountByImportSource(ctx, ImportSourceUSCode)
}

func (s *usCodeImportService) runImport(ctx context.Context, r io.Reader, releasePoint string, result *importer.Result) error {
	stream := s.parser.Parse(r)
	matcher := importer.NewMatcher(
		statuteMatcherStore{repo: s.statuteRepo},
		ImportSourceUSCode,
		// Statute identifiers are stable; there is no name fallback.
		importer.MatcherOptions{ForceOverwrite: true},
		s.logger,
	)
	apply := s.applyFunc(releasePoint)

	// Sections are matched and written one batch at a time, so memory stays
	// bounded by the batch size regardless of title file size.
	chunk := make([]importer.BatchItem, 0, s.batchSize)
	for {
		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		result.Total++
		if rec.ExternalID == "" {
			result.Failed++
			result.AddError(&importer.Error{Kind: importer.KindValidation,
				RecordID: rec.Field(importer.FieldSectionNumber),
				Field:    "identifier", Msg: "missing section identifier"})
			continue
		}

		decision, err := matcher.Match(ctx, rec.ExternalID, "")
		if err != nil {
			return &importer.Error{Kind: importer.KindWriteFailure,
				RecordID: rec.ExternalID, Err: err, Msg: "store lookup failed"}
		}
		chunk = append(chunk, importer.BatchItem{Record: rec, Decision: decision})

		if len(chunk) >= s.batchSize {
			if err := s.writer.Write(ctx, chunk, apply, nil, result); err != nil {
				return err
			}
			chunk = chunk[:0]
			if result.Total%1000 == 0 {
				s.logger.Info("Import progress", zap.Int("sections", result.Total))
			}
		}
	}

	if len(chunk) > 0 {
		if err := s.writer.Write(ctx, chunk, apply, nil, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *usCodeImportService) applyFunc(releasePoint string) importer.ApplyFunc {
	return func(ctx context.Context, tx pgx.Tx, item importer.BatchItem) (importer.WriteOutcome, error) {
		statute := statuteFromRecord(item.Record, releasePoint)
		switch item.Decision.Kind {
		case importer.DecisionCreate:
			inserted, err := s.statuteRepo.InsertTx(ctx, tx, statute)
			if err != nil {
				return 0, err
			}
			if !inserted {
				return importer.OutcomeSkipped, nil
			}
			return importer.OutcomeCreated, nil

		case importer.DecisionUpdate:
			statute.ID = item.Decision.ExistingID
			changed, err := s.statuteRepo.UpdateTx(ctx, tx, statute)
			if err != nil {
				return 0, err
			}
			if !changed {
				return importer.OutcomeUnchanged, nil
			}
			return importer.OutcomeUpdated, nil

		default:
			return importer.OutcomeSkipped, nil
		}
	}
}

func statuteFromRecord(rec *importer.ImportRecord, releasePoint string) *models.Statute {
	titleNumber, _ := strconv.Atoi(rec.Field(importer.FieldTitleNumber))
	return &models.Statute{
		USCIdentifier: rec.ExternalID,
		TitleNumber:   titleNumber,
		TitleName:     rec.Field(importer.FieldTitleName),
		ChapterNumber: rec.Field(importer.FieldChapterNumber),
		ChapterName:   rec.Field(importer.FieldChapterName),
		SectionNumber: rec.Field(importer.FieldSectionNumber),
		Heading:       rec.Field(importer.FieldHeading),
		ContentText:   rec.Field(importer.FieldContentText),
		SourceCredit:  rec.Field(importer.FieldSourceCredit),
		SourceURL:     statuteSourceURL(rec.ExternalID),
		ReleasePoint:  releasePoint,
		ImportSource:  ImportSourceUSCode,
	}
}

// statuteSourceURL builds the official uscode.house.gov view URL.
// Example: /us/usc/t5/s101 -> ...?req=granuleid:USC-prelim-title5-section101
func statuteSourceURL(uscIdentifier string) string {
	m := granulePattern.FindStringSubmatch(uscIdentifier)
	if m == nil {
		return ""
	}
	return "https://uscode.house.gov/view.xhtml?req=granuleid:USC-prelim-title" + m[1] + "-section" + m[2]
}

// statuteMatcherStore adapts the statute repository to the matcher's lookup
// surface. Statutes have no name-fallback path.
type statuteMatcherStore struct {
	repo repositories.StatuteRepository
}

var _ importer.MatcherStore = statuteMatcherStore{}

func (s statuteMatcherStore) FindByExternalID(ctx context.Context, externalID string) (*importer.ExistingEntity, error) {
	statute, err := s.repo.GetByUSCIdentifier(ctx, externalID)
	if err != nil || statute == nil {
		return nil, err
	}
	return &importer.ExistingEntity{
		ID:           statute.ID,
		Name:         statute.Heading,
		ImportSource: statute.ImportSource,
	}, nil
}

func (s statuteMatcherStore) FindByNormalizedName(ctx context.Context, name string) ([]*importer.ExistingEntity, error) {
	return nil, nil
}
