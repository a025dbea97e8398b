package fedreg

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/registry"
)

type stubMatcherStore struct {
	byExternalID map[string]*importer.ExistingEntity
}

func (s *stubMatcherStore) FindByExternalID(ctx context.Context, externalID string) (*importer.ExistingEntity, error) {
	return s.byExternalID[externalID], nil
}

func (s *stubMatcherStore) FindByNormalizedName(ctx context.Context, name string) ([]*importer.ExistingEntity, error) {
	return nil, nil
}

func newSearchService(t *testing.T, baseURL string, store importer.MatcherStore) SearchService {
	t.Helper()
	if store == nil {
		store = &stubMatcherStore{}
	}
	checker := registry.NewDuplicateChecker(store, ImportSourceFederalRegister, zap.NewNop())
	return NewSearchService(testFedregClient(baseURL), checker, zap.NewNop())
}

func TestSearchService_GetDocument(t *testing.T) {
	srv := documentServer(t)
	svc := newSearchService(t, srv.URL, nil)

	result, err := svc.GetDocument(context.Background(), "2024-12345")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "2024-12345", result.Document.DocumentNumber)
	assert.Equal(t, "Air Quality Standards Revision", result.Document.Title)
	assert.Equal(t, "Rule", result.Document.Type)
	assert.Equal(t, "2024-06-15", result.Document.PublicationDate)
	assert.Equal(t, "https://example.test/2024-12345.pdf", result.Document.PDFURL)
	// Nameless agency references are dropped.
	assert.Equal(t, []string{"Environmental Protection Agency"}, result.Document.AgencyNames)

	assert.Equal(t, "Federal Register", result.Source)
	assert.Equal(t, "https://www.federalregister.gov/d/2024-12345", result.SourceURL)
	assert.False(t, result.Duplicate.IsDuplicate())
}

func TestSearchService_GetDocumentAnnotatesDuplicate(t *testing.T) {
	srv := documentServer(t)
	existingID := uuid.New()
	store := &stubMatcherStore{byExternalID: map[string]*importer.ExistingEntity{
		"2024-12345": {
			ID:           existingID,
			Name:         "Air Quality Standards Revision",
			ImportSource: ImportSourceFederalRegister,
		},
	}}
	svc := newSearchService(t, srv.URL, store)

	result, err := svc.GetDocument(context.Background(), "2024-12345")
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, result.Duplicate.ExistingID)
	assert.Equal(t, existingID, *result.Duplicate.ExistingID)
	assert.InDelta(t, 1.0, result.Duplicate.Confidence, 0.0001)
}

func TestSearchService_GetDocumentUnknown(t *testing.T) {
	srv := documentServer(t)
	svc := newSearchService(t, srv.URL, nil)

	result, err := svc.GetDocument(context.Background(), "1999-00000")
	require.NoError(t, err)
	assert.Nil(t, result)
}
