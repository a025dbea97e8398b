package congress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
	"github.com/civicgraph/civic-engine/pkg/models"
)

type mockPersonRepository struct {
	existing      *models.Person
	upsertCreated bool
	upserted      *models.Person
	err           error
}

func (m *mockPersonRepository) GetByBioguideID(ctx context.Context, bioguideID string) (*models.Person, error) {
	return m.existing, m.err
}

func (m *mockPersonRepository) Upsert(ctx context.Context, person *models.Person) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	person.ID = uuid.New()
	m.upserted = person
	return m.upsertCreated, nil
}

func memberDetailServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/member/A000360" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"member": {
			"bioguideId": "A000360",
			"name": "Alexander, Lamar",
			"state": "Tennessee",
			"partyName": "Republican",
			"depiction": {"imageUrl": "https://example.test/a000360.jpg"},
			"terms": [{"chamber": "Senate", "startYear": 2003}]
		}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImportService_ImportMember(t *testing.T) {
	srv := memberDetailServer(t)
	repo := &mockPersonRepository{upsertCreated: true}
	svc := NewImportService(testClient(srv.URL), repo, zap.NewNop())

	outcome, err := svc.ImportMember(context.Background(), "A000360", false)
	require.NoError(t, err)

	assert.True(t, outcome.Created)
	assert.False(t, outcome.Updated)
	assert.False(t, outcome.Skipped)
	assert.Equal(t, "A000360", outcome.BioguideID)
	assert.Equal(t, "Alexander, Lamar", outcome.Name)

	require.NotNil(t, repo.upserted)
	assert.Equal(t, "Lamar", repo.upserted.FirstName)
	assert.Equal(t, "Alexander", repo.upserted.LastName)
	assert.Equal(t, "R", repo.upserted.Party)
	assert.Equal(t, models.Chamber("senate"), repo.upserted.Chamber)
	assert.Equal(t, "https://example.test/a000360.jpg", repo.upserted.ImageURL)
	assert.Equal(t, ImportSourceCongress, repo.upserted.ImportSource)
}

func TestImportService_ExistingWithoutForceIsSkipped(t *testing.T) {
	srv := memberDetailServer(t)
	existingID := uuid.New()
	repo := &mockPersonRepository{
		existing: &models.Person{
			ID: existingID, BioguideID: "A000360",
			FirstName: "Lamar", LastName: "Alexander",
		},
	}
	svc := NewImportService(testClient(srv.URL), repo, zap.NewNop())

	outcome, err := svc.ImportMember(context.Background(), "A000360", false)
	require.NoError(t, err)

	assert.True(t, outcome.Skipped)
	assert.Equal(t, existingID, outcome.ID)
	assert.Contains(t, outcome.Message, "forceOverwrite")
	// No write happened.
	assert.Nil(t, repo.upserted)
}

func TestImportService_ExistingWithForceIsUpdated(t *testing.T) {
	srv := memberDetailServer(t)
	repo := &mockPersonRepository{
		existing: &models.Person{ID: uuid.New(), BioguideID: "A000360"},
	}
	svc := NewImportService(testClient(srv.URL), repo, zap.NewNop())

	outcome, err := svc.ImportMember(context.Background(), "A000360", true)
	require.NoError(t, err)

	assert.False(t, outcome.Skipped)
	assert.False(t, outcome.Created)
	assert.True(t, outcome.Updated)
	require.NotNil(t, repo.upserted)
}

func TestImportService_UnknownMember(t *testing.T) {
	srv := memberDetailServer(t)
	svc := NewImportService(testClient(srv.URL), &mockPersonRepository{}, zap.NewNop())

	_, err := svc.ImportMember(context.Background(), "Z999999", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
