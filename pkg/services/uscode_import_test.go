package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/models"
)

type mockStatuteRepository struct {
	byIdentifier map[string]*models.Statute
	count        int64
	err          error
}

func (m *mockStatuteRepository) GetByUSCIdentifier(ctx context.Context, identifier string) (*models.Statute, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byIdentifier[identifier], nil
}

func (m *mockStatuteRepository) InsertTx(ctx context.Context, tx pgx.Tx, statute *models.Statute) (bool, error) {
	return true, m.err
}

func (m *mockStatuteRepository) UpdateTx(ctx context.Context, tx pgx.Tx, statute *models.Statute) (bool, error) {
	return true, m.err
}

func (m *mockStatuteRepository) CountByImportSource(ctx context.Context, source string) (int64, error) {
	return m.count, m.err
}

func TestStatuteSourceURL(t *testing.T) {
	tests := []struct {
		identifier string
		want       string
	}{
		{
			identifier: "/us/usc/t5/s101",
			want:       "https://uscode.house.gov/view.xhtml?req=granuleid:USC-prelim-title5-section101",
		},
		{
			identifier: "/us/usc/t42/s1983",
			want:       "https://uscode.house.gov/view.xhtml?req=granuleid:USC-prelim-title42-section1983",
		},
		{
			// Lettered section numbers pass through.
			identifier: "/us/usc/t26/s280A",
			want:       "https://uscode.house.gov/view.xhtml?req=granuleid:USC-prelim-title26-section280A",
		},
		{identifier: "/us/usc/t5", want: ""},
		{identifier: "not-an-identifier", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statuteSourceURL(tt.identifier), tt.identifier)
	}
}

func TestStatuteFromRecord(t *testing.T) {
	rec := &importer.ImportRecord{
		ExternalID: "/us/usc/t5/s101",
		Fields: map[string]string{
			importer.FieldTitleNumber:   "5",
			importer.FieldTitleName:     "Government Organization and Employees",
			importer.FieldChapterNumber: "1",
			importer.FieldChapterName:   "Organization",
			importer.FieldSectionNumber: "101",
			importer.FieldHeading:       "Executive departments",
			importer.FieldContentText:   "The Executive departments are:",
			importer.FieldSourceCredit:  "(Pub. L. 89-554)",
		},
	}

	statute := statuteFromRecord(rec, "119-21")
	assert.Equal(t, "/us/usc/t5/s101", statute.USCIdentifier)
	assert.Equal(t, 5, statute.TitleNumber)
	assert.Equal(t, "Government Organization and Employees", statute.TitleName)
	assert.Equal(t, "1", statute.ChapterNumber)
	assert.Equal(t, "Organization", statute.ChapterName)
	assert.Equal(t, "101", statute.SectionNumber)
	assert.Equal(t, "Executive departments", statute.Heading)
	assert.Equal(t, "(Pub. L. 89-554)", statute.SourceCredit)
	assert.Equal(t, "119-21", statute.ReleasePoint)
	assert.Equal(t, ImportSourceUSCode, statute.ImportSource)
	assert.Contains(t, statute.SourceURL, "title5-section101")
}

func TestStatuteMatcherStore(t *testing.T) {
	existingID := uuid.New()
	repo := &mockStatuteRepository{
		byIdentifier: map[string]*models.Statute{
			"/us/usc/t5/s101": {ID: existingID, Heading: "Executive departments", ImportSource: "USCODE"},
		},
	}
	store := statuteMatcherStore{repo: repo}

	existing, err := store.FindByExternalID(context.Background(), "/us/usc/t5/s101")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, existingID, existing.ID)
	assert.Equal(t, "USCODE", existing.ImportSource)

	absent, err := store.FindByExternalID(context.Background(), "/us/usc/t5/s999")
	require.NoError(t, err)
	assert.Nil(t, absent)

	// Statutes never match by name.
	candidates, err := store.FindByNormalizedName(context.Background(), "Executive departments")
	require.NoError(t, err)
	assert.Nil(t, candidates)
}
