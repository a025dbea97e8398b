package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
	"github.com/civicgraph/civic-engine/pkg/registry"
	"github.com/civicgraph/civic-engine/pkg/registry/congress"
	"github.com/civicgraph/civic-engine/pkg/registry/fedreg"
	"github.com/civicgraph/civic-engine/pkg/registry/legislators"
)

type mockCongressSearchService struct {
	resp       *congress.SearchResponse
	member     *congress.MemberView
	err        error
	gotFilters congress.SearchFilters
	gotPage    int
	gotSize    int
}

func (m *mockCongressSearchService) SearchMembers(ctx context.Context, filters congress.SearchFilters, page, pageSize int) (*congress.SearchResponse, error) {
	m.gotFilters = filters
	m.gotPage = page
	m.gotSize = pageSize
	return m.resp, m.err
}

func (m *mockCongressSearchService) GetMemberByBioguideID(ctx context.Context, bioguideID string) (*congress.MemberView, error) {
	return m.member, m.err
}

type mockCongressImportService struct {
	outcome  *congress.ImportOutcome
	err      error
	gotID    string
	gotForce bool
}

func (m *mockCongressImportService) ImportMember(ctx context.Context, bioguideID string, forceOverwrite bool) (*congress.ImportOutcome, error) {
	m.gotID = bioguideID
	m.gotForce = forceOverwrite
	return m.outcome, m.err
}

type mockFedregSearchService struct {
	result *fedreg.DocumentResult
	err    error
}

func (m *mockFedregSearchService) GetDocument(ctx context.Context, documentNumber string) (*fedreg.DocumentResult, error) {
	return m.result, m.err
}

type mockFedregImportService struct {
	outcome  *fedreg.ImportOutcome
	err      error
	gotNum   string
	gotForce bool
}

func (m *mockFedregImportService) ImportDocument(ctx context.Context, documentNumber string, forceOverwrite bool) (*fedreg.ImportOutcome, error) {
	m.gotNum = documentNumber
	m.gotForce = forceOverwrite
	return m.outcome, m.err
}

type mockLegislatorsSearchService struct {
	resp       *legislators.SearchResponse
	err        error
	gotFilters legislators.SearchFilters
}

func (m *mockLegislatorsSearchService) Search(ctx context.Context, filters legislators.SearchFilters, page, pageSize int) (*legislators.SearchResponse, error) {
	m.gotFilters = filters
	return m.resp, m.err
}

func (m *mockLegislatorsSearchService) GetByBioguideID(ctx context.Context, bioguideID string) (*legislators.Legislator, error) {
	return nil, m.err
}

type registryMocks struct {
	congressSearch *mockCongressSearchService
	congressImport *mockCongressImportService
	fedregSearch   *mockFedregSearchService
	fedregImport   *mockFedregImportService
	legisSearch    *mockLegislatorsSearchService
}

func newRegistryHandler(m registryMocks) *http.ServeMux {
	if m.congressSearch == nil {
		m.congressSearch = &mockCongressSearchService{}
	}
	if m.congressImport == nil {
		m.congressImport = &mockCongressImportService{}
	}
	if m.fedregSearch == nil {
		m.fedregSearch = &mockFedregSearchService{}
	}
	if m.fedregImport == nil {
		m.fedregImport = &mockFedregImportService{}
	}
	if m.legisSearch == nil {
		m.legisSearch = &mockLegislatorsSearchService{}
	}
	h := NewRegistryHandler(m.congressSearch, m.congressImport, m.fedregSearch, m.fedregImport, m.legisSearch, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestRegistryHandler_SearchCongressMembers(t *testing.T) {
	search := &mockCongressSearchService{
		resp: &congress.SearchResponse{
			Results:  []congress.SearchResult{},
			Total:    537,
			Page:     2,
			PageSize: 50,
		},
	}
	mux := newRegistryHandler(registryMocks{congressSearch: search})

	req := httptest.NewRequest(http.MethodGet,
		"/api/admin/registry/congress/members?name=alex&state=TN&party=R&chamber=senate&page=2&pageSize=50", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, congress.SearchFilters{Name: "alex", State: "TN", Party: "R", Chamber: "senate"}, search.gotFilters)
	assert.Equal(t, 2, search.gotPage)
	assert.Equal(t, 50, search.gotSize)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, float64(537), payload["total"])
}

func TestRegistryHandler_SearchPaginationDefaults(t *testing.T) {
	search := &mockCongressSearchService{resp: &congress.SearchResponse{}}
	mux := newRegistryHandler(registryMocks{congressSearch: search})

	req := httptest.NewRequest(http.MethodGet,
		"/api/admin/registry/congress/members?page=-3&pageSize=9999", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, 1, search.gotPage)
	assert.Equal(t, 20, search.gotSize)
}

func TestRegistryHandler_SearchUpstreamFailure(t *testing.T) {
	search := &mockCongressSearchService{err: errors.New("status 503")}
	mux := newRegistryHandler(registryMocks{congressSearch: search})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/registry/congress/members", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry_unavailable")
}

func TestRegistryHandler_GetCongressMember(t *testing.T) {
	search := &mockCongressSearchService{
		member: &congress.MemberView{BioguideID: "A000360", Name: "Alexander, Lamar"},
	}
	mux := newRegistryHandler(registryMocks{congressSearch: search})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/registry/congress/members/A000360", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A000360")
}

func TestRegistryHandler_GetCongressMemberNotFound(t *testing.T) {
	mux := newRegistryHandler(registryMocks{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/registry/congress/members/Z999999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryHandler_GetFederalRegisterDocument(t *testing.T) {
	existingID := uuid.New()
	search := &mockFedregSearchService{
		result: &fedreg.DocumentResult{
			Document: fedreg.DocumentView{DocumentNumber: "2024-12345", Title: "Air Quality Standards Revision"},
			Source:   "Federal Register",
			Duplicate: registry.DuplicateAnnotation{
				ExistingID: &existingID,
				Confidence: 1.0,
			},
		},
	}
	mux := newRegistryHandler(registryMocks{fedregSearch: search})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/registry/fedreg/documents/2024-12345", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2024-12345")
	assert.Contains(t, rec.Body.String(), existingID.String())
}

func TestRegistryHandler_GetFederalRegisterDocumentNotFound(t *testing.T) {
	mux := newRegistryHandler(registryMocks{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/registry/fedreg/documents/1999-00000", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryHandler_ImportCongressMember(t *testing.T) {
	imp := &mockCongressImportService{
		outcome: &congress.ImportOutcome{ID: uuid.New(), BioguideID: "A000360", Created: true},
	}
	mux := newRegistryHandler(registryMocks{congressImport: imp})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/admin/registry/congress/members/A000360/import?forceOverwrite=true", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A000360", imp.gotID)
	assert.True(t, imp.gotForce)
}

func TestRegistryHandler_ImportForceFromJSONBody(t *testing.T) {
	imp := &mockFedregImportService{
		outcome: &fedreg.ImportOutcome{DocumentNumber: "2024-12345", Updated: true},
	}
	mux := newRegistryHandler(registryMocks{fedregImport: imp})

	req := httptest.NewRequest(http.MethodPost,
		"/api/admin/registry/fedreg/documents/2024-12345/import",
		strings.NewReader(`{"forceOverwrite": true}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-12345", imp.gotNum)
	assert.True(t, imp.gotForce)
}

func TestRegistryHandler_ImportDefaultsToNoOverwrite(t *testing.T) {
	imp := &mockCongressImportService{
		outcome: &congress.ImportOutcome{BioguideID: "A000360", Skipped: true},
	}
	mux := newRegistryHandler(registryMocks{congressImport: imp})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/admin/registry/congress/members/A000360/import", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, imp.gotForce)
}

func TestRegistryHandler_ImportNotFoundUpstream(t *testing.T) {
	imp := &mockFedregImportService{
		err: fmt.Errorf("document 1999-00000: %w", apperrors.ErrNotFound),
	}
	mux := newRegistryHandler(registryMocks{fedregImport: imp})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/admin/registry/fedreg/documents/1999-00000/import", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestRegistryHandler_ImportUpstreamFailure(t *testing.T) {
	imp := &mockCongressImportService{err: errors.New("status 502")}
	mux := newRegistryHandler(registryMocks{congressImport: imp})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/admin/registry/congress/members/A000360/import", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "import_failed")
}

func TestRegistryHandler_SearchLegislators(t *testing.T) {
	search := &mockLegislatorsSearchService{
		resp: &legislators.SearchResponse{Total: 3, Page: 1, PageSize: 20, Cached: true},
	}
	mux := newRegistryHandler(registryMocks{legisSearch: search})

	req := httptest.NewRequest(http.MethodGet,
		"/api/admin/registry/legislators?name=murray&bioguideId=M001111&state=WA", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, legislators.SearchFilters{Name: "murray", BioguideID: "M001111", State: "WA"}, search.gotFilters)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, true, payload["cached"])
}

func TestParseForceOverwrite(t *testing.T) {
	query := httptest.NewRequest(http.MethodPost, "/x?forceOverwrite=1", nil)
	assert.True(t, parseForceOverwrite(query))

	falsy := httptest.NewRequest(http.MethodPost, "/x?forceOverwrite=false", nil)
	assert.False(t, parseForceOverwrite(falsy))

	body := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"forceOverwrite": true}`))
	assert.True(t, parseForceOverwrite(body))

	empty := httptest.NewRequest(http.MethodPost, "/x", nil)
	assert.False(t, parseForceOverwrite(empty))
}
