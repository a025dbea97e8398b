package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
	"github.com/civicgraph/civic-engine/pkg/logging"
	"github.com/civicgraph/civic-engine/pkg/registry/congress"
	"github.com/civicgraph/civic-engine/pkg/registry/fedreg"
	"github.com/civicgraph/civic-engine/pkg/registry/legislators"
)

// RegistryHandler exposes the admin search-and-import endpoints for the three
// external registries. Search results carry duplicate annotations so an
// operator can see local matches before confirming an import.
type RegistryHandler struct {
	congressSearch congress.SearchService
	congressImport congress.ImportService
	fedregSearch   fedreg.SearchService
	fedregImport   fedreg.ImportService
	legisSearch    legislators.SearchService
	logger         *zap.Logger
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(
	congressSearch congress.SearchService,
	congressImport congress.ImportService,
	fedregSearch fedreg.SearchService,
	fedregImport fedreg.ImportService,
	legisSearch legislators.SearchService,
	logger *zap.Logger,
) *RegistryHandler {
	return &RegistryHandler{
		congressSearch: congressSearch,
		congressImport: congressImport,
		fedregSearch:   fedregSearch,
		fedregImport:   fedregImport,
		legisSearch:    legisSearch,
		logger:         logger.Named("registry-handler"),
	}
}

// RegisterRoutes registers the registry handler's routes on the given mux.
func (h *RegistryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/registry/congress/members", h.SearchCongressMembers)
	mux.HandleFunc("GET /api/admin/registry/congress/members/{bioguideId}", h.GetCongressMember)
	mux.HandleFunc("POST /api/admin/registry/congress/members/{bioguideId}/import", h.ImportCongressMember)
	mux.HandleFunc("GET /api/admin/registry/fedreg/documents/{documentNumber}", h.GetFederalRegisterDocument)
	mux.HandleFunc("POST /api/admin/registry/fedreg/documents/{documentNumber}/import", h.ImportFederalRegisterDocument)
	mux.HandleFunc("GET /api/admin/registry/legislators", h.SearchLegislators)
}

// SearchCongressMembers handles GET /api/admin/registry/congress/members.
// Supported query parameters: name, state, party, chamber, page, pageSize.
func (h *RegistryHandler) SearchCongressMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := congress.SearchFilters{
		Name:    q.Get("name"),
		State:   q.Get("state"),
		Party:   q.Get("party"),
		Chamber: q.Get("chamber"),
	}
	page, pageSize := pagination(q.Get("page"), q.Get("pageSize"))

	resp, err := h.congressSearch.SearchMembers(r.Context(), filters, page, pageSize)
	if err != nil {
		h.logger.Error("Congress member search failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusBadGateway, "registry_unavailable", "congress.gov search failed")
		return
	}
	_ = WriteJSON(w, http.StatusOK, resp)
}

// GetCongressMember handles GET /api/admin/registry/congress/members/{bioguideId}.
func (h *RegistryHandler) GetCongressMember(w http.ResponseWriter, r *http.Request) {
	bioguideID := r.PathValue("bioguideId")

	member, err := h.congressSearch.GetMemberByBioguideID(r.Context(), bioguideID)
	if err != nil {
		h.logger.Error("Congress member lookup failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusBadGateway, "registry_unavailable", "congress.gov lookup failed")
		return
	}
	if member == nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "member not found")
		return
	}
	_ = WriteJSON(w, http.StatusOK, member)
}

// ImportCongressMember handles POST /api/admin/registry/congress/members/{bioguideId}/import.
func (h *RegistryHandler) ImportCongressMember(w http.ResponseWriter, r *http.Request) {
	bioguideID := r.PathValue("bioguideId")
	force := parseForceOverwrite(r)

	outcome, err := h.congressImport.ImportMember(r.Context(), bioguideID, force)
	if err != nil {
		h.writeImportError(w, err, "member import failed")
		return
	}
	_ = WriteJSON(w, http.StatusOK, outcome)
}

// GetFederalRegisterDocument handles GET /api/admin/registry/fedreg/documents/{documentNumber}.
// Returns the upstream document annotated with its local duplicate status.
func (h *RegistryHandler) GetFederalRegisterDocument(w http.ResponseWriter, r *http.Request) {
	documentNumber := r.PathValue("documentNumber")

	result, err := h.fedregSearch.GetDocument(r.Context(), documentNumber)
	if err != nil {
		h.logger.Error("Federal register lookup failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusBadGateway, "registry_unavailable", "federal register lookup failed")
		return
	}
	if result == nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "document not found")
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

// ImportFederalRegisterDocument handles POST /api/admin/registry/fedreg/documents/{documentNumber}/import.
func (h *RegistryHandler) ImportFederalRegisterDocument(w http.ResponseWriter, r *http.Request) {
	documentNumber := r.PathValue("documentNumber")
	force := parseForceOverwrite(r)

	outcome, err := h.fedregImport.ImportDocument(r.Context(), documentNumber, force)
	if err != nil {
		h.writeImportError(w, err, "document import failed")
		return
	}
	_ = WriteJSON(w, http.StatusOK, outcome)
}

// SearchLegislators handles GET /api/admin/registry/legislators.
// Supported query parameters: name, bioguideId, state, page, pageSize.
func (h *RegistryHandler) SearchLegislators(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := legislators.SearchFilters{
		Name:       q.Get("name"),
		BioguideID: q.Get("bioguideId"),
		State:      q.Get("state"),
	}
	page, pageSize := pagination(q.Get("page"), q.Get("pageSize"))

	resp, err := h.legisSearch.Search(r.Context(), filters, page, pageSize)
	if err != nil {
		h.logger.Error("Legislators search failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusBadGateway, "registry_unavailable", "legislators dataset fetch failed")
		return
	}
	_ = WriteJSON(w, http.StatusOK, resp)
}

func (h *RegistryHandler) writeImportError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "record not found in the upstream registry")
		return
	}
	h.logger.Error("Registry import failed", zap.String("error", logging.SanitizeError(err)))
	_ = ErrorResponse(w, http.StatusBadGateway, "import_failed", msg)
}

// parseForceOverwrite reads the overwrite flag from either the query string
// or a JSON body {"forceOverwrite": true}.
func parseForceOverwrite(r *http.Request) bool {
	if v := r.URL.Query().Get("forceOverwrite"); v != "" {
		force, _ := strconv.ParseBool(v)
		return force
	}
	var body struct {
		ForceOverwrite bool `json:"forceOverwrite"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	return body.ForceOverwrite
}

func pagination(pageStr, pageSizeStr string) (page, pageSize int) {
	page, _ = strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(pageSizeStr)
	if pageSize < 1 || pageSize > 250 {
		pageSize = 20
	}
	return page, pageSize
}
