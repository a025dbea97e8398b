package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
	"github.com/civicgraph/civic-engine/pkg/config"
	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/services"
)

// ImportHandler exposes the admin endpoints that trigger and observe the
// file-upload import pipelines. Uploads stream straight into the parsers,
// so memory stays bounded even for full US Code titles.
type ImportHandler struct {
	cfg    *config.Config
	govman services.GovmanImportService
	uscode services.UsCodeImportService
	logger *zap.Logger
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(
	cfg *config.Config,
	govman services.GovmanImportService,
	uscode services.UsCodeImportService,
	logger *zap.Logger,
) *ImportHandler {
	return &ImportHandler{
		cfg:    cfg,
		govman: govman,
		uscode: uscode,
		logger: logger.Named("import-handler"),
	}
}

// RegisterRoutes registers the import handler's routes on the given mux.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/import/govman", h.ImportGovman)
	mux.HandleFunc("GET /api/admin/import/govman/status", h.GovmanStatus)
	mux.HandleFunc("GET /api/admin/import/govman/result", h.GovmanResult)
	mux.HandleFunc("POST /api/admin/import/uscode", h.ImportUsCode)
	mux.HandleFunc("GET /api/admin/import/uscode/status", h.UsCodeStatus)
	mux.HandleFunc("GET /api/admin/import/uscode/result", h.UsCodeResult)
	mux.HandleFunc("GET /api/admin/import/stats", h.Stats)
}

// Stats handles GET /api/admin/import/stats.
// Reports how many records each file-upload pipeline currently owns.
func (h *ImportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	organizations, err := h.govman.CountImported(r.Context())
	if err != nil {
		h.logger.Error("Failed to count organizations", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "stats_failed", "failed to compute import statistics")
		return
	}
	statutes, err := h.uscode.CountImported(r.Context())
	if err != nil {
		h.logger.Error("Failed to count statutes", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "stats_failed", "failed to compute import statistics")
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]int64{
		"organizations": organizations,
		"statutes":      statutes,
	})
}

// ImportGovman handles POST /api/admin/import/govman.
// Accepts a multipart upload with the Government Manual XML in the "file" field.
func (h *ImportHandler) ImportGovman(w http.ResponseWriter, r *http.Request) {
	file, ok := h.uploadedFile(w, r, h.cfg.Import.GovmanMaxBytes)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.govman.ImportFromStream(r.Context(), file)
	h.writeImportResult(w, result, err)
}

// ImportUsCode handles POST /api/admin/import/uscode.
// Accepts a multipart upload with a USLM title file in the "file" field and
// an optional "releasePoint" form value.
func (h *ImportHandler) ImportUsCode(w http.ResponseWriter, r *http.Request) {
	file, ok := h.uploadedFile(w, r, h.cfg.Import.UslmMaxBytes)
	if !ok {
		return
	}
	defer file.Close()

	releasePoint := r.FormValue("releasePoint")
	result, err := h.uscode.ImportFromStream(r.Context(), file, releasePoint)
	h.writeImportResult(w, result, err)
}

// GovmanStatus handles GET /api/admin/import/govman/status.
func (h *ImportHandler) GovmanStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, h.govman.Status())
}

// UsCodeStatus handles GET /api/admin/import/uscode/status.
func (h *ImportHandler) UsCodeStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, h.uscode.Status())
}

// GovmanResult handles GET /api/admin/import/govman/result.
func (h *ImportHandler) GovmanResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.govman.LastResult()
	h.writeLastResult(w, result, ok)
}

// UsCodeResult handles GET /api/admin/import/uscode/result.
func (h *ImportHandler) UsCodeResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.uscode.LastResult()
	h.writeLastResult(w, result, ok)
}

// uploadedFile extracts the "file" part from a size-capped multipart upload.
// Writes the error response itself when the upload is rejected.
func (h *ImportHandler) uploadedFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "file_too_large", "uploaded file exceeds the size limit")
			return nil, false
		}
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "expected a multipart upload with a \"file\" field")
		return nil, false
	}

	h.logger.Info("Received import upload",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))
	return file, true
}

func (h *ImportHandler) writeImportResult(w http.ResponseWriter, result *importer.Result, err error) {
	if err != nil {
		if errors.Is(err, apperrors.ErrImportInProgress) {
			_ = ErrorResponse(w, http.StatusConflict, "import_in_progress", "an import for this source is already running")
			return
		}
		h.logger.Error("Import failed", zap.Error(err))
		// A fatal run still carries partial accounting worth returning.
		if result != nil {
			_ = WriteJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		_ = ErrorResponse(w, http.StatusInternalServerError, "import_failed", "import failed")
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) writeStatus(w http.ResponseWriter, state importer.RunState) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": string(state)})
}

func (h *ImportHandler) writeLastResult(w http.ResponseWriter, result *importer.Result, ok bool) {
	if !ok {
		_ = ErrorResponse(w, http.StatusNotFound, "no_result", "no completed import run for this source")
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}
