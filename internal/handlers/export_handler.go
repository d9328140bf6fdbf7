package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/services"
)

// ExportHandler writes and serves record exports
type ExportHandler struct {
	exports *services.ExportService
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exports *services.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export writes every record to a new file
// @Summary Export records
// @Description Writes all records to a timestamped json, csv or pdf file in the export directory.
// @Tags exports
// @Produce json
// @Param format path string true "json, csv or pdf"
// @Success 201 {object} models.ExportResult
// @Failure 400 {object} models.ErrorResponse "unsupported export format"
// @Failure 500 {object} models.ErrorResponse "Error exporting to <FORMAT>"
// @Security ApiKeyAuth
// @Router /api/exports/{format} [post]
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := models.ParseExportFormat(chi.URLParam(r, "format"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	result, err := h.exports.Export(r.Context(), format)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// List returns existing export files
// @Summary List exports
// @Tags exports
// @Produce json
// @Success 200 {array} models.ExportFile
// @Security ApiKeyAuth
// @Router /api/exports [get]
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.exports.ListExports()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// Download streams an export file as an attachment
// @Summary Download export
// @Description The ETag is the file's sha256; a matching If-None-Match gets 304.
// @Tags exports
// @Produce octet-stream
// @Param name path string true "Export file name"
// @Param If-None-Match header string false "Previously received ETag"
// @Success 200 {file} binary
// @Success 304 "Not modified"
// @Failure 400 {object} models.ErrorResponse "invalid export file name"
// @Failure 404 {object} models.ErrorResponse "export file not found"
// @Security ApiKeyAuth
// @Router /api/exports/{name} [get]
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, format, err := h.exports.OpenExport(name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	defer f.Close()

	etag, fresh, err := h.exports.ExportETag(name, r.Header.Get("If-None-Match"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag)
	if fresh {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
