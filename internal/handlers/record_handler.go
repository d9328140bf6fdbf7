package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/cattlebreed/server/internal/middleware"
	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/services"
)

// RecordHandler handles animal record endpoints
type RecordHandler struct {
	records   *services.RecordService
	analytics *services.AnalyticsService
	maxUpload int64
}

// NewRecordHandler creates a new RecordHandler. maxUpload bounds the
// multipart body in bytes.
func NewRecordHandler(records *services.RecordService, analytics *services.AnalyticsService, maxUpload int64) *RecordHandler {
	return &RecordHandler{records: records, analytics: analytics, maxUpload: maxUpload}
}

// Capture handles photo capture
// @Summary Capture an animal
// @Description Stores the photo, scores the animal and saves a new unsynced record. The EXIF capture time is used as the record date when present.
// @Tags records
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Animal photo (jpg, png, heic)"
// @Param source formData string false "camera or gallery"
// @Success 201 {object} models.CaptureResult
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 413 {object} models.ErrorResponse "File too large"
// @Security ApiKeyAuth
// @Router /api/records/capture [post]
func (h *RecordHandler) Capture(w http.ResponseWriter, r *http.Request) {
	// multipart overhead on top of the image limit
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Request must be multipart/form-data within the size limit.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided or file is empty.")
		return
	}
	defer file.Close()

	source := strings.TrimSpace(r.FormValue("source"))
	if source == "" {
		source = "upload"
	}

	result, err := h.records.Capture(r.Context(), file, header.Filename, source)
	if err != nil {
		if status := statusFor(err); status == http.StatusInternalServerError {
			respondError(w, status, "Error saving record: "+err.Error())
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// Create saves a record for an already stored image
// @Summary Create a record
// @Tags records
// @Accept json
// @Produce json
// @Param request body models.CreateRecordRequest true "Record"
// @Success 201 {object} models.AnimalRecord
// @Failure 400 {object} models.ErrorResponse "imagePath is not a stored capture"
// @Failure 404 {object} models.ErrorResponse "image not found"
// @Failure 409 {object} models.ErrorResponse "image already used by another record"
// @Security ApiKeyAuth
// @Router /api/records [post]
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	rec, err := h.records.Create(r.Context(), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// List returns records newest first
// @Summary List records
// @Tags records
// @Produce json
// @Param page query int false "Page number (1-based)" default(1)
// @Param perPage query int false "Records per page (max 200)" default(50)
// @Success 200 {object} models.RecordListResponse
// @Security ApiKeyAuth
// @Router /api/records [get]
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))

	resp, err := h.records.List(r.Context(), page, perPage)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// DeleteAll removes every record
// @Summary Delete all records
// @Tags records
// @Produce json
// @Success 200 {object} models.DeleteResult
// @Security ApiKeyAuth
// @Router /api/records [delete]
func (h *RecordHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.records.DeleteAll(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.DeleteResult{Deleted: n})
}

// Unsynced returns records not yet uploaded
// @Summary Unsynced records
// @Tags records
// @Produce json
// @Success 200 {array} models.AnimalRecord
// @Security ApiKeyAuth
// @Router /api/records/unsynced [get]
func (h *RecordHandler) Unsynced(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.Unsynced(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// MarkSynced flags a batch of records as uploaded
// @Summary Mark records synced
// @Tags records
// @Accept json
// @Produce json
// @Param request body models.MarkSyncedRequest true "Record ids"
// @Success 200 {object} models.MarkSyncedResult
// @Security ApiKeyAuth
// @Router /api/records/synced [post]
func (h *RecordHandler) MarkSynced(w http.ResponseWriter, r *http.Request) {
	var req models.MarkSyncedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	h.markSynced(w, r, req.IDs)
}

// MarkOneSynced flags one record as uploaded
// @Summary Mark record synced
// @Tags records
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} models.MarkSyncedResult
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/records/{id}/synced [post]
func (h *RecordHandler) MarkOneSynced(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if _, err := h.records.Get(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.markSynced(w, r, []int64{id})
}

func (h *RecordHandler) markSynced(w http.ResponseWriter, r *http.Request, ids []int64) {
	n, err := h.records.MarkSynced(r.Context(), ids)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.MarkSyncedResult{Updated: int(n)})
}

// Get returns one record
// @Summary Get a record
// @Tags records
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} models.AnimalRecord
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/records/{id} [get]
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Update replaces the editable fields of a record
// @Summary Update a record
// @Description Synced cannot be reset to false once set.
// @Tags records
// @Accept json
// @Produce json
// @Param id path int true "Record ID"
// @Param request body models.UpdateRecordRequest true "Record fields"
// @Success 200 {object} models.AnimalRecord
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "image already used by another record"
// @Security ApiKeyAuth
// @Router /api/records/{id} [put]
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req models.UpdateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	rec, err := h.records.Update(r.Context(), id, req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete removes a record and its image
// @Summary Delete a record
// @Tags records
// @Param id path int true "Record ID"
// @Success 204 "Record deleted"
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/records/{id} [delete]
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.records.Delete(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Image serves the captured photo
// @Summary Record image
// @Tags records
// @Produce octet-stream
// @Param id path int true "Record ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/records/{id}/image [get]
func (h *RecordHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	_, path, err := h.records.Image(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, path)
}

// Thumbnail serves the downscaled preview
// @Summary Record preview
// @Tags records
// @Produce jpeg
// @Param id path int true "Record ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/records/{id}/thumbnail [get]
func (h *RecordHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	path, err := h.records.Preview(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, path)
}

// PendingSync returns the upload batch of unsynced records
// @Summary Pending sync batch
// @Description Unsynced records in the admin API shape, attributed to the signed-in user or to "guest".
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncAnimalRecordsRequest
// @Security ApiKeyAuth
// @Router /api/sync/pending [get]
func (h *RecordHandler) PendingSync(w http.ResponseWriter, r *http.Request) {
	batch, err := h.records.PendingSyncBatch(r.Context(), middleware.GetUserFromContext(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// Analytics summarises local records against the dashboard averages
// @Summary Farm analytics
// @Tags analytics
// @Produce json
// @Param region query string false "State used as regional benchmark; defaults to the user's location"
// @Success 200 {object} models.AnalyticsData
// @Security ApiKeyAuth
// @Router /api/analytics [get]
func (h *RecordHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		if user := middleware.GetUserFromContext(r.Context()); user != nil {
			region = user.Location
		}
	}

	data, err := h.analytics.Analytics(r.Context(), region)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid record ID.")
		return 0, false
	}
	return id, true
}
