package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondDomainError maps domain errors to status codes. Anything unknown is
// logged and reported as a 500 without details.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	var exportFail *models.ExportFailure
	if errors.As(err, &exportFail) {
		observability.WithContext(r.Context()).WithError(err).Error("Export request failed")
		respondError(w, status, err.Error())
		return
	}
	if status == http.StatusInternalServerError {
		observability.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).Error("Request failed")
		respondError(w, status, "Internal server error.")
		return
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var (
		authErr      models.AuthError
		recordErr    models.RecordError
		imageErr     models.ImageError
		dashboardErr models.DashboardError
		exportErr    models.ExportError
		exportFail   *models.ExportFailure
	)

	switch {
	case errors.Is(err, models.ErrOTPDelivery):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrOTPNotFound),
		errors.Is(err, models.ErrRecordNotFound),
		errors.Is(err, models.ErrImageNotFound),
		errors.Is(err, models.ErrStateNotFound),
		errors.Is(err, models.ErrDistrictNotFound),
		errors.Is(err, models.ErrExportNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrOTPExpired):
		return http.StatusGone
	case errors.Is(err, models.ErrOTPAlreadyUsed),
		errors.Is(err, models.ErrImageInUse):
		return http.StatusConflict
	case errors.Is(err, models.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrInvalidOTP),
		errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &exportFail):
		return http.StatusInternalServerError
	case errors.As(err, &authErr),
		errors.As(err, &recordErr),
		errors.As(err, &imageErr),
		errors.As(err, &dashboardErr),
		errors.As(err, &exportErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
