package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/services"
)

// DashboardHandler serves the national ATS dashboard
type DashboardHandler struct {
	dashboard *services.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// View returns dashboard rows for the filters
// @Summary Dashboard view
// @Description All states by default. With state, that state's districts; with state and district, one district row. The summary is always national.
// @Tags dashboard
// @Produce json
// @Param state query string false "State name"
// @Param district query string false "District name (requires state)"
// @Param year query int false "2020-2025" default(2024)
// @Param yearType query string false "Calendar or Financial" default(Calendar)
// @Success 200 {object} models.DashboardView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/dashboard [get]
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.DashboardFilter{
		State:    strings.TrimSpace(q.Get("state")),
		District: strings.TrimSpace(q.Get("district")),
		YearType: models.YearType(q.Get("yearType")),
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			respondDomainError(w, r, models.ErrInvalidYear)
			return
		}
		filter.Year = year
	}

	view, err := h.dashboard.View(filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// States returns every state with its districts
// @Summary Dashboard states
// @Tags dashboard
// @Produce json
// @Success 200 {array} models.ATSState
// @Security ApiKeyAuth
// @Router /api/dashboard/states [get]
func (h *DashboardHandler) States(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.dashboard.States())
}

// State returns one state, matched case-insensitively
// @Summary Dashboard state
// @Tags dashboard
// @Produce json
// @Param state path string true "State name"
// @Success 200 {object} models.ATSState
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/dashboard/states/{state} [get]
func (h *DashboardHandler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.dashboard.State(chi.URLParam(r, "state"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// Color maps a score to its choropleth colour
// @Summary Score colour
// @Description Without a score the no-data colour is returned.
// @Tags dashboard
// @Produce json
// @Param score query int false "Average score"
// @Success 200 {object} models.ColorResult
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/dashboard/color [get]
func (h *DashboardHandler) Color(w http.ResponseWriter, r *http.Request) {
	var score *int
	if s := r.URL.Query().Get("score"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			respondDomainError(w, r, models.ErrInvalidScore)
			return
		}
		score = &v
	}

	respondJSON(w, http.StatusOK, models.ColorResult{
		Score: score,
		Color: services.Color(score),
		Bands: services.ColorBands(),
	})
}
