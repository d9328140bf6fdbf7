package handlers

import (
	"net/http"

	"github.com/cattlebreed/server/internal/services"
)

// MaintenanceHandler exposes the image folder sweep
type MaintenanceHandler struct {
	maintenance *services.MaintenanceService
}

// NewMaintenanceHandler creates a new MaintenanceHandler
func NewMaintenanceHandler(maintenance *services.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// Status returns the result of the last sweep
// @Summary Maintenance status
// @Tags maintenance
// @Produce json
// @Success 200 {object} services.MaintenanceStatus
// @Security ApiKeyAuth
// @Router /api/maintenance [get]
func (h *MaintenanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.maintenance.Status())
}

// Run sweeps orphan images and previews and regenerates missing previews
// @Summary Run maintenance
// @Tags maintenance
// @Produce json
// @Success 200 {object} services.MaintenanceStatus
// @Security ApiKeyAuth
// @Router /api/maintenance/run [post]
func (h *MaintenanceHandler) Run(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.maintenance.RunNow(r.Context()))
}
