package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dosepoint/dosepoint/internal/api/models"
	"github.com/dosepoint/dosepoint/internal/api/response"
	"github.com/dosepoint/dosepoint/internal/dispense"
)

// StateHandler handles device state observations.
type StateHandler struct {
	engine *dispense.Engine
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(engine *dispense.Engine) *StateHandler {
	return &StateHandler{engine: engine}
}

// ReportState handles POST /v1/devices/{deviceId}/state - one cup observation.
// The response tells the dispenser whether to release a dose.
func (h *StateHandler) ReportState(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		response.Unauthorized(w, r, "not authenticated")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	if identity.IsDevice() && identity.DeviceID != deviceID {
		// Report as missing so device tokens can't probe other devices.
		response.NotFound(w, r, "device")
		return
	}

	var input models.DeviceStateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	obs := dispense.ObservationInput{
		CupPlaced:     input.CupPlaced,
		SensorReading: input.SensorReading,
	}
	if input.ObservedAt != nil {
		t := input.ObservedAt.Time()
		obs.ObservedAt = &t
	}

	decision, err := h.engine.Observe(r.Context(), identity.OwnerID, deviceID, obs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DecisionFromDomain(decision))
}
