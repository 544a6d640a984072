package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/api/models"
	"github.com/dosepoint/dosepoint/internal/api/response"
	"github.com/dosepoint/dosepoint/internal/device"
)

// DeviceHandler handles dispenser management endpoints.
type DeviceHandler struct {
	devices  *device.Service
	activity activity.Repository
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service, activityRepo activity.Repository) *DeviceHandler {
	return &DeviceHandler{devices: devices, activity: activityRepo}
}

// ListDevices handles GET /v1/me/devices - list the owner's dispensers.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	opts := device.ListOptions{
		IncludeDeleted: r.URL.Query().Get("includeDeleted") == "true",
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		opts.Limit = n
	}

	result, err := h.devices.List(r.Context(), ownerID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	paged := models.PagedDevices{
		Items: models.DevicesFromDomain(result.Items),
		Meta:  models.PagedResponseMeta{Limit: opts.Limit},
	}
	if result.NextCursor != "" {
		paged.Meta.NextCursor = &result.NextCursor
	}
	response.JSON(w, r, http.StatusOK, paged)
}

// RegisterDevice handles POST /v1/me/devices - register a dispenser.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	var input models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	d, err := h.devices.Register(r.Context(), ownerID, device.RegisterInput{
		Name:            input.Name,
		Type:            device.Type(input.Type),
		MACAddress:      input.MACAddress,
		SerialNumber:    input.SerialNumber,
		Location:        input.Location,
		FirmwareVersion: input.FirmwareVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/me/devices/%s", d.ID)
	response.Created(w, r, location, models.DeviceFromDomain(d))
}

// GetDevice handles GET /v1/me/devices/{deviceId}.
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	d, err := h.devices.Get(r.Context(), ownerID, chi.URLParam(r, "deviceId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromDomain(d))
}

// UpdateDevice handles PATCH /v1/me/devices/{deviceId} - edit name or location.
func (h *DeviceHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	var input models.DeviceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	d, err := h.devices.Update(r.Context(), ownerID, chi.URLParam(r, "deviceId"), device.UpdateInput{
		Name:     input.Name,
		Location: input.Location,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromDomain(d))
}

// DeactivateDevice handles DELETE /v1/me/devices/{deviceId} - soft delete.
func (h *DeviceHandler) DeactivateDevice(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	if err := h.devices.Deactivate(r.Context(), ownerID, chi.URLParam(r, "deviceId")); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// ReportTelemetry handles PATCH /v1/devices/{deviceId}/telemetry - battery,
// reservoir, connectivity, and firmware reports from the dispenser.
func (h *DeviceHandler) ReportTelemetry(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.callerOwnerID(w, r)
	if !ok {
		return
	}

	var input models.DeviceTelemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	d, err := h.devices.ReportTelemetry(r.Context(), ownerID, chi.URLParam(r, "deviceId"), device.TelemetryInput{
		BatteryLevel:    input.BatteryLevel,
		SupplementLevel: input.SupplementLevel,
		IsConnected:     input.IsConnected,
		FirmwareVersion: input.FirmwareVersion,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromDomain(d))
}

// GetStats handles GET /v1/me/devices/{deviceId}/stats - dose statistics.
func (h *DeviceHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	stats, err := h.devices.Stats(r.Context(), ownerID, chi.URLParam(r, "deviceId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceStats{
		DeviceID:   stats.DeviceID,
		TotalDoses: stats.TotalDoses,
		FirstDose:  models.TimestampPtr(stats.FirstDose),
		LastDose:   models.TimestampPtr(stats.LastDose),
	})
}

// ListActivity handles GET /v1/me/devices/{deviceId}/activity - activity log,
// newest first.
func (h *DeviceHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")

	// Ownership check before touching the log.
	if _, err := h.devices.Get(r.Context(), ownerID, deviceID); err != nil {
		writeError(w, r, err)
		return
	}

	opts := activity.ListOptions{}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		opts.Limit = n
	}
	if from := r.URL.Query().Get("from"); from != "" {
		var ts models.Timestamp
		if err := ts.UnmarshalJSON([]byte(strconv.Quote(from))); err != nil {
			response.BadRequest(w, r, "from must be an RFC 3339 timestamp", nil)
			return
		}
		t := ts.Time()
		opts.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		var ts models.Timestamp
		if err := ts.UnmarshalJSON([]byte(strconv.Quote(to))); err != nil {
			response.BadRequest(w, r, "to must be an RFC 3339 timestamp", nil)
			return
		}
		t := ts.Time()
		opts.To = &t
	}

	entries, err := h.activity.ListByDevice(r.Context(), deviceID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.PagedActivity{
		Items: models.ActivityEntriesFromDomain(entries),
		Meta:  models.PagedResponseMeta{Limit: opts.Limit},
	})
}

// callerOwnerID resolves the owner on behalf of whom the request runs.
// Device tokens may only touch their own device.
func (h *DeviceHandler) callerOwnerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		response.Unauthorized(w, r, "not authenticated")
		return "", false
	}
	if identity.IsDevice() && identity.DeviceID != chi.URLParam(r, "deviceId") {
		// Report as missing so device tokens can't probe other devices.
		response.NotFound(w, r, "device")
		return "", false
	}
	return identity.OwnerID, true
}
