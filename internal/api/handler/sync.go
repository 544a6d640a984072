package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dosepoint/dosepoint/internal/api/models"
	"github.com/dosepoint/dosepoint/internal/api/response"
	"github.com/dosepoint/dosepoint/internal/sync"
)

// SyncHandler handles the full and incremental sync endpoints.
type SyncHandler struct {
	orchestrator *sync.Orchestrator
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(orchestrator *sync.Orchestrator) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator}
}

// FullSync handles POST /v1/sync/full - complete snapshot for the owner.
func (h *SyncHandler) FullSync(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	// The body is optional; an empty POST gets a plain snapshot.
	var input models.FullSyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	}

	snapshot, err := h.orchestrator.Full(r.Context(), ownerID, sync.ClientInfo{
		Platform:   input.ClientInfo.Platform,
		AppVersion: input.ClientInfo.AppVersion,
		Model:      input.ClientInfo.Model,
	}, input.IncludeDeleted)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := models.FullSyncResponse{
		Profile:       models.OwnerFromDomain(snapshot.Owner),
		Devices:       models.DevicesFromDomain(snapshot.Devices),
		Activity:      models.ActivityEntriesFromDomain(snapshot.Activity),
		Notifications: models.NotificationsFromDomain(snapshot.Notifications),
		Settings:      models.SettingsFromDomain(snapshot.Settings),
		Cursor:        models.CursorFromDomain(snapshot.Cursor),
		ServerTime:    models.Timestamp(snapshot.ServerTime),
	}
	response.JSON(w, r, http.StatusOK, out)
}

// DeltaSync handles POST /v1/sync/delta - changes since the client's cursor,
// applying compatible client-side changes along the way.
func (h *SyncHandler) DeltaSync(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	var input models.DeltaSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	changes := make([]sync.ClientChange, 0, len(input.Changes))
	for _, c := range input.Changes {
		change := sync.ClientChange{
			Entity:   sync.Entity(c.Entity),
			EntityID: c.EntityID,
			Action:   sync.ChangeAction(c.Action),
			Payload:  c.Payload,
		}
		if c.ChangedAt != nil {
			change.ChangedAt = c.ChangedAt.Time()
		}
		changes = append(changes, change)
	}

	result, err := h.orchestrator.Delta(r.Context(), ownerID, input.LastSyncTimestamp.Time(), changes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.FullSyncRequired {
		response.JSON(w, r, http.StatusOK, models.DeltaSyncResponse{FullSyncRequired: true})
		return
	}

	delta := result.Delta
	serverTime := models.Timestamp(delta.ServerTime)
	out := models.DeltaSyncResponse{
		Changes:    changesFromDomain(delta.Changes),
		Conflicts:  conflictsFromDomain(delta.Conflicts),
		Cursor:     models.CursorFromDomain(delta.Cursor),
		ServerTime: &serverTime,
	}
	response.JSON(w, r, http.StatusOK, out)
}

// SyncStatus handles GET /v1/sync/status - the owner's cursor position.
func (h *SyncHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := GetOwnerID(r.Context())
	if ownerID == "" {
		response.Unauthorized(w, r, "owner not authenticated")
		return
	}

	status, err := h.orchestrator.Status(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.SyncStatusResponse{
		Cursor:        models.CursorFromDomain(status.Cursor),
		NeedsFullSync: status.NeedsFullSync,
		ServerTime:    models.Timestamp(status.ServerTime),
	})
}

func changesFromDomain(c *sync.ChangeSet) *models.DeltaChanges {
	if c == nil {
		return nil
	}
	out := &models.DeltaChanges{
		Profile:              models.OwnerFromDomain(c.Profile),
		DevicesUpdated:       models.DevicesFromDomain(c.DevicesUpdated),
		DevicesDeleted:       c.DevicesDeleted,
		Activity:             models.ActivityEntriesFromDomain(c.Activity),
		NotificationsCreated: models.NotificationsFromDomain(c.NotificationsCreated),
		NotificationsRead:    models.NotificationsFromDomain(c.NotificationsRead),
	}
	if out.DevicesDeleted == nil {
		out.DevicesDeleted = []string{}
	}
	if c.SettingsChanged != nil {
		settings := models.SettingsFromDomain(c.SettingsChanged)
		out.Settings = &settings
	}
	return out
}

func conflictsFromDomain(conflicts []sync.Conflict) []models.SyncConflict {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]models.SyncConflict, 0, len(conflicts))
	for _, c := range conflicts {
		conflict := models.SyncConflict{
			Entity:   string(c.Entity),
			EntityID: c.EntityID,
			Reason:   string(c.Reason),
		}
		if c.ServerUpdatedAt != nil {
			conflict.ServerUpdatedAt = models.TimestampPtr(c.ServerUpdatedAt)
		}
		out = append(out, conflict)
	}
	return out
}
