package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

type syncFixture struct {
	store        *InMemoryStore
	orchestrator *Orchestrator
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	store := NewInMemoryStore()
	tracker := NewTracker(store.Profiles, store.Devices, store.Activity, store.Notifications)

	logger := zerolog.Nop()
	deviceSvc := device.NewService(store.Devices, store.Activity, nil, logger)
	ntfSvc := notification.NewService(store.Notifications, logger)
	applier := NewServiceApplier(deviceSvc, ntfSvc, store.Devices, store.Notifications)

	return &syncFixture{
		store:        store,
		orchestrator: NewOrchestrator(store, tracker, NewResolver(), applier, Config{}, logger),
	}
}

func (f *syncFixture) seedOwner(ownerID string, at time.Time) {
	f.store.Profiles.Put(&profile.Owner{
		ID:        ownerID,
		Email:     ownerID + "@example.com",
		FullName:  "Test Owner",
		Language:  "en",
		TimeZone:  "Europe/Amsterdam",
		IsActive:  true,
		CreatedAt: at,
		UpdatedAt: at,
	})
}

func (f *syncFixture) seedDevice(t *testing.T, ownerID, deviceID, mac, serial string, at time.Time) *device.Device {
	t.Helper()
	d := &device.Device{
		ID:              deviceID,
		OwnerID:         ownerID,
		Name:            "Dispenser " + deviceID,
		Type:            device.TypeFishOil,
		MACAddress:      mac,
		SerialNumber:    serial,
		BatteryLevel:    80,
		SupplementLevel: 70,
		IsActive:        true,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	if err := f.store.Devices.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
	return d
}

func TestFullSyncSnapshot(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-2 * time.Hour)

	f.seedOwner("owner-1", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)
	f.seedDevice(t, "owner-1", "dev-2", "AA:BB:CC:DD:EE:02", "ZIN22222222", past)

	snapshot, err := f.orchestrator.Full(ctx, "owner-1", ClientInfo{Platform: "ios"}, false)
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}

	if snapshot.Owner == nil || snapshot.Owner.ID != "owner-1" {
		t.Errorf("snapshot owner = %+v, want owner-1", snapshot.Owner)
	}
	if len(snapshot.Devices) != 2 {
		t.Errorf("snapshot devices = %d, want 2", len(snapshot.Devices))
	}
	if snapshot.Settings == nil {
		t.Error("snapshot settings missing, want defaults")
	}
	if snapshot.Cursor == nil || snapshot.Cursor.LastFullSync == nil {
		t.Fatal("snapshot cursor not advanced")
	}
	if snapshot.Cursor.Status != StatusSuccess {
		t.Errorf("cursor status = %q, want %q", snapshot.Cursor.Status, StatusSuccess)
	}
}

func TestFullSyncUnknownOwner(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.orchestrator.Full(context.Background(), "owner-missing", ClientInfo{}, false)
	if err == nil {
		t.Fatal("Full() with unknown owner succeeded")
	}
}

func TestFullThenDeltaIsEmpty(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-2 * time.Hour)

	f.seedOwner("owner-1", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)

	snapshot, err := f.orchestrator.Full(ctx, "owner-1", ClientInfo{}, false)
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}

	result, err := f.orchestrator.Delta(ctx, "owner-1", *snapshot.Cursor.LastFullSync, nil)
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if result.FullSyncRequired {
		t.Fatal("Delta() demanded full sync right after a full sync")
	}
	if !result.Delta.Changes.Empty() {
		t.Errorf("delta after full sync not empty: %+v", result.Delta.Changes)
	}
	if len(result.Delta.Conflicts) != 0 {
		t.Errorf("conflicts = %d, want 0", len(result.Delta.Conflicts))
	}
}

func TestDeltaReturnsOnlyChangedAndOwned(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	cursor := now.Add(-time.Hour)

	f.seedOwner("owner-1", past)
	f.seedOwner("owner-2", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)
	changed := f.seedDevice(t, "owner-1", "dev-2", "AA:BB:CC:DD:EE:02", "ZIN22222222", past)
	foreign := f.seedDevice(t, "owner-2", "dev-3", "AA:BB:CC:DD:EE:03", "ZIN33333333", past)

	// dev-2 and the foreign dev-3 both changed after the cursor.
	changed.UpdatedAt = now.Add(-10 * time.Minute)
	if err := f.store.Devices.Update(ctx, changed); err != nil {
		t.Fatalf("updating device: %v", err)
	}
	foreign.UpdatedAt = now.Add(-10 * time.Minute)
	if err := f.store.Devices.Update(ctx, foreign); err != nil {
		t.Fatalf("updating device: %v", err)
	}

	result, err := f.orchestrator.Delta(ctx, "owner-1", cursor, nil)
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	devices := result.Delta.Changes.DevicesUpdated
	if len(devices) != 1 || devices[0].ID != "dev-2" {
		t.Errorf("DevicesUpdated = %+v, want exactly dev-2", devices)
	}
}

func TestDeltaPartitionsSoftDeletes(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	cursor := now.Add(-time.Hour)

	f.seedOwner("owner-1", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)
	if err := f.store.Devices.SoftDelete(ctx, "owner-1", "dev-1", now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("soft deleting: %v", err)
	}

	result, err := f.orchestrator.Delta(ctx, "owner-1", cursor, nil)
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	changes := result.Delta.Changes
	if len(changes.DevicesDeleted) != 1 || changes.DevicesDeleted[0] != "dev-1" {
		t.Errorf("DevicesDeleted = %v, want [dev-1]", changes.DevicesDeleted)
	}
	if len(changes.DevicesUpdated) != 0 {
		t.Errorf("DevicesUpdated = %+v, want empty", changes.DevicesUpdated)
	}
}

func TestDeltaBehindHorizonRequiresFullSync(t *testing.T) {
	f := newSyncFixture(t)
	f.seedOwner("owner-1", time.Now().UTC().Add(-30*24*time.Hour))

	result, err := f.orchestrator.Delta(context.Background(), "owner-1", time.Now().UTC().Add(-8*24*time.Hour), nil)
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if !result.FullSyncRequired {
		t.Fatal("Delta() with 8 day old cursor did not demand a full sync")
	}
	if result.Delta != nil {
		t.Error("full-sync-required result carries a partial delta payload")
	}
}

func TestDeltaAppliesCompatibleClientChange(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	cursor := now.Add(-time.Hour)

	f.seedOwner("owner-1", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)

	payload, _ := json.Marshal(map[string]string{"name": "Bedroom dispenser"})
	result, err := f.orchestrator.Delta(ctx, "owner-1", cursor, []ClientChange{{
		Entity:    EntityDevice,
		EntityID:  "dev-1",
		Action:    ActionUpdate,
		ChangedAt: now.Add(-30 * time.Minute),
		Payload:   payload,
	}})
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if len(result.Delta.Conflicts) != 0 {
		t.Fatalf("conflicts = %+v, want none", result.Delta.Conflicts)
	}

	d, err := f.store.Devices.GetByOwner(ctx, "owner-1", "dev-1")
	if err != nil {
		t.Fatalf("GetByOwner() error = %v", err)
	}
	if d.Name != "Bedroom dispenser" {
		t.Errorf("device name = %q, want applied client rename", d.Name)
	}
	// The applied change is echoed back in the same delta.
	if len(result.Delta.Changes.DevicesUpdated) != 1 {
		t.Errorf("DevicesUpdated = %d, want 1", len(result.Delta.Changes.DevicesUpdated))
	}
}

func TestDeltaRejectsChangeAgainstServerDelete(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	cursor := now.Add(-time.Hour)

	f.seedOwner("owner-1", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)
	if err := f.store.Devices.SoftDelete(ctx, "owner-1", "dev-1", now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("soft deleting: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"name": "Renamed"})
	result, err := f.orchestrator.Delta(ctx, "owner-1", cursor, []ClientChange{{
		Entity:   EntityDevice,
		EntityID: "dev-1",
		Action:   ActionUpdate,
		Payload:  payload,
	}})
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if len(result.Delta.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(result.Delta.Conflicts))
	}
	conflict := result.Delta.Conflicts[0]
	if conflict.Reason != ReasonDeletedOnServer {
		t.Errorf("conflict reason = %q, want %q", conflict.Reason, ReasonDeletedOnServer)
	}

	// The rejected rename must not stick.
	d, err := f.store.Devices.GetByOwner(ctx, "owner-1", "dev-1")
	if err != nil {
		t.Fatalf("GetByOwner() error = %v", err)
	}
	if d.Name == "Renamed" {
		t.Error("rejected client change was applied")
	}
}

func TestDeltaCompatibleDeleteIsNoOp(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	cursor := now.Add(-time.Hour)

	f.seedOwner("owner-1", past)
	f.seedDevice(t, "owner-1", "dev-1", "AA:BB:CC:DD:EE:01", "ZIN11111111", past)
	if err := f.store.Devices.SoftDelete(ctx, "owner-1", "dev-1", now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("soft deleting: %v", err)
	}

	result, err := f.orchestrator.Delta(ctx, "owner-1", cursor, []ClientChange{{
		Entity:   EntityDevice,
		EntityID: "dev-1",
		Action:   ActionDelete,
	}})
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if len(result.Delta.Conflicts) != 0 {
		t.Errorf("conflicts = %+v, want none for a compatible delete", result.Delta.Conflicts)
	}
}

func TestStatus(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-2 * time.Hour)

	status, err := f.orchestrator.Status(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.NeedsFullSync {
		t.Error("owner without cursor should need a full sync")
	}

	f.seedOwner("owner-1", past)
	if _, err := f.orchestrator.Full(ctx, "owner-1", ClientInfo{}, false); err != nil {
		t.Fatalf("Full() error = %v", err)
	}

	status, err = f.orchestrator.Status(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.NeedsFullSync {
		t.Error("owner right after full sync should not need another")
	}
}

type failingCursorStore struct {
	*InMemoryStore
}

func (s *failingCursorStore) SaveCursor(context.Context, *Cursor) error {
	return errors.New("disk full")
}

func TestDeltaFailureLeavesCursorUntouched(t *testing.T) {
	inner := NewInMemoryStore()
	store := &failingCursorStore{InMemoryStore: inner}
	tracker := NewTracker(inner.Profiles, inner.Devices, inner.Activity, inner.Notifications)
	orchestrator := NewOrchestrator(store, tracker, NewResolver(), nil, Config{}, zerolog.Nop())
	ctx := context.Background()

	old := &Cursor{OwnerID: "owner-1", Status: StatusSuccess, UpdatedAt: time.Now().UTC().Add(-time.Hour)}
	if err := inner.SaveCursor(ctx, old); err != nil {
		t.Fatalf("seeding cursor: %v", err)
	}
	inner.Profiles.Put(&profile.Owner{ID: "owner-1", UpdatedAt: time.Now().UTC().Add(-2 * time.Hour)})

	_, err := orchestrator.Delta(ctx, "owner-1", time.Now().UTC().Add(-time.Hour), nil)
	if err == nil {
		t.Fatal("Delta() with failing cursor store succeeded")
	}

	got, err := inner.GetCursor(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetCursor() error = %v", err)
	}
	if !got.UpdatedAt.Equal(old.UpdatedAt) {
		t.Error("failed sync advanced the cursor")
	}
}
