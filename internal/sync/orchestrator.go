package sync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/apperr"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

// DefaultRetentionHorizon is how far back a delta cursor may reach before a
// full resync is demanded.
const DefaultRetentionHorizon = 7 * 24 * time.Hour

// Config holds the orchestrator knobs.
type Config struct {
	// RetentionHorizon caps the age of a delta cursor.
	// Default: 7 days
	RetentionHorizon time.Duration
}

// Orchestrator assembles full snapshots and delta diffs and owns the sync
// cursor. The cursor advances only after a payload is fully assembled; any
// failure leaves the previous cursor untouched, so a retried request with the
// same cursor is safe.
type Orchestrator struct {
	store    Store
	tracker  *Tracker
	resolver *Resolver
	applier  ChangeApplier
	config   Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrchestrator creates a sync orchestrator. applier may be nil when client
// change submission is disabled.
func NewOrchestrator(store Store, tracker *Tracker, resolver *Resolver, applier ChangeApplier, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.RetentionHorizon == 0 {
		cfg.RetentionHorizon = DefaultRetentionHorizon
	}
	return &Orchestrator{
		store:    store,
		tracker:  tracker,
		resolver: resolver,
		applier:  applier,
		config:   cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Full assembles a complete snapshot for the owner inside one consistent
// read and advances the cursor.
func (o *Orchestrator) Full(ctx context.Context, ownerID string, clientInfo ClientInfo, includeDeleted bool) (*Snapshot, error) {
	now := o.now()

	data, err := o.store.Snapshot(ctx, ownerID, includeDeleted, now.Add(-o.config.RetentionHorizon))
	if errors.Is(err, profile.ErrOwnerNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "owner not found")
	}
	if err != nil {
		return nil, translateSyncErr("assembling snapshot", err)
	}

	if data.Settings == nil {
		data.Settings = notification.DefaultSettings(ownerID)
	}

	cursor, err := o.advanceCursor(ctx, ownerID, now, true)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("owner_id", ownerID).
		Str("platform", clientInfo.Platform).
		Int("devices", len(data.Devices)).
		Msg("full sync completed")

	return &Snapshot{
		Owner:         data.Owner,
		Devices:       data.Devices,
		Activity:      data.Activity,
		Notifications: data.Notifications,
		Settings:      data.Settings,
		Cursor:        cursor,
		ServerTime:    now,
	}, nil
}

// Delta computes everything that changed after lastSync and routes client
// changes through the conflict resolver. When lastSync is older than the
// retention horizon the result demands a full resync and carries no partial
// payload.
func (o *Orchestrator) Delta(ctx context.Context, ownerID string, lastSync time.Time, changes []ClientChange) (*DeltaResult, error) {
	if lastSync.IsZero() {
		return nil, apperr.New(apperr.KindInvalid, "last sync timestamp is required")
	}

	now := o.now()
	if now.Sub(lastSync) > o.config.RetentionHorizon {
		o.logger.Info().
			Str("owner_id", ownerID).
			Time("last_sync", lastSync).
			Msg("delta cursor behind retention horizon, full sync required")
		return &DeltaResult{FullSyncRequired: true}, nil
	}

	conflicts, err := o.applyClientChanges(ctx, ownerID, lastSync, changes)
	if err != nil {
		return nil, err
	}

	set, err := o.tracker.Changes(ctx, ownerID, lastSync)
	if err != nil {
		return nil, translateSyncErr("tracking changes", err)
	}

	cursor, err := o.advanceCursor(ctx, ownerID, now, false)
	if err != nil {
		return nil, err
	}

	return &DeltaResult{
		Delta: &Delta{
			Changes:    set,
			Conflicts:  conflicts,
			Cursor:     cursor,
			ServerTime: now,
		},
	}, nil
}

func (o *Orchestrator) applyClientChanges(ctx context.Context, ownerID string, lastSync time.Time, changes []ClientChange) ([]Conflict, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	if o.applier == nil {
		return nil, apperr.New(apperr.KindInvalid, "client change submission is not enabled")
	}

	var conflicts []Conflict
	for _, change := range changes {
		state, err := o.applier.State(ctx, ownerID, change)
		if err != nil {
			return nil, translateSyncErr("loading change target", err)
		}

		resolution := o.resolver.Resolve(change, lastSync, state)
		switch resolution.Disposition {
		case DispositionReject:
			conflicts = append(conflicts, *resolution.Conflict)
		case DispositionNoOp:
		case DispositionApply:
			if err := o.applier.Apply(ctx, ownerID, change); err != nil {
				// Validation failures on individual changes surface as
				// conflicts instead of failing the whole sync.
				if apperr.IsInvalid(err) {
					conflicts = append(conflicts, Conflict{
						Entity:   change.Entity,
						EntityID: change.EntityID,
						Reason:   ReasonNewerOnServer,
					})
					continue
				}
				return nil, translateSyncErr("applying client change", err)
			}
		}
	}
	return conflicts, nil
}

// SyncStatus reports the owner's cursor and whether a full resync is due.
type SyncStatus struct {
	Cursor        *Cursor
	NeedsFullSync bool
	ServerTime    time.Time
}

// Status retrieves the owner's sync status. An owner with no cursor or a
// full sync older than the horizon needs a full resync.
func (o *Orchestrator) Status(ctx context.Context, ownerID string) (*SyncStatus, error) {
	now := o.now()

	cursor, err := o.store.GetCursor(ctx, ownerID)
	if errors.Is(err, ErrNoCursor) {
		return &SyncStatus{NeedsFullSync: true, ServerTime: now}, nil
	}
	if err != nil {
		return nil, translateSyncErr("loading sync cursor", err)
	}

	needsFull := cursor.LastFullSync == nil || now.Sub(*cursor.LastFullSync) > o.config.RetentionHorizon
	return &SyncStatus{
		Cursor:        cursor,
		NeedsFullSync: needsFull,
		ServerTime:    now,
	}, nil
}

// advanceCursor writes the new cursor, preserving the other timestamp from
// the previous cursor when present.
func (o *Orchestrator) advanceCursor(ctx context.Context, ownerID string, now time.Time, full bool) (*Cursor, error) {
	cursor := &Cursor{
		OwnerID:   ownerID,
		Status:    StatusSuccess,
		UpdatedAt: now,
	}

	prev, err := o.store.GetCursor(ctx, ownerID)
	if err != nil && !errors.Is(err, ErrNoCursor) {
		return nil, translateSyncErr("loading sync cursor", err)
	}
	if prev != nil {
		cursor.LastFullSync = prev.LastFullSync
		cursor.LastDeltaSync = prev.LastDeltaSync
	}

	if full {
		cursor.LastFullSync = &now
	} else {
		cursor.LastDeltaSync = &now
	}

	if err := o.store.SaveCursor(ctx, cursor); err != nil {
		return nil, translateSyncErr("saving sync cursor", err)
	}
	return cursor, nil
}

func translateSyncErr(msg string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTransient, msg, err)
	}
	return apperr.Wrap(apperr.KindInternal, msg, err)
}
