package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/push"
)

// CooldownWindow is how long a type suppresses repeats for the same owner and
// device while the earlier notification stays unread.
const CooldownWindow = 6 * time.Hour

// TriggerRequest describes a condition that may produce a notification.
type TriggerRequest struct {
	OwnerID  string
	DeviceID *string
	Type     Type
	Title    string
	Message  string
	Metadata map[string]string
}

// TriggerEngine evaluates trigger requests against owner preferences and the
// cool-down window, persists accepted notifications, and hands them to the
// push dispatcher. Push delivery is best-effort: a dispatch failure never
// fails the trigger.
type TriggerEngine struct {
	repo       Repository
	dispatcher push.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewTriggerEngine creates a trigger engine.
func NewTriggerEngine(repo Repository, dispatcher push.Dispatcher, logger zerolog.Logger) *TriggerEngine {
	if dispatcher == nil {
		dispatcher = push.NopDispatcher{}
	}
	return &TriggerEngine{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Trigger evaluates the request. It returns the created notification, or nil
// when the owner disabled the type or an unread notification of the same type
// for the same device exists within the cool-down window.
func (e *TriggerEngine) Trigger(ctx context.Context, req TriggerRequest) (*Notification, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unknown notification type %q", req.Type)
	}

	settings, err := e.repo.GetSettings(ctx, req.OwnerID)
	if errors.Is(err, ErrSettingsNotFound) {
		settings = DefaultSettings(req.OwnerID)
	} else if err != nil {
		return nil, fmt.Errorf("loading notification settings: %w", err)
	}

	if !settings.Enabled(req.Type) {
		e.logger.Debug().
			Str("owner_id", req.OwnerID).
			Str("type", string(req.Type)).
			Msg("notification type disabled by owner")
		return nil, nil
	}

	now := e.now()

	_, err = e.repo.LatestUnread(ctx, req.OwnerID, req.DeviceID, req.Type, now.Add(-CooldownWindow))
	if err == nil {
		e.logger.Debug().
			Str("owner_id", req.OwnerID).
			Str("type", string(req.Type)).
			Msg("notification suppressed by cool-down")
		return nil, nil
	}
	if !errors.Is(err, ErrNotificationNotFound) {
		return nil, fmt.Errorf("checking notification cool-down: %w", err)
	}

	n := &Notification{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		DeviceID:  req.DeviceID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Metadata:  req.Metadata,
		CreatedAt: now,
	}

	if err := e.repo.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("storing notification: %w", err)
	}

	e.dispatch(ctx, settings, n)

	return n, nil
}

func (e *TriggerEngine) dispatch(ctx context.Context, settings *Settings, n *Notification) {
	if settings.PushToken == nil {
		return
	}

	platform := ""
	if settings.PushPlatform != nil {
		platform = *settings.PushPlatform
	}

	metadata := map[string]string{
		"notification_id": n.ID,
		"type":            string(n.Type),
	}
	if n.DeviceID != nil {
		metadata["device_id"] = *n.DeviceID
	}
	for k, v := range n.Metadata {
		metadata[k] = v
	}

	err := e.dispatcher.Dispatch(ctx, push.Message{
		Target:   *settings.PushToken,
		Platform: platform,
		Title:    n.Title,
		Body:     n.Message,
		Metadata: metadata,
	})
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("notification_id", n.ID).
			Msg("push dispatch failed")
	}
}
