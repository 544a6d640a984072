package models

import "github.com/dosepoint/dosepoint/internal/activity"

// ActivityEntry represents one activity log entry.
type ActivityEntry struct {
	ID          string            `json:"id"`
	DeviceID    string            `json:"deviceId"`
	Action      string            `json:"action"`
	DoseAmount  *string           `json:"doseAmount,omitempty"`
	TriggeredBy string            `json:"triggeredBy"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	OccurredAt  Timestamp         `json:"occurredAt"`
}

// ActivityEntryFromDomain converts a domain entry to its API representation.
func ActivityEntryFromDomain(e *activity.Entry) ActivityEntry {
	return ActivityEntry{
		ID:          e.ID,
		DeviceID:    e.DeviceID,
		Action:      string(e.Action),
		DoseAmount:  e.DoseAmount,
		TriggeredBy: string(e.TriggeredBy),
		Metadata:    e.Metadata,
		OccurredAt:  Timestamp(e.OccurredAt),
	}
}

// ActivityEntriesFromDomain converts a slice of domain entries.
func ActivityEntriesFromDomain(entries []*activity.Entry) []ActivityEntry {
	items := make([]ActivityEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, ActivityEntryFromDomain(e))
	}
	return items
}

// PagedActivity represents a device's activity listing.
type PagedActivity struct {
	Items []ActivityEntry   `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
