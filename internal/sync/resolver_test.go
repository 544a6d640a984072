package sync

import (
	"testing"
	"time"
)

func TestResolverDispositions(t *testing.T) {
	lastSync := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := lastSync.Add(-time.Hour)
	after := lastSync.Add(time.Hour)

	tests := []struct {
		name   string
		change ClientChange
		state  ServerState
		want   Disposition
		reason ConflictReason
	}{
		{
			name:   "unknown target",
			change: ClientChange{Entity: EntityDevice, EntityID: "dev-1", Action: ActionUpdate},
			state:  ServerState{},
			want:   DispositionReject,
			reason: ReasonUnknownEntity,
		},
		{
			name:   "server unchanged, update applies",
			change: ClientChange{Entity: EntityDevice, EntityID: "dev-1", Action: ActionUpdate},
			state:  ServerState{Exists: true, UpdatedAt: before},
			want:   DispositionApply,
		},
		{
			name:   "server unchanged, delete applies",
			change: ClientChange{Entity: EntityDevice, EntityID: "dev-1", Action: ActionDelete},
			state:  ServerState{Exists: true, UpdatedAt: before},
			want:   DispositionApply,
		},
		{
			name:   "deleted on server, update rejected",
			change: ClientChange{Entity: EntityDevice, EntityID: "dev-1", Action: ActionUpdate},
			state:  ServerState{Exists: true, Deleted: true, UpdatedAt: after},
			want:   DispositionReject,
			reason: ReasonDeletedOnServer,
		},
		{
			name:   "deleted on both sides, no-op",
			change: ClientChange{Entity: EntityDevice, EntityID: "dev-1", Action: ActionDelete},
			state:  ServerState{Exists: true, Deleted: true, UpdatedAt: after},
			want:   DispositionNoOp,
		},
		{
			name:   "server newer, incompatible update rejected",
			change: ClientChange{Entity: EntityDevice, EntityID: "dev-1", Action: ActionUpdate},
			state:  ServerState{Exists: true, UpdatedAt: after},
			want:   DispositionReject,
			reason: ReasonNewerOnServer,
		},
		{
			name:   "server newer but same end state, no-op",
			change: ClientChange{Entity: EntityNotification, EntityID: "ntf-1", Action: ActionUpdate},
			state:  ServerState{Exists: true, UpdatedAt: after, Satisfied: true},
			want:   DispositionNoOp,
		},
	}

	resolver := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(tt.change, lastSync, tt.state)
			if got.Disposition != tt.want {
				t.Fatalf("Resolve() disposition = %v, want %v", got.Disposition, tt.want)
			}
			if tt.want == DispositionReject {
				if got.Conflict == nil {
					t.Fatal("Resolve() rejected without a conflict")
				}
				if got.Conflict.Reason != tt.reason {
					t.Errorf("conflict reason = %q, want %q", got.Conflict.Reason, tt.reason)
				}
			} else if got.Conflict != nil {
				t.Errorf("Resolve() conflict = %+v, want none", got.Conflict)
			}
		})
	}
}
