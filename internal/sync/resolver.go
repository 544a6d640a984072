package sync

import "time"

// Disposition is the resolver's verdict on one client change.
type Disposition int

const (
	// DispositionApply: the server record did not change after the client's
	// cursor, the client change goes through.
	DispositionApply Disposition = iota + 1

	// DispositionNoOp: both sides independently reached the same end state,
	// nothing to do and nothing to report.
	DispositionNoOp

	// DispositionReject: the server state postdates the client's cursor and
	// is incompatible with the client's intent. Reported as a conflict; the
	// client discards its local change.
	DispositionReject
)

// ServerState is the resolver's view of the targeted server record, loaded
// by the orchestrator.
type ServerState struct {
	Exists    bool
	Deleted   bool
	UpdatedAt time.Time

	// Satisfied means the server record already matches the client's
	// intended end state, for example a mark-read targeting an already read
	// notification.
	Satisfied bool
}

// Resolution is a disposition plus the conflict to report when rejected.
type Resolution struct {
	Disposition Disposition
	Conflict    *Conflict
}

// Resolver applies the server-authoritative last-write-wins policy. No
// field-level merge is ever attempted.
type Resolver struct{}

// NewResolver creates a conflict resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve decides the disposition of one client change against the server
// record, given the client's last sync cursor.
func (r *Resolver) Resolve(change ClientChange, lastSync time.Time, state ServerState) Resolution {
	if !state.Exists {
		return reject(change, ReasonUnknownEntity, nil)
	}

	serverChanged := state.UpdatedAt.After(lastSync)
	if !serverChanged {
		return Resolution{Disposition: DispositionApply}
	}

	// The server moved after the client's cursor. Compatible intents merge
	// as no-ops, anything else loses to the server.
	if state.Deleted {
		if change.Action == ActionDelete {
			return Resolution{Disposition: DispositionNoOp}
		}
		return reject(change, ReasonDeletedOnServer, &state.UpdatedAt)
	}
	if state.Satisfied {
		return Resolution{Disposition: DispositionNoOp}
	}
	return reject(change, ReasonNewerOnServer, &state.UpdatedAt)
}

func reject(change ClientChange, reason ConflictReason, at *time.Time) Resolution {
	return Resolution{
		Disposition: DispositionReject,
		Conflict: &Conflict{
			Entity:          change.Entity,
			EntityID:        change.EntityID,
			Reason:          reason,
			ServerUpdatedAt: at,
		},
	}
}
