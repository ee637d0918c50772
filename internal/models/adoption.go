package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the state of an in-flight adoption. The zero value means no
// adoption is in progress; "both confirmed" is instantaneous (it triggers
// deletion of the pet) and is never persisted.
type Phase string

const (
	PhaseNone             Phase = ""
	PhaseRequested        Phase = "requested"
	PhaseOwnerConfirmed   Phase = "owner_confirmed"
	PhaseAdopterConfirmed Phase = "adopter_confirmed"
	PhaseDenied           Phase = "denied"
	PhaseCancelled        Phase = "cancelled"

	// Audit-only markers. They appear in History and in the adoption
	// archive but are never a live phase on a pet.
	PhaseAdopted Phase = "adopted"
	PhaseReset   Phase = "reset"
)

// Active reports whether the phase describes an adoption still in flight.
func (p Phase) Active() bool {
	switch p {
	case PhaseRequested, PhaseOwnerConfirmed, PhaseAdopterConfirmed:
		return true
	}
	return false
}

// AdoptionState is the custody-transfer state machine embedded on a pet.
// At most one exists per pet; absence means the pet is freely requestable.
type AdoptionState struct {
	Phase            Phase         `json:"phase"`
	AdopterID        uuid.UUID     `json:"adopter_id"`
	OwnerConfirmed   bool          `json:"owner_confirmed"`
	AdopterConfirmed bool          `json:"adopter_confirmed"`
	ConversationID   uuid.UUID     `json:"conversation_id"`
	RequestedAt      time.Time     `json:"requested_at"`
	History          []PhaseChange `json:"history"`
}

// PhaseChange is one append-only audit entry of the adoption history.
type PhaseChange struct {
	Phase Phase     `json:"phase"`
	At    time.Time `json:"at"`
	By    uuid.UUID `json:"by"`
}

// Record appends an audit entry for a transition. History is never mutated
// in place, only appended to.
func (a *AdoptionState) Record(phase Phase, by uuid.UUID, at time.Time) {
	a.History = append(a.History, PhaseChange{Phase: phase, At: at, By: by})
}

// ConfirmedBoth reports whether both parties have confirmed.
func (a *AdoptionState) ConfirmedBoth() bool {
	return a.OwnerConfirmed && a.AdopterConfirmed
}

// Clone returns a deep copy so stores can hand out state without aliasing
// the caller's slice.
func (a *AdoptionState) Clone() *AdoptionState {
	if a == nil {
		return nil
	}
	cp := *a
	cp.History = append([]PhaseChange(nil), a.History...)
	return &cp
}
