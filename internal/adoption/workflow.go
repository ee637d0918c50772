package adoption

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/models"
)

// Workflow is the two-party adoption state machine. All validation, the
// decision to delete a pet, and the sequencing of side effects live here;
// storage, chat and push are collaborators behind interfaces.
//
// Ordering guarantee: the state change is committed through the store before
// any chat message or event is attempted. A failed notification never rolls
// back or blocks the committed transition.
type Workflow struct {
	store  PetStore
	chats  ConversationLog
	events EventBus

	maxRetries int
	now        func() time.Time
}

// NewWorkflow wires the workflow to its collaborators.
func NewWorkflow(store PetStore, chats ConversationLog, events EventBus) *Workflow {
	return &Workflow{
		store:      store,
		chats:      chats,
		events:     events,
		maxRetries: 3,
		now:        time.Now,
	}
}

// ConfirmResult reports whether a confirmation finalized the adoption.
// Pet is nil when Completed is true: the listing no longer exists.
type ConfirmResult struct {
	Completed bool        `json:"completed"`
	Pet       *models.Pet `json:"pet,omitempty"`
}

// Request starts an adoption for a pet. The conversation between the two
// parties is found or created first (the call is idempotent, so a lost race
// cannot orphan anything), then the new state is committed, then the request
// message and events go out.
func (w *Workflow) Request(ctx context.Context, petID, adopterID uuid.UUID, message string) (*models.Pet, error) {
	pet, err := w.store.Get(ctx, petID)
	if err != nil {
		return nil, err
	}
	if pet.OwnerID == adopterID {
		return nil, ErrSelfAdoption
	}
	if pet.Adoption != nil && pet.Adoption.Phase.Active() {
		return nil, ErrAlreadyInProgress
	}

	convID, err := w.chats.FindOrCreate(ctx, pet.OwnerID, adopterID)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	var next *models.AdoptionState
	updated, err := w.withRetry(ctx, petID, func(p *models.Pet) (*models.Pet, error) {
		if p.OwnerID == adopterID {
			return nil, ErrSelfAdoption
		}
		if p.Adoption != nil && p.Adoption.Phase.Active() {
			return nil, ErrAlreadyInProgress
		}
		now := w.now()
		st := &models.AdoptionState{
			Phase:          models.PhaseRequested,
			AdopterID:      adopterID,
			ConversationID: convID,
			RequestedAt:    now,
		}
		st.Record(models.PhaseRequested, adopterID, now)
		p.Adoption = st
		p.Status = models.PetStatusPending
		next = st.Clone()
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	w.deliver(ctx, Compose(Action{Kind: ActionRequest, Actor: adopterID, Message: message}, updated, nil, next))
	return updated, nil
}

// Confirm records the caller's confirmation. Re-confirming is a no-op, not an
// error. When the other party's flag is already set, the call finalizes the
// adoption: the pet is deleted in the same commit, and the terminal messages
// and events follow. Finalization is exactly-once; a later Confirm sees
// ErrPetNotFound.
func (w *Workflow) Confirm(ctx context.Context, petID, callerID uuid.UUID) (ConfirmResult, error) {
	var sawParty bool

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		var (
			prev, next *models.AdoptionState
			petView    *models.Pet
			finalized  bool
		)

		updated, err := w.store.AtomicUpdate(ctx, petID, func(p *models.Pet) (*models.Pet, error) {
			st := p.Adoption
			if st == nil || !st.Phase.Active() {
				return nil, ErrNoActiveAdoption
			}
			if callerID != p.OwnerID && callerID != st.AdopterID {
				return nil, ErrNotAuthorized
			}
			sawParty = true
			prev = st.Clone()
			petView = petSummary(p)
			now := w.now()

			flipped := false
			if callerID == p.OwnerID && !st.OwnerConfirmed {
				st.OwnerConfirmed = true
				flipped = true
			}
			if callerID == st.AdopterID && !st.AdopterConfirmed {
				st.AdopterConfirmed = true
				flipped = true
			}

			if st.ConfirmedBoth() {
				finalized = true
				st.Record(models.PhaseAdopted, callerID, now)
				p.Status = models.PetStatusAdopted
				return nil, nil
			}

			if flipped {
				if st.OwnerConfirmed {
					st.Phase = models.PhaseOwnerConfirmed
				} else {
					st.Phase = models.PhaseAdopterConfirmed
				}
				st.Record(st.Phase, callerID, now)
			}
			next = st.Clone()
			return p, nil
		})

		if errors.Is(err, ErrConflict) {
			continue
		}
		if errors.Is(err, ErrPetNotFound) && attempt > 0 && sawParty {
			// A racing confirmation finalized first. From this caller's point
			// of view the adoption completed; that is success, not an error.
			return ConfirmResult{Completed: true}, nil
		}
		if err != nil {
			return ConfirmResult{}, err
		}

		if finalized {
			w.deliver(ctx, Compose(Action{Kind: ActionConfirm, Actor: callerID}, petView, prev, nil))
			return ConfirmResult{Completed: true}, nil
		}
		w.deliver(ctx, Compose(Action{Kind: ActionConfirm, Actor: callerID}, petView, prev, next))
		return ConfirmResult{Completed: false, Pet: updated}, nil
	}
	return ConfirmResult{}, ErrConflict
}

// Deny rejects the in-flight adoption. Only the owner may deny. The pet
// returns to the requestable state and only the adopter is notified.
func (w *Workflow) Deny(ctx context.Context, petID, callerID uuid.UUID) (*models.Pet, error) {
	return w.close(ctx, petID, callerID, ActionDeny)
}

// Cancel withdraws the in-flight adoption. Only the adopter may cancel. The
// pet returns to the requestable state and only the owner is notified.
func (w *Workflow) Cancel(ctx context.Context, petID, callerID uuid.UUID) (*models.Pet, error) {
	return w.close(ctx, petID, callerID, ActionCancel)
}

func (w *Workflow) close(ctx context.Context, petID, callerID uuid.UUID, kind string) (*models.Pet, error) {
	var (
		prev    *models.AdoptionState
		petView *models.Pet
	)
	updated, err := w.withRetry(ctx, petID, func(p *models.Pet) (*models.Pet, error) {
		st := p.Adoption
		if st == nil || !st.Phase.Active() {
			return nil, ErrNoActiveAdoption
		}
		switch kind {
		case ActionDeny:
			if callerID != p.OwnerID {
				return nil, ErrNotAuthorized
			}
		case ActionCancel:
			if callerID != st.AdopterID {
				return nil, ErrNotAuthorized
			}
		}
		prev = st.Clone()
		petView = petSummary(p)

		outcome := models.PhaseDenied
		if kind == ActionCancel {
			outcome = models.PhaseCancelled
		}
		st.Phase = outcome
		st.Record(outcome, callerID, w.now())
		p.Status = models.PetStatusAvailable
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	w.deliver(ctx, Compose(Action{Kind: kind, Actor: callerID}, petView, prev, nil))
	return updated, nil
}

// Reset unconditionally clears the adoption state of a pet, whatever its
// phase. It exists for administrators recovering stuck transfers, e.g. a
// party account deleted mid-adoption. Succeeds whenever the pet exists.
func (w *Workflow) Reset(ctx context.Context, petID, adminID uuid.UUID) (*models.Pet, error) {
	var (
		prev    *models.AdoptionState
		petView *models.Pet
	)
	updated, err := w.withRetry(ctx, petID, func(p *models.Pet) (*models.Pet, error) {
		petView = petSummary(p)
		if p.Adoption == nil {
			prev = nil
			return p, nil
		}
		prev = p.Adoption.Clone()
		p.Adoption.Phase = models.PhaseReset
		p.Adoption.Record(models.PhaseReset, adminID, w.now())
		p.Status = models.PetStatusAvailable
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	w.deliver(ctx, Compose(Action{Kind: ActionReset, Actor: adminID}, petView, prev, nil))
	return updated, nil
}

// withRetry re-runs the atomic update a bounded number of times when the
// storage layer reports a lost race.
func (w *Workflow) withRetry(ctx context.Context, petID uuid.UUID, fn func(*models.Pet) (*models.Pet, error)) (*models.Pet, error) {
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		p, err := w.store.AtomicUpdate(ctx, petID, fn)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return p, err
	}
	return nil, ErrConflict
}

// deliver sends the composed notifications. Failures are logged with enough
// context for manual reconciliation and never surfaced: the committed state
// is authoritative and clients can re-fetch it.
func (w *Workflow) deliver(ctx context.Context, n Notifications) {
	for _, msg := range n.Messages {
		if err := w.chats.Append(ctx, msg); err != nil {
			log.Printf("adoption: chat delivery failed (pet %s, kind %s, recipient %s): %v",
				msg.PetID, msg.Kind, msg.RecipientID, err)
		}
	}
	for _, ev := range n.Events {
		w.events.Push(ev.UserID, ev.Type, ev.Payload)
	}
}

// petSummary captures the fields notifications need before the record is
// mutated or deleted.
func petSummary(p *models.Pet) *models.Pet {
	return &models.Pet{ID: p.ID, OwnerID: p.OwnerID, Name: p.Name}
}
