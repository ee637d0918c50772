package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPhaseActive(t *testing.T) {
	active := []Phase{PhaseRequested, PhaseOwnerConfirmed, PhaseAdopterConfirmed}
	for _, p := range active {
		assert.True(t, p.Active(), string(p))
	}

	inactive := []Phase{PhaseNone, PhaseDenied, PhaseCancelled, PhaseAdopted, PhaseReset}
	for _, p := range inactive {
		assert.False(t, p.Active(), string(p))
	}
}

func TestAdoptionStateClone(t *testing.T) {
	var nilState *AdoptionState
	assert.Nil(t, nilState.Clone())

	st := &AdoptionState{Phase: PhaseRequested, AdopterID: uuid.New()}
	st.Record(PhaseRequested, st.AdopterID, time.Now())

	cp := st.Clone()
	cp.Record(PhaseDenied, uuid.New(), time.Now())
	cp.Phase = PhaseDenied

	assert.Equal(t, PhaseRequested, st.Phase)
	assert.Len(t, st.History, 1, "clone must not alias the history slice")
	assert.Len(t, cp.History, 2)
}

func TestConfirmedBoth(t *testing.T) {
	st := &AdoptionState{}
	assert.False(t, st.ConfirmedBoth())

	st.OwnerConfirmed = true
	assert.False(t, st.ConfirmedBoth())

	st.AdopterConfirmed = true
	assert.True(t, st.ConfirmedBoth())
}
