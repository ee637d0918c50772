package adoption

import "errors"

// Workflow errors. All but ErrConflict are business outcomes surfaced to the
// caller; ErrConflict is retried internally a bounded number of times first.
var (
	ErrPetNotFound       = errors.New("pet not found")
	ErrAlreadyInProgress = errors.New("an adoption is already in progress for this pet")
	ErrSelfAdoption      = errors.New("cannot adopt your own pet")
	ErrNotAuthorized     = errors.New("not a party to this adoption")
	ErrNoActiveAdoption  = errors.New("no adoption in progress for this pet")
	ErrInvalidTransition = errors.New("invalid adoption state transition")
	ErrConflict          = errors.New("concurrent update conflict")
)
