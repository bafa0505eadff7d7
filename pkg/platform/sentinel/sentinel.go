// Package sentinel defines the errors stores report about resource state.
// Stores return these, wrapped or bare, and services translate them into
// domain errors with HTTP codes attached. Validation failures never use
// these; they go through pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound: no run record, review item, or reviewer account with
	// that key.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a create collided with an existing row for the same key.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyUsed: a uniqueness claim lost its race, like seeding a
	// reviewer whose email another instance just registered.
	ErrAlreadyUsed = errors.New("already used")
)
