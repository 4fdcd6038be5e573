package chat

import "errors"

// Sentinel errors for message submission.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrCompletion indicates the completion collaborator failed to produce a reply.
	// The user message stays in the log; retrying is submitting again.
	ErrCompletion = errors.New("completion failed")

	// ErrBusy indicates a reply is already being generated.
	ErrBusy = errors.New("a reply is already in progress")

	// ErrNotAuthenticated indicates a submission without a signed-in session.
	ErrNotAuthenticated = errors.New("not signed in")
)
