package service

import "errors"

// Error taxonomy shared by all classroom operations. Handlers map these to
// HTTP statuses; services wrap them with operation context via fmt.Errorf.
var (
	// ErrUnauthenticated means no caller identity was presented.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidArgument means a required field is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound means the room or a referenced sub-resource is absent.
	ErrNotFound = errors.New("not found")
	// ErrFailedPrecondition means the action is not permitted given the
	// current room state, e.g. AI disabled or a missing provider credential.
	ErrFailedPrecondition = errors.New("failed precondition")
	// ErrInternal wraps upstream and unexpected failures. Safe to retry.
	ErrInternal = errors.New("internal error")
)

// Caller is the authenticated identity behind a request. Anonymous sessions
// still carry a uid; teacher-ness is always re-derived against the room's
// teacher_uid, never taken from the client.
type Caller struct {
	UID  string
	Name string
}
