package gate

import "errors"

var (
	// ErrUnauthorized is returned for a zero-value user or a denied action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoPolicyDefined is returned when no policy is registered for the
	// requested resource type.
	ErrNoPolicyDefined = errors.New("no policy registered for resource type")
)
