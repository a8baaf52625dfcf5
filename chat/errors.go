package chat

import (
	"errors"
	"fmt"
)

// Failure taxonomy of the messaging subsystem. Callers branch with
// errors.Is; the REST layer maps these onto status codes.
var (
	// ErrUnauthenticated means no resolvable caller identity. It is
	// deliberately distinct from an empty contact list: empty means
	// "authenticated, zero eligible contacts".
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied means the caller is authenticated but their role
	// is not allowed the gated action. Never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStore wraps a backend insert/query/delete failure.
	ErrStore = errors.New("message store failure")

	// ErrUpload wraps an attachment upload failure.
	ErrUpload = errors.New("attachment upload failed")

	ErrSelfMessage  = errors.New("sender and receiver must differ")
	ErrEmptyMessage = errors.New("message needs text or an attachment")
	ErrNoContact    = errors.New("no active contact")
)

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStore, err)
}
