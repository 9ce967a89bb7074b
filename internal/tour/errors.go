package tour

import (
	"errors"
	"fmt"

	"github.com/iliyamo/tour-group-coordinator/internal/repository"
)

// Error categories returned by the engine.  Callers match them with
// errors.Is; the message after the category names the offending value.
var (
	// ErrValidation rejects malformed input before anything is written.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means a referenced request or group does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict means the current state does not permit the
	// command, or a concurrent writer changed it first.  It is retryable
	// after re-reading.
	ErrStateConflict = errors.New("state conflict")
	// ErrDependency wraps storage failures.
	ErrDependency = errors.New("dependency failure")
)

// Specific conflicts, each matching ErrStateConflict as well.
var (
	ErrInvalidState   = fmt.Errorf("%w: transition not allowed", ErrStateConflict)
	ErrAlreadyClaimed = fmt.Errorf("%w: group already has a guide", ErrStateConflict)
	ErrNotAssignee    = fmt.Errorf("%w: guide does not hold the group", ErrStateConflict)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// storeErr translates a repository error into the engine's taxonomy.
// Errors that already carry an engine category pass through untouched.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrStateConflict, err)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrStateConflict), errors.Is(err, ErrDependency):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrDependency, err)
	}
}
