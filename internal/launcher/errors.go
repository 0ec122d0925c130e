package launcher

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

var (
	// ErrPrecondition means the working directory does not contain the
	// generation server entry file. Nothing has been spawned.
	ErrPrecondition = errors.New("precondition failed")
	// ErrDependencyMissing means a required Python module could not be
	// imported. Nothing has been spawned.
	ErrDependencyMissing = errors.New("missing dependency")
	// ErrNotReady means a child exited or timed out before it answered.
	ErrNotReady = errors.New("server not ready")
)

// InstallHint is shown alongside dependency failures.
const InstallHint = "pip install -r requirements.txt"

// DependencyError names the module that failed to import.
type DependencyError struct {
	Module string
	Err    error
}

func (e *DependencyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("missing dependency: %s (run: %s)", e.Module, InstallHint)
	}
	return fmt.Sprintf("missing dependency: %s: %v (run: %s)", e.Module, e.Err, InstallHint)
}

func (e *DependencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDependencyMissing}
	}
	return []error{ErrDependencyMissing, e.Err}
}

// withStack attaches a stack trace for -debug output. It never turns a nil
// error into a non-nil interface.
func withStack(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}
