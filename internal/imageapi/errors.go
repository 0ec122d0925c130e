package imageapi

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrConnectivity means the generation server could not be reached at all.
	ErrConnectivity = errors.New("generation server unreachable")
	// ErrRequestFailed means the server answered with a non-success status.
	ErrRequestFailed = errors.New("request failed")
	// ErrDecode means a finished job carried an image that could not be decoded.
	ErrDecode = errors.New("malformed image payload")
	// ErrInvalidRequest is returned before any network call for unusable input.
	ErrInvalidRequest = errors.New("invalid generation request")
)

// RequestError records a non-success HTTP status.
type RequestError struct {
	Path   string
	Status int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

func (e *RequestError) Unwrap() error { return ErrRequestFailed }

// DecodeError identifies which result image failed to decode.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// transportError classifies an error returned by http.Client.Do. When the
// caller's context is done its error is returned untouched so callers can tell
// it apart from an unreachable server.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// A per-request timeout (http.Client.Timeout) wraps DeadlineExceeded too,
	// but the caller's context is still live: the server is stalled, not the job.
	return fmt.Errorf("%w: %w", ErrConnectivity, err)
}

// isRequestTimeout reports whether err is a single request that timed out
// while ctx itself is still live.
func isRequestTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
