package launcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/five82/easel/internal/logtail"
)

const (
	baseProbeInterval = 100 * time.Millisecond
	maxBackoff        = 2 * time.Second
	logExcerptLines   = 15
)

// probeFunc returns nil once the server answers.
type probeFunc func(ctx context.Context) error

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

// httpProbe treats any HTTP response as ready. When wantOK is set only a
// 200 counts.
func httpProbe(client *http.Client, url string, wantOK bool) probeFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if wantOK && resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// waitReady probes until the server answers, the process exits, timeout
// elapses, or ctx is cancelled. Cancellation of ctx is returned as is;
// the other failures match ErrNotReady and carry the tail of the child log.
func waitReady(ctx context.Context, p *Process, probe probeFunc, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failures := 0
	var lastErr error
	for {
		attemptCtx, attemptCancel := context.WithTimeout(probeCtx, maxBackoff)
		err := probe(attemptCtx)
		attemptCancel()
		if err == nil {
			return nil
		}
		lastErr = err

		timer := time.NewTimer(calculateBackoff(failures, baseProbeInterval))
		failures++
		select {
		case <-p.Done():
			timer.Stop()
			return notReady(p, fmt.Sprintf("exited before becoming ready (%v)", exitReason(p)))
		case <-probeCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return notReady(p, fmt.Sprintf("did not answer within %s (last error: %v)", timeout, lastErr))
		case <-timer.C:
		}
	}
}

func exitReason(p *Process) error {
	if err := p.ExitErr(); err != nil {
		return err
	}
	return fmt.Errorf("exit status 0")
}

func notReady(p *Process, detail string) error {
	msg := fmt.Sprintf("%s %s", p.Name, detail)
	if tail := logtail.Excerpt(p.LogPath, logExcerptLines); tail != "" {
		msg += fmt.Sprintf("\n  last lines of %s:\n%s", p.LogPath, tail)
	}
	return fmt.Errorf("%w: %s", ErrNotReady, msg)
}
