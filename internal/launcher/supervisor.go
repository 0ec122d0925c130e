package launcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/easel/internal/logging"
)

const defaultStopGrace = 5 * time.Second

// Supervisor owns every child the launcher starts. Close terminates them all
// in reverse start order and is safe to call more than once.
type Supervisor struct {
	grace  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	procs   []*Process
	closed  bool
	closing chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewSupervisor returns an empty supervisor. A non-positive grace uses the
// default of five seconds.
func NewSupervisor(grace time.Duration, logger *zap.Logger) *Supervisor {
	if grace <= 0 {
		grace = defaultStopGrace
	}
	return &Supervisor{grace: grace, logger: logging.OrNop(logger), closing: make(chan struct{})}
}

// Start launches spec and takes ownership of the process.
func (s *Supervisor) Start(spec Spec) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("start %s: supervisor closed", spec.Name)
	}
	p, err := startProcess(spec)
	if err != nil {
		return nil, err
	}
	s.procs = append(s.procs, p)
	s.logger.Debug("process started",
		zap.String("name", p.Name),
		zap.Int("pid", p.Pid()),
		zap.String("log", p.LogPath),
	)
	return p, nil
}

// Processes returns the started processes in start order.
func (s *Supervisor) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Process, len(s.procs))
	copy(out, s.procs)
	return out
}

// Closing is closed when Close begins.
func (s *Supervisor) Closing() <-chan struct{} {
	return s.closing
}

// Close terminates every running child and waits for them to be reaped.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		procs := make([]*Process, len(s.procs))
		copy(procs, s.procs)
		s.mu.Unlock()
		close(s.closing)

		var errs []error
		for i := len(procs) - 1; i >= 0; i-- {
			p := procs[i]
			if err := p.terminate(s.grace); err != nil {
				errs = append(errs, err)
				continue
			}
			s.logger.Debug("process stopped", zap.String("name", p.Name))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
