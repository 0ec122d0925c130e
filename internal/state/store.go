package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/easel/internal/imageapi"
)

// Phase is where a batch entry is in its lifecycle.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseSubmitting
	PhaseRunning
	PhaseSaving
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseSubmitting:
		return "submitting"
	case PhaseRunning:
		return "running"
	case PhaseSaving:
		return "saving"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether the entry is currently being worked on.
func (p Phase) Active() bool {
	return p == PhaseSubmitting || p == PhaseRunning || p == PhaseSaving
}

// Job is one prompt of a batch as the UI sees it.
type Job struct {
	Index      int
	Prompt     string
	JobID      string
	Phase      Phase
	Step       int
	Total      int
	SavedPath  string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ratio returns the progress fraction; finished jobs are always 1.
func (j Job) Ratio() float64 {
	if j.Phase == PhaseDone || j.Phase == PhaseSaving {
		return 1
	}
	return imageapi.Progress{Step: j.Step, Total: j.Total}.Ratio()
}

// Snapshot represents the latest batch state available to the UI.
type Snapshot struct {
	Server      string
	Jobs        []Job
	StartedAt   time.Time
	LastUpdated time.Time
	Finished    bool
	LastError   error
}

// Current returns the entry being worked on, if any.
func (s Snapshot) Current() (Job, bool) {
	for _, j := range s.Jobs {
		if j.Phase.Active() {
			return j, true
		}
	}
	return Job{}, false
}

// Completed counts entries that finished successfully.
func (s Snapshot) Completed() int {
	n := 0
	for _, j := range s.Jobs {
		if j.Phase == PhaseDone {
			n++
		}
	}
	return n
}

// Store coordinates concurrent updates to the snapshot. The batch runner is
// the only writer; the UI reads snapshots on its own tick.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore seeds a store with one queued entry per prompt.
func NewStore(server string, prompts []string) *Store {
	jobs := make([]Job, len(prompts))
	for i, p := range prompts {
		jobs[i] = Job{Index: i, Prompt: p, Phase: PhaseQueued}
	}
	now := time.Now()
	return &Store{snapshot: Snapshot{
		Server:      server,
		Jobs:        jobs,
		StartedAt:   now,
		LastUpdated: now,
	}}
}

// Begin marks entry i as being submitted.
func (s *Store) Begin(i int) {
	s.update(i, func(j *Job) {
		j.Phase = PhaseSubmitting
		j.StartedAt = time.Now()
	})
}

// Started records the job id issued by the server.
func (s *Store) Started(i int, jobID string) {
	s.update(i, func(j *Job) {
		j.JobID = jobID
		j.Phase = PhaseRunning
	})
}

// Progress records a step counter. Updates that would move the counter
// backwards are ignored.
func (s *Store) Progress(i int, p imageapi.Progress) {
	s.update(i, func(j *Job) {
		if p.Step < j.Step {
			return
		}
		j.Step = p.Step
		j.Total = p.Total
		if j.Phase == PhaseSubmitting {
			j.Phase = PhaseRunning
		}
	})
}

// Saving marks entry i as decoded and being written to disk.
func (s *Store) Saving(i int) {
	s.update(i, func(j *Job) {
		j.Phase = PhaseSaving
		if j.Total > 0 {
			j.Step = j.Total
		}
	})
}

// Done marks entry i as finished; path is empty when nothing was saved.
func (s *Store) Done(i int, path string) {
	s.update(i, func(j *Job) {
		j.Phase = PhaseDone
		j.SavedPath = path
		j.FinishedAt = time.Now()
	})
}

// Fail marks entry i as failed.
func (s *Store) Fail(i int, err error) {
	s.update(i, func(j *Job) {
		j.Phase = PhaseFailed
		j.Err = err
		j.FinishedAt = time.Now()
	})
	if err != nil {
		s.mu.Lock()
		s.snapshot.LastError = err
		s.mu.Unlock()
	}
}

// Finish marks the whole batch as over. err is the reason it stopped early,
// if any.
func (s *Store) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Finished = true
	if err != nil {
		s.snapshot.LastError = err
	}
	s.snapshot.LastUpdated = time.Now()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Jobs = cloneJobs(s.snapshot.Jobs)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) update(i int, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.snapshot.Jobs) {
		return
	}
	fn(&s.snapshot.Jobs[i])
	s.snapshot.LastUpdated = time.Now()
}

func cloneJobs(jobs []Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	dup := make([]Job, len(jobs))
	copy(dup, jobs)
	return dup
}
