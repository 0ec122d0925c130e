package imageapi

import (
	"fmt"
	"strings"
)

// GenerationRequest is the body of POST /text_to_image.
type GenerationRequest struct {
	Prompt     string `json:"prompt"`
	Images     int    `json:"n_images"`
	Steps      int    `json:"n_inf_steps"`
	StreamFreq int    `json:"stream_freq,omitempty"`
}

// Validate rejects requests the server could never satisfy. The accepted
// step range is the server's policy; only positivity is checked here.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if r.Images < 1 {
		return fmt.Errorf("%w: number of images must be at least 1; requested: %d", ErrInvalidRequest, r.Images)
	}
	if r.Steps < 1 {
		return fmt.Errorf("%w: inference steps must be positive; requested: %d", ErrInvalidRequest, r.Steps)
	}
	if r.StreamFreq < 0 {
		return fmt.Errorf("%w: stream frequency must not be negative", ErrInvalidRequest)
	}
	return nil
}

// CreateJobResponse mirrors the payload returned by /text_to_image.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatus mirrors /jobs/{id}/.
type JobStatus struct {
	Finished bool    `json:"finished"`
	Response []Frame `json:"response"`
}

// Frame is one entry of a job's response list. Img holds a base64 encoded
// image once the server has one; Latent is only sent by some servers.
type Frame struct {
	Step   int    `json:"t"`
	Total  int    `json:"total_t"`
	Img    string `json:"img"`
	Latent string `json:"latent,omitempty"`
}

// Progress is the step counter of a running job.
type Progress struct {
	JobID string
	Step  int
	Total int
}

// Ratio returns Step/Total in [0,1].
func (p Progress) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	r := float64(p.Step) / float64(p.Total)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// String renders progress the way the example driver prints it.
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", p.Step, p.Total, p.Ratio()*100)
}

// Progress extracts the step counter from the first frame. ok is false when
// the status carries no usable progress information.
func (s JobStatus) Progress() (Progress, bool) {
	if len(s.Response) == 0 {
		return Progress{}, false
	}
	f := s.Response[0]
	if f.Total <= 0 || f.Step < 0 {
		return Progress{}, false
	}
	step := f.Step
	if step > f.Total {
		step = f.Total
	}
	return Progress{Step: step, Total: f.Total}, true
}
