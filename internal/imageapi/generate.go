package imageapi

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// GenerateOption hooks into a Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	onJob      func(jobID string)
	onProgress func(Progress)
}

// WithJobStarted is called once with the job id issued by the server.
func WithJobStarted(fn func(jobID string)) GenerateOption {
	return func(o *generateOptions) { o.onJob = fn }
}

// WithProgress is called for every poll that reports progress.
func WithProgress(fn func(Progress)) GenerateOption {
	return func(o *generateOptions) { o.onProgress = fn }
}

// Generate drives one request to completion: create the job, poll until it
// finishes, then decode every returned image.
func (c *Client) Generate(ctx context.Context, req GenerationRequest, opts ...GenerateOption) ([]image.Image, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	jobID, err := c.CreateJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if o.onJob != nil {
		o.onJob(jobID)
	}

	status, err := Wait(ctx, c, jobID, c.interval, o.onProgress)
	if err != nil {
		if c.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("job %s did not finish within %s: %w", jobID, c.timeout, err)
		}
		return nil, err
	}
	return DecodeImages(status.Response)
}

// Wait polls jobID until the server reports it finished. The first poll is
// immediate. Polling stops on the first finished status. Progress passed to
// onProgress never goes backwards. A poll that times out on its own is retried
// on the next tick; only ctx bounds how long Wait keeps trying.
func Wait(ctx context.Context, api JobAPI, jobID string, interval time.Duration, onProgress func(Progress)) (*JobStatus, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	var (
		last Progress
		seen bool
	)
	for {
		status, err := api.FetchJob(ctx, jobID)
		switch {
		case err != nil && isRequestTimeout(ctx, err):
			// Stalled server, not a dead one: ask again next tick.
		case err != nil:
			return nil, fmt.Errorf("poll job %s: %w", jobID, err)
		case status.Finished:
			return status, nil
		default:
			if p, ok := status.Progress(); ok && (!seen || p.Step >= last.Step) {
				p.JobID = jobID
				last, seen = p, true
				if onProgress != nil {
					onProgress(p)
				}
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
