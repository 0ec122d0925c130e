package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/five82/easel/internal/imageapi"
	"github.com/five82/easel/internal/state"
)

// DefaultPrompts are generated when no prompt is given on the command line.
var DefaultPrompts = []string{
	"a majestic dragon flying over a castle",
	"a serene mountain lake at sunset",
	"a futuristic city with flying cars",
}

type generator interface {
	Generate(ctx context.Context, req imageapi.GenerationRequest, opts ...imageapi.GenerateOption) ([]image.Image, error)
	BaseURL() string
}

// batch runs prompts one at a time and saves the first image of each job.
type batch struct {
	api        generator
	store      *state.Store
	logger     *zap.Logger
	outputDir  string
	prefix     string
	images     int
	steps      int
	streamFreq int
	// plain logs every progress update; the TUI shows them instead.
	plain bool
}

// run stops at the first failure; later prompts stay queued.
func (b *batch) run(ctx context.Context, prompts []string) error {
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for i, prompt := range prompts {
		b.store.Begin(i)
		b.logger.Info("Generating image",
			zap.Int("n", i+1),
			zap.Int("of", len(prompts)),
			zap.String("prompt", prompt),
		)

		req := imageapi.GenerationRequest{
			Prompt:     prompt,
			Images:     b.images,
			Steps:      b.steps,
			StreamFreq: b.streamFreq,
		}
		images, err := b.api.Generate(ctx, req,
			imageapi.WithJobStarted(func(jobID string) {
				b.store.Started(i, jobID)
				b.logger.Debug("job created", zap.String("job_id", jobID))
			}),
			imageapi.WithProgress(func(p imageapi.Progress) {
				b.store.Progress(i, p)
				if b.plain {
					b.logger.Info("Progress: " + p.String())
				}
			}),
		)
		if err != nil {
			err = describe(err, b.api.BaseURL())
			b.store.Fail(i, err)
			return err
		}

		if len(images) == 0 {
			b.logger.Warn("Job finished without images", zap.String("prompt", prompt))
			b.store.Done(i, "")
			continue
		}

		b.store.Saving(i)
		path := filepath.Join(b.outputDir, fmt.Sprintf("%s_%d.png", b.prefix, i+1))
		if err := imaging.Save(images[0], path); err != nil {
			err = fmt.Errorf("save image: %w", err)
			b.store.Fail(i, err)
			return err
		}
		b.store.Done(i, path)
		b.logger.Info("Saved image", zap.String("path", path))
	}
	return nil
}

// describe turns client errors into messages that tell the user what to do.
func describe(err error, server string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, imageapi.ErrConnectivity):
		return fmt.Errorf("could not connect to the generation server at %s (start it with: easel launch): %w", server, err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}
