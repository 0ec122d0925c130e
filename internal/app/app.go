package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/five82/easel/internal/assets"
	"github.com/five82/easel/internal/config"
	"github.com/five82/easel/internal/imageapi"
	"github.com/five82/easel/internal/launcher"
	"github.com/five82/easel/internal/logging"
	"github.com/five82/easel/internal/prefs"
	"github.com/five82/easel/internal/state"
	"github.com/five82/easel/internal/ui"
)

const aliveTimeout = 3 * time.Second

// GenerateOptions configure the generate command. Zero values fall back to
// the config file.
type GenerateOptions struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/easel/prefs.toml
	Prompts    []string
	PollEvery  int // seconds
	Images     int
	Steps      int
	StreamFreq int // intermediate image every N steps; zero keeps the config value
	OutputDir  string
	Plain      bool
	Debug      bool
	Stdout     io.Writer
}

// Generate runs the example batch against the generation server.
func Generate(ctx context.Context, opts GenerateOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.PollEvery > 0 {
		cfg.API.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}
	if opts.Images > 0 {
		cfg.Generate.Images = opts.Images
	}
	if opts.Steps > 0 {
		cfg.Generate.Steps = opts.Steps
	}
	if opts.StreamFreq > 0 {
		cfg.Generate.StreamFreq = opts.StreamFreq
	}
	if strings.TrimSpace(opts.OutputDir) != "" {
		cfg.Generate.OutputDir = opts.OutputDir
	}

	prompts := promptsOrDefault(opts.Prompts)

	client, err := imageapi.NewClient(cfg.API.Bind,
		imageapi.WithPollInterval(cfg.API.PollInterval),
		imageapi.WithJobTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	useTUI := !opts.Plain && isTerminal(stdout)

	var logger *zap.Logger
	if useTUI {
		var closeLog func() error
		logger, closeLog, err = logging.NewFile(cfg.LogPath("easel"), logging.Options{Level: logLevel(opts.Debug)})
		if err != nil {
			return err
		}
		defer func() { _ = closeLog() }()
	} else {
		logger, err = logging.New(logging.Options{Level: logLevel(opts.Debug), Writer: stdout})
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	aliveCtx, cancelAlive := context.WithTimeout(ctx, aliveTimeout)
	alive := client.Alive(aliveCtx)
	cancelAlive()
	if !alive {
		if ctx.Err() != nil {
			return nil
		}
		return describe(fmt.Errorf("%w: no answer from %s", imageapi.ErrConnectivity, client.BaseURL()), client.BaseURL())
	}

	store := state.NewStore(client.BaseURL(), prompts)
	b := &batch{
		api:        client,
		store:      store,
		logger:     logger,
		outputDir:  cfg.Generate.OutputDir,
		prefix:     cfg.Generate.Prefix,
		images:     cfg.Generate.Images,
		steps:      cfg.Generate.Steps,
		streamFreq: cfg.Generate.StreamFreq,
		plain:      !useTUI,
	}

	if !useTUI {
		return cleanStop(b.run(ctx, prompts))
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = b.run(runCtx, prompts)
		store.Finish(runErr)
	}()

	aborted, uiErr := ui.Run(ui.Options{
		Store:     store,
		Cancel:    cancel,
		Done:      done,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		Logger:    logger,
	})
	cancel()
	<-done
	return finishInteractive(logger, store, aborted, uiErr, runErr)
}

// finishInteractive turns the outcome of a TUI session into Generate's result.
// Quitting from the interface is a clean stop even if the batch goroutine
// reported the cancellation as a failure.
func finishInteractive(logger *zap.Logger, store *state.Store, aborted bool, uiErr, runErr error) error {
	if uiErr != nil {
		return uiErr
	}
	if aborted {
		snap := store.Snapshot()
		logger.Info("Batch cancelled",
			zap.Int("saved", snap.Completed()),
			zap.Int("of", len(snap.Jobs)),
		)
		return nil
	}
	return cleanStop(runErr)
}

// LaunchOptions configure the launch command.
type LaunchOptions struct {
	ConfigPath string
	Dir        string
	NoBrowser  bool
	Debug      bool
}

// Launch starts both servers and supervises them until ctx is cancelled.
func Launch(ctx context.Context, opts LaunchOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: logLevel(opts.Debug), Writer: os.Stdout})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	workDir := opts.Dir
	if strings.TrimSpace(workDir) == "" {
		workDir = "."
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}

	l := launcher.New(launcherOptions(cfg, workDir, opts.NoBrowser, logger))
	return l.Run(ctx)
}

func launcherOptions(cfg config.Config, workDir string, noBrowser bool, logger *zap.Logger) launcher.Options {
	assetDir := cfg.Launcher.AssetDir
	if !filepath.IsAbs(assetDir) {
		assetDir = filepath.Join(workDir, assetDir)
	}
	return launcher.Options{
		WorkDir:      workDir,
		EntryFile:    cfg.Launcher.EntryFile,
		Interpreter:  cfg.Launcher.Interpreter,
		Modules:      cfg.Launcher.Modules,
		APIAddr:      cfg.API.Bind,
		AssetAddr:    cfg.Launcher.AssetBind,
		AssetDir:     assetDir,
		FrontendURL:  cfg.FrontendURL(),
		LogDir:       cfg.Launcher.LogDir,
		ReadyTimeout: cfg.Launcher.ReadyTimeout,
		NoBrowser:    noBrowser,
		Logger:       logger,
	}
}

// ServeOptions configure the serve command.
type ServeOptions struct {
	Addr  string
	Dir   string
	Debug bool
}

// Serve runs the static asset server until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	logger, err := logging.New(logging.Options{Level: logLevel(opts.Debug)})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv, err := assets.NewServer(assets.Options{Addr: opts.Addr, Dir: opts.Dir, Logger: logger})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func loadConfig(path string) (config.Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func promptsOrDefault(args []string) []string {
	prompts := make([]string, 0, len(args))
	for _, p := range args {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return append([]string(nil), DefaultPrompts...)
	}
	return prompts
}

// cleanStop treats an interrupted batch as a normal exit.
func cleanStop(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func logLevel(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}
