package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/easel/internal/logging"
)

const (
	defaultEntryFile    = "api.py"
	defaultInterpreter  = "python3"
	defaultAPIAddr      = "127.0.0.1:5001"
	defaultAssetAddr    = "127.0.0.1:8080"
	defaultReadyTimeout = 60 * time.Second
	defaultExitSettle   = 500 * time.Millisecond
)

// DefaultModules are the Python modules the generation server imports.
var DefaultModules = []string{"torch", "flask", "flask_cors", "diffusers"}

// Options configure a Launcher. Zero values fall back to defaults.
type Options struct {
	WorkDir     string
	EntryFile   string
	Interpreter string
	Modules     []string

	// APIAddr is where the generation server listens. It is only probed;
	// the entry file decides the port.
	APIAddr   string
	AssetAddr string
	AssetDir  string
	// FrontendURL is opened in the browser once both servers answer.
	FrontendURL string

	LogDir       string
	ReadyTimeout time.Duration
	StopGrace    time.Duration

	// SelfPath is the executable re-run as `serve` for the asset server.
	SelfPath  string
	NoBrowser bool

	Checker     Checker
	OpenBrowser func(url string) error
	OnState     func(State)
	Logger      *zap.Logger
	Out         io.Writer
}

// Launcher starts the generation server and the asset server and keeps
// them running until its context is cancelled.
type Launcher struct {
	opts   Options
	logger *zap.Logger
	sup    *Supervisor
	http   *http.Client

	watchers   sync.WaitGroup
	exitSettle time.Duration

	mu    sync.Mutex
	state State
}

// New returns a launcher with defaults applied.
func New(opts Options) *Launcher {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if abs, err := filepath.Abs(opts.WorkDir); err == nil {
		opts.WorkDir = abs
	}
	if opts.EntryFile == "" {
		opts.EntryFile = defaultEntryFile
	}
	if opts.Interpreter == "" {
		opts.Interpreter = defaultInterpreter
	}
	if opts.Modules == nil {
		opts.Modules = DefaultModules
	}
	if opts.APIAddr == "" {
		opts.APIAddr = defaultAPIAddr
	}
	if opts.AssetAddr == "" {
		opts.AssetAddr = defaultAssetAddr
	}
	if opts.AssetDir == "" {
		opts.AssetDir = opts.WorkDir
	}
	if opts.FrontendURL == "" {
		opts.FrontendURL = "http://localhost:" + portOf(opts.AssetAddr) + "/frontend.html"
	}
	if opts.LogDir == "" {
		opts.LogDir = filepath.Join(os.TempDir(), "easel-logs")
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	if opts.Checker == nil {
		opts.Checker = PythonChecker{Interpreter: opts.Interpreter, Dir: opts.WorkDir}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = OpenBrowser
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := logging.OrNop(opts.Logger)
	return &Launcher{
		opts:       opts,
		logger:     logger,
		sup:        NewSupervisor(opts.StopGrace, logger),
		http:       &http.Client{Timeout: maxBackoff},
		exitSettle: defaultExitSettle,
	}
}

// State returns the current lifecycle state.
func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Processes returns the children started so far.
func (l *Launcher) Processes() []*Process {
	return l.sup.Processes()
}

func (l *Launcher) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.logger.Debug("launcher state", zap.Stringer("state", s))
	if l.opts.OnState != nil {
		l.opts.OnState(s)
	}
}

// Run performs preflight checks, starts both servers, opens the browser and
// blocks until ctx is cancelled. Every started child is terminated before
// Run returns. A cancelled ctx is a clean stop and returns nil.
func (l *Launcher) Run(ctx context.Context) error {
	l.logger.Info("Starting easel", zap.String("dir", l.opts.WorkDir))

	if err := l.preflight(); err != nil {
		return withStack(err)
	}
	l.logger.Info("Checking dependencies", zap.Strings("modules", l.opts.Modules))
	if err := checkDependencies(ctx, l.opts.Checker, l.opts.Modules); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return withStack(err)
	}
	l.logger.Info("All dependencies are installed")
	l.setState(StateDependenciesChecked)

	defer l.shutdown()

	if err := l.startServers(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return withStack(err)
	}

	l.openBrowser()
	l.setState(StateBrowserOpened)

	l.printBanner()
	l.setState(StateRunning)

	for _, p := range l.sup.Processes() {
		l.watchers.Add(1)
		go func(p *Process) {
			defer l.watchers.Done()
			l.watch(ctx, p)
		}(p)
	}

	<-ctx.Done()
	l.logger.Info("Shutting down servers")
	return nil
}

func (l *Launcher) preflight() error {
	entry := filepath.Join(l.opts.WorkDir, l.opts.EntryFile)
	info, err := os.Stat(entry)
	if err != nil {
		return fmt.Errorf("%w: %s not found; run easel launch from the project root or pass -dir", ErrPrecondition, l.opts.EntryFile)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrPrecondition, entry)
	}
	return nil
}

func (l *Launcher) startServers(ctx context.Context) error {
	env := os.Environ()

	l.logger.Info("Starting generation server", zap.String("addr", l.opts.APIAddr))
	api, err := l.sup.Start(Spec{
		Name:    "generation server",
		Path:    l.opts.Interpreter,
		Args:    []string{l.opts.EntryFile},
		Dir:     l.opts.WorkDir,
		Env:     env,
		LogPath: filepath.Join(l.opts.LogDir, "api.log"),
	})
	if err != nil {
		return err
	}
	apiURL := "http://" + probeHost(l.opts.APIAddr) + "/"
	if err := waitReady(ctx, api, httpProbe(l.http, apiURL, false), l.opts.ReadyTimeout); err != nil {
		return err
	}
	l.setState(StateGenerationServerStarted)

	self := l.opts.SelfPath
	if self == "" {
		self, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locate easel executable: %w", err)
		}
	}
	l.logger.Info("Starting web interface", zap.String("addr", l.opts.AssetAddr))
	assets, err := l.sup.Start(Spec{
		Name:    "asset server",
		Path:    self,
		Args:    []string{"serve", "-addr", l.opts.AssetAddr, "-dir", l.opts.AssetDir},
		Dir:     l.opts.WorkDir,
		Env:     env,
		LogPath: filepath.Join(l.opts.LogDir, "assets.log"),
	})
	if err != nil {
		return err
	}
	healthURL := "http://" + probeHost(l.opts.AssetAddr) + "/healthz"
	if err := waitReady(ctx, assets, httpProbe(l.http, healthURL, true), l.opts.ReadyTimeout); err != nil {
		return err
	}
	l.setState(StateAssetServerStarted)
	return nil
}

func (l *Launcher) openBrowser() {
	if l.opts.NoBrowser {
		l.logger.Info("Skipping browser", zap.String("url", l.opts.FrontendURL))
		return
	}
	l.logger.Info("Opening web interface in your browser", zap.String("url", l.opts.FrontendURL))
	if err := l.opts.OpenBrowser(l.opts.FrontendURL); err != nil {
		l.logger.Warn("could not open browser; open the URL manually",
			zap.String("url", l.opts.FrontendURL),
			zap.Error(err),
		)
	}
}

// watch logs a child that exits on its own. It does not restart it.
// Ctrl+C in a terminal signals the whole process group, so a child may exit
// slightly before ctx is cancelled; an exit followed by ctx.Done within
// exitSettle counts as part of the shutdown.
func (l *Launcher) watch(ctx context.Context, p *Process) {
	select {
	case <-p.Done():
		settle := time.NewTimer(l.exitSettle)
		defer settle.Stop()
		select {
		case <-ctx.Done():
			return
		case <-l.sup.Closing():
			return
		case <-settle.C:
		}
		l.logger.Warn("process exited unexpectedly",
			zap.String("name", p.Name),
			zap.Error(exitReason(p)),
			zap.String("log", p.LogPath),
		)
	case <-ctx.Done():
	case <-l.sup.Closing():
	}
}

func (l *Launcher) shutdown() {
	l.setState(StateShuttingDown)
	err := l.sup.Close()
	l.watchers.Wait()
	if err != nil {
		l.logger.Warn("error stopping servers", zap.Error(err))
	} else if len(l.sup.Processes()) > 0 {
		l.logger.Info("Servers stopped")
	}
	l.setState(StateStopped)
}

var (
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF79C6"))
	bannerLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
	bannerValue = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD"))
	bannerBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 2)
)

func (l *Launcher) printBanner() {
	lines := []string{
		bannerTitle.Render("easel is running"),
		"",
		bannerLabel.Render("Web interface ") + bannerValue.Render(l.opts.FrontendURL),
		bannerLabel.Render("API endpoint  ") + bannerValue.Render("http://"+probeHost(l.opts.APIAddr)),
		bannerLabel.Render("Logs          ") + bannerValue.Render(l.opts.LogDir),
		"",
		bannerLabel.Render("Press Ctrl+C to stop both servers"),
	}
	_, _ = fmt.Fprintln(l.opts.Out, bannerBox.Render(strings.Join(lines, "\n")))
}

// probeHost rewrites wildcard listen addresses to loopback.
func probeHost(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}
