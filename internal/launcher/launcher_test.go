package launcher

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubChecker struct {
	mu      sync.Mutex
	missing string
	calls   []string
}

func (c *stubChecker) Check(_ context.Context, module string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, module)
	if module == c.missing {
		return errors.New("No module named '" + module + "'")
	}
	return nil
}

func (c *stubChecker) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
	onRun  func()
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	if s == StateRunning && r.onRun != nil {
		r.onRun()
	}
}

func (r *stateRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

type harness struct {
	dir       string
	apiAddr   string
	assetAddr string
	checker   *stubChecker
	recorder  *stateRecorder
	opened    chan string
	out       *bytes.Buffer
	logs      *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dir:       t.TempDir(),
		apiAddr:   freeAddr(t),
		assetAddr: freeAddr(t),
		checker:   &stubChecker{},
		recorder:  &stateRecorder{},
		opened:    make(chan string, 1),
		out:       &bytes.Buffer{},
	}
	t.Setenv("EASEL_HELPER_PROCESS", "1")
	t.Setenv("EASEL_HELPER_API_ADDR", h.apiAddr)
	return h
}

func (h *harness) launcher(t *testing.T, mutate func(*Options)) *Launcher {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h.logs = logs
	opts := Options{
		WorkDir:      h.dir,
		Interpreter:  osArgs0(),
		SelfPath:     osArgs0(),
		APIAddr:      h.apiAddr,
		AssetAddr:    h.assetAddr,
		LogDir:       t.TempDir(),
		ReadyTimeout: 15 * time.Second,
		StopGrace:    2 * time.Second,
		Checker:      h.checker,
		OpenBrowser: func(url string) error {
			h.opened <- url
			return nil
		},
		OnState: h.recorder.record,
		Logger:  zap.New(core),
		Out:     h.out,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func TestRun_MissingEntryFileSpawnsNothing(t *testing.T) {
	h := newHarness(t)
	l := h.launcher(t, nil)

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "api.py not found")
	assert.Empty(t, h.checker.Calls(), "dependencies must not be checked before the entry file")
	assert.Empty(t, l.Processes())
	assert.Equal(t, StateNotStarted, l.State())
}

func TestRun_MissingDependencyStopsBeforeSpawning(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)
	h.checker.missing = "flask_cors"
	l := h.launcher(t, nil)

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyMissing)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "flask_cors", depErr.Module)
	assert.Contains(t, err.Error(), InstallHint)

	assert.Equal(t, []string{"torch", "flask", "flask_cors"}, h.checker.Calls())
	assert.Empty(t, l.Processes())
}

func TestRun_StartsBothServersAndStopsOnInterrupt(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.recorder.onRun = cancel

	l := h.launcher(t, nil)
	require.NoError(t, l.Run(ctx))

	select {
	case url := <-h.opened:
		assert.Equal(t, "http://localhost:"+portOf(h.assetAddr)+"/frontend.html", url)
	default:
		t.Fatal("browser was not opened")
	}

	assert.Equal(t, []State{
		StateDependenciesChecked,
		StateGenerationServerStarted,
		StateAssetServerStarted,
		StateBrowserOpened,
		StateRunning,
		StateShuttingDown,
		StateStopped,
	}, h.recorder.States())

	procs := l.Processes()
	require.Len(t, procs, 2)
	for _, p := range procs {
		assert.False(t, p.Running(), "%s still running", p.Name)
	}
	for _, addr := range []string{h.apiAddr, h.assetAddr} {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			t.Fatalf("%s still accepting connections after shutdown", addr)
		}
	}
	assert.Contains(t, h.out.String(), "Press Ctrl+C to stop both servers")
	assert.Equal(t, 0, h.logs.FilterMessage("process exited unexpectedly").Len())
}

func TestRun_GenerationServerCrashReportsLogTail(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)
	t.Setenv("EASEL_HELPER_API_MODE", "crash")
	l := h.launcher(t, nil)

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "generation server exited before becoming ready")
	assert.Contains(t, err.Error(), "Address already in use")

	require.Len(t, l.Processes(), 1, "asset server must not start after a failed generation server")
	assert.Equal(t, StateStopped, l.State())
}

func TestRun_BrowserFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.recorder.onRun = cancel

	l := h.launcher(t, func(o *Options) {
		o.OpenBrowser = func(string) error { return errors.New("no display") }
	})
	require.NoError(t, l.Run(ctx))
	assert.Contains(t, h.recorder.States(), StateRunning)
	assert.Equal(t, 1, h.logs.FilterMessage("could not open browser; open the URL manually").Len())
}

func TestRun_NoBrowserSkipsOpen(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.recorder.onRun = cancel

	l := h.launcher(t, func(o *Options) { o.NoBrowser = true })
	require.NoError(t, l.Run(ctx))
	assert.Empty(t, h.opened)
}

func TestRun_UnexpectedExitIsLoggedOnce(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var l *Launcher
	h.recorder.onRun = func() {
		go func() {
			api := l.Processes()[0]
			_ = api.cmd.Process.Kill()
			<-api.Done()
			assert.Eventually(t, func() bool {
				return h.logs.FilterMessage("process exited unexpectedly").Len() == 1
			}, 5*time.Second, 20*time.Millisecond)
			cancel()
		}()
	}
	l = h.launcher(t, nil)
	require.NoError(t, l.Run(ctx))

	entries := h.logs.FilterMessage("process exited unexpectedly").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "generation server", entries[0].ContextMap()["name"])
}

func TestRun_InterruptedChildrenBeforeCancelAreNotUnexpected(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var l *Launcher
	h.recorder.onRun = func() {
		go func() {
			// A terminal Ctrl+C reaches the children first; the parent's
			// signal context fires a little later.
			for _, p := range l.Processes() {
				_ = p.cmd.Process.Signal(os.Interrupt)
			}
			for _, p := range l.Processes() {
				<-p.Done()
			}
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()
	}
	l = h.launcher(t, nil)
	require.NoError(t, l.Run(ctx))

	assert.Equal(t, 0, h.logs.FilterMessage("process exited unexpectedly").Len())
	assert.Equal(t, StateStopped, l.State())
}

func TestRun_CancelDuringStartupIsClean(t *testing.T) {
	h := newHarness(t)
	writeEntry(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	l := h.launcher(t, func(o *Options) {
		// Nothing listens here, so readiness never succeeds.
		o.APIAddr = freeAddr(t)
		o.OnState = func(s State) {
			h.recorder.record(s)
			if s == StateDependenciesChecked {
				time.AfterFunc(300*time.Millisecond, cancel)
			}
		}
	})
	t.Setenv("EASEL_HELPER_API_ADDR", freeAddr(t))

	require.NoError(t, l.Run(ctx))
	for _, p := range l.Processes() {
		assert.False(t, p.Running())
	}
	assert.NotContains(t, h.recorder.States(), StateRunning)
	assert.Equal(t, StateStopped, l.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "generation server started", StateGenerationServerStarted.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestProbeHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1:5001", probeHost("0.0.0.0:5001"))
	assert.Equal(t, "127.0.0.1:8080", probeHost(":8080"))
	assert.Equal(t, "localhost:8080", probeHost("localhost:8080"))
	assert.True(t, strings.HasSuffix(probeHost("garbage"), "garbage"))
}
