// Package launcher starts and supervises the two local servers behind the
// web interface: the Python generation server (api.py) and the static asset
// server (`easel serve`).
//
// # Lifecycle
//
//	NotStarted
//	    │  entry file present?        no → ErrPrecondition
//	    │  python modules import?     no → *DependencyError (ErrDependencyMissing)
//	    ▼
//	DependenciesChecked
//	    │  spawn `<interpreter> api.py`, probe until it answers
//	    ▼
//	GenerationServerStarted
//	    │  spawn `<self> serve -addr … -dir …`, probe /healthz
//	    ▼
//	AssetServerStarted
//	    │  open http://localhost:<port>/frontend.html (failure only logged)
//	    ▼
//	BrowserOpened → Running ──ctx cancelled──→ ShuttingDown → Stopped
//
// Nothing is spawned until both preflight checks pass. Once a child has been
// started, every exit path from Run goes through Supervisor.Close, so no
// server outlives the launcher.
//
// # Readiness
//
// Each child is probed over HTTP with exponential backoff (100ms doubling,
// capped at 2s) until it answers or ReadyTimeout elapses. If the child exits
// first the probe stops at once. Either failure matches ErrNotReady and
// carries the last lines of the child's log file.
//
// # Supervision
//
// While running, the launcher only waits. A child that exits on its own is
// logged once as a warning and is not restarted. Ctrl+C in a terminal reaches
// the children too, so an exit followed within half a second by cancellation
// of the launcher's context is treated as part of the shutdown.
//
// # Shutdown
//
// Close signals os.Interrupt to each child in reverse start order and kills
// it after the grace period (default 5s). Close is idempotent and returns the
// joined termination errors; Run logs them but still returns nil for an
// interrupted session.
//
// # Logs
//
// Child stdout and stderr go to <LogDir>/api.log and <LogDir>/assets.log,
// truncated at each start.
//
// # Errors
//
// Startup failures carry a go-errors stack trace that the CLI prints with
// -debug. Sentinels are matched with errors.Is.
package launcher
