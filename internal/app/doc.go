// Package app provides the orchestration layer behind the easel commands.
//
// # Overview
//
// Each subcommand of cmd/easel maps to one entry point here. The package is
// the composition root: it loads configuration, builds loggers and clients,
// and hands them to the domain packages.
//
//   - Generate: the example driver. Runs a batch of prompts against the
//     generation server and saves the first image of each job.
//   - Launch: starts api.py and the asset server, opens the browser, and
//     supervises both until interrupted.
//   - Serve: the static asset server Launch re-executes itself as.
//
// # Components
//
//   - app.go: entry points, config overrides and logger selection
//   - batch.go: the sequential prompt runner shared by the TUI and plain modes
//
// # Generate Data Flow
//
//	┌──────────────┐
//	│  Generate()  │
//	└──────┬───────┘
//	       ├─────> config.Load()       Read config.toml and env overrides
//	       ├─────> imageapi.NewClient() HTTP client for api.py
//	       ├─────> client.Alive()      Pre-flight check (3 second timeout)
//	       ├─────> state.NewStore()    One queued entry per prompt
//	       └─────> batch.run()         Plain mode: inline, logs to stdout
//	                                   TUI mode: goroutine + ui.Run()
//
//	Batch goroutine:                   UI:
//	┌──────────────────────────┐      ┌─────────────────────────┐
//	│ Generate(prompt)         │      │ tick → store.Snapshot() │
//	│  ├─> store.Started()     │      │ q    → cancel batch     │
//	│  ├─> store.Progress()    │─────→│ done → final render     │
//	│  └─> imaging.Save()      │      └─────────────────────────┘
//	│ close(done)              │
//	└──────────────────────────┘
//
// The TUI is used only when stdout is a terminal and -plain was not given.
// In TUI mode the logger writes to easel.log in the log directory so log
// lines do not tear the rendered view.
//
// # Error Handling
//
// The batch stops at the first failed prompt; later prompts are never
// submitted. Client errors are rewritten into messages that say what to do:
// an unreachable server names its address and suggests `easel launch`.
//
// A cancelled context (Ctrl+C, or q in the TUI) is a clean stop and returns
// nil. Images already written stay on disk.
//
// # Usage Example
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	err := app.Generate(ctx, app.GenerateOptions{
//		Prompts:   []string{"a red circle on white"},
//		OutputDir: "out",
//		Plain:     true,
//	})
package app
