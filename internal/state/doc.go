// Package state provides thread-safe batch state for the generate command.
//
// # Overview
//
// The batch runner drives one prompt at a time through the generation server
// and records what happens here; the TUI reads snapshots on its own refresh
// tick. The Store is the only point where the two goroutines meet.
//
//	Producer (batch runner):        Consumer (UI):
//	┌──────────────────────┐       ┌──────────────────┐
//	│ Begin / Started      │       │                  │
//	│ Progress             │──────→│ store.Snapshot() │
//	│ Saving / Done / Fail │(mutex)│      ↓           │
//	│ Finish               │       │  render          │
//	└──────────────────────┘       └──────────────────┘
//
// # Entry Lifecycle
//
// Every prompt starts queued and moves forward only:
//
//	queued → submitting → running → saving → done
//	                 └──────────┴──────────→ failed
//
// Progress updates that would move the step counter backwards are dropped,
// so the UI never shows a regression even if the server reports one.
//
// # Snapshot Copies
//
// Snapshot returns a copy of the job slice and a wrapped copy of LastError,
// so callers may keep or mutate what they receive.
//
// # Testing Considerations
//
// NewStore needs only the server address (for display) and the prompts. Out
// of range indexes are ignored rather than panicking.
package state
