// Package ui renders live progress for `easel generate` as a Bubble Tea
// program.
//
// # Layout
//
//	easel  http://127.0.0.1:5001  Jobs: 1/3  42s
//
//	✓ done        a majestic dragon flying over a castle
//	    out/example_1.png
//	⣾ running     a serene mountain lake at sunset
//	    ██████████░░░░░░░░░░ 50/100
//	  queued      a futuristic city with flying cars
//
//	q cancel and quit • ? toggle help
//
// The program runs inline rather than on the alternate screen so the final
// frame (with the batch summary) stays in the terminal scrollback.
//
// # Event Flow
//
//  1. Run builds the Model and starts the program.
//  2. A tick every PollTick copies the latest state.Snapshot from the store.
//  3. When Options.Done is closed the model takes a final snapshot and quits.
//  4. q, esc or ctrl+c before that point calls Options.Cancel, which aborts
//     the in-flight job through its context.
//
// # Themes
//
// Dracula and Slate are available; T cycles between them and persists the
// choice through the prefs package.
package ui
