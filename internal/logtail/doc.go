// Package logtail reads the tail of child process log files.
//
// # Overview
//
// The launcher redirects the generation server and the asset server into
// per-process log files. When a child dies or never becomes ready, the last
// few lines of its log usually name the cause (a Python traceback, a port
// already in use), so the launcher attaches them to the error it reports.
//
// # Reading Log Files
//
// Read uses a ring buffer of size maxLines, so it makes one pass over the
// file and holds at most maxLines lines in memory regardless of file size:
//
//	lines, err := logtail.Read("~/.local/share/easel/logs/api.log", 20)
//
// A non-positive maxLines returns every line.
//
// # Error Handling
//
// Read returns nil, nil for a missing file. Other errors are wrapped.
// Excerpt never fails; it returns "" when there is nothing worth showing.
package logtail
