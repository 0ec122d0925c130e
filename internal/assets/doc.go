// Package assets is the static file server behind `easel serve`.
//
// The launcher runs it as a child process to serve frontend.html and the
// rest of the project directory on port 8080. It is an echo instance with
// recover, zap request logging, gzip and directory browsing, plus
// GET /healthz returning "ok" for the launcher's readiness probe.
package assets
