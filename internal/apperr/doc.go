// Package apperr defines the error taxonomy used across chmtrans. Every
// stage boundary wraps its failures in an *Error so the orchestrator and
// CLI can tell configuration problems from tool, backend, validation and
// timeout failures.
package apperr
