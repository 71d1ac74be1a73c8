// Package session runs the per-connection streaming sessions that sit
// between a client transport and a recognition or synthesis engine.
package session

import "errors"

var (
	// ErrEngineUnavailable means no engine was loaded at startup
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrAllocationFailed means the engine declined to create a stream
	ErrAllocationFailed = errors.New("stream allocation failed")

	// ErrBadRequest means caller input failed validation
	ErrBadRequest = errors.New("bad request")

	// ErrTransport wraps client read and write failures
	ErrTransport = errors.New("transport error")

	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session closed")
)
