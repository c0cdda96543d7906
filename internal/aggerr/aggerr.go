// Package aggerr classifies the failure modes a connection can hit into
// three error bands: per-connection fatal, per-connection recoverable (not
// actually an error; handled by the caller before reaching this package),
// and worker fatal.
package aggerr

import "errors"

// Sentinel errors for the per-connection fatal band, including the
// specific parser failure modes exercised as boundary cases.
var (
	ErrMalformedResponseLine = errors.New("aggressor: bad HTTP response line")
	ErrMalformedHeader       = errors.New("aggressor: bad HTTP header")
	ErrBadContentLength      = errors.New("aggressor: bad Content-Length")
	ErrOversizeResponse      = errors.New("aggressor: too large HTTP response")
	ErrServerClosed          = errors.New("aggressor: server closed connection")
	ErrBodyExceedsLength     = errors.New("aggressor: received data is larger than Content-Length")
)

// Sentinel errors for the worker-fatal band.
var (
	ErrReactorInit = errors.New("aggressor: reactor create failed")
	ErrReactorWait = errors.New("aggressor: reactor wait failed")
)

// Band classifies where an error falls in the three-way failure split.
type Band int

const (
	// BandRecoverable is not really an error: would-block / in-progress.
	BandRecoverable Band = iota
	// BandConnectionFatal ends one connection; the slot is recycled.
	BandConnectionFatal
	// BandWorkerFatal stops the whole worker.
	BandWorkerFatal
)

// Classify places err into one of the three bands. Every per-connection
// sentinel defined in this package is connection-fatal; anything reaching the worker loop
// from the reactor itself (ErrReactorInit, ErrReactorWait) is worker-fatal.
// Unrecognized errors default to connection-fatal: a recv failure with a
// non-recoverable errno falls here too.
func Classify(err error) Band {
	if err == nil {
		return BandRecoverable
	}
	switch {
	case errors.Is(err, ErrReactorInit), errors.Is(err, ErrReactorWait):
		return BandWorkerFatal
	default:
		return BandConnectionFatal
	}
}
