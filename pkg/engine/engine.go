// Package engine defines the boundary to the stateful protocol engine.
//
// The engine is reachable only through two primitives: Submit a tagged
// request for a client handle, and Drain that handle's queue of envelopes.
// An envelope with a non-zero RequestID answers the request submitted with
// that id; RequestID 0 marks a push update.
package engine

import (
	"errors"
	"time"

	"github.com/sipeed/picotd/pkg/td"
)

// Handle identifies one engine-side session.
type Handle int64

// Envelope is one unit drained from a handle's queue. Payload is a *td.Error
// when the request failed.
type Envelope struct {
	RequestID int64
	Payload   td.Object
}

// IsUpdate reports whether the envelope is an unsolicited push update.
func (e Envelope) IsUpdate() bool { return e.RequestID == 0 }

var ErrUnknownHandle = errors.New("engine: unknown client handle")

// Engine is implemented by protocol backends.
//
// Every Submit with a non-zero id eventually yields exactly one envelope with
// that id, unless the handle is destroyed first. Drain may return no
// envelopes; that is not an error. Drain is only ever called from a single
// goroutine per handle.
type Engine interface {
	CreateClient() (Handle, error)
	DestroyClient(h Handle)
	Submit(h Handle, requestID int64, req td.Function)
	Drain(h Handle, max int, timeout time.Duration) []Envelope
}
