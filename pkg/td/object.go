// Package td holds the typed objects exchanged with the protocol engine.
//
// Every request, response and push update crossing the engine boundary is a
// td.Object. Requests additionally implement Function, push updates implement
// Update. Both sets are sealed: only this package can add members, which keeps
// the broadcast switch in pkg/client exhaustive.
package td

import "fmt"

// Object is any value the engine accepts or produces.
type Object interface {
	Type() string
}

// Function is a request submitted to the engine.
type Function interface {
	Object
	function()
}

// Error is the typed failure payload of an envelope.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (*Error) Type() string { return "error" }

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Ok is the empty success payload.
type Ok struct{}

func (*Ok) Type() string { return "ok" }

// NewError builds an engine failure payload.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
