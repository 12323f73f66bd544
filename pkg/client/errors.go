package client

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sipeed/picotd/pkg/td"
)

var (
	ErrAlreadyStarted = errors.New("client: already started")
	ErrNotStarted     = errors.New("client: not started")
	ErrAlreadyStopped = errors.New("client: already stopped")
	ErrNoCredentials  = errors.New("client: no bot token or authenticator configured")

	// Finish is returned by a handler to stop delivering the current event to
	// the handlers after it. It is a control signal and is never logged.
	Finish = errors.New("client: finish")
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// callerStack returns the stack of the caller of the function that calls it.
func callerStack() errors.StackTrace {
	st := errors.New("").(stackTracer).StackTrace()
	if len(st) > 2 {
		return st[2:]
	}
	return st
}

// Error is an engine failure for one request.
type Error struct {
	Code    int
	Message string
	Request string

	stack errors.StackTrace
}

func newError(e *td.Error, req td.Function, stack errors.StackTrace) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Request: req.Type(),
		stack:   stack,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Request, e.Code, e.Message)
}

// StackTrace is the call site that issued the failed request.
func (e *Error) StackTrace() errors.StackTrace { return e.stack }

// Format prints the call-site stack with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Error())
			e.stack.Format(s, verb)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
