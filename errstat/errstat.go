// Package errstat implements the error-status carrier shared by bgp, mrt
// and vm: a per-session last-error slot plus an optional callback invoked
// whenever a decode or VM error occurs, mirroring the original library's
// Bgp_SetErrFunc/Bgp_GetErrStat pair. Unlike the original C, this is never
// a package-level global: Status is an explicit value threaded through
// constructors, so that two goroutines decoding independent streams never
// share mutable error state.
package errstat

import (
	"fmt"
	"runtime/debug"
)

// Srcloc carries the call site an error was raised from, mirroring the
// original library's Srcloc source-location helper.
type Srcloc struct {
	File string
	Line int
	Func string
}

func (s Srcloc) String() string {
	if s.Func == "" {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d: %s", s.File, s.Line, s.Func)
}

// Handler is invoked with the error, the call site that raised it, and
// the user data installed alongside it.
type Handler func(err error, loc Srcloc, userData any)

// Status is a per-session error carrier: the last error raised, and an
// optional handler invoked as errors are raised.
type Status struct {
	handler  Handler
	userData any
	last     error
	lastLoc  Srcloc
}

// New returns a Status with no handler installed; Raise only records the
// last error in that case.
func New() *Status { return &Status{} }

// SetHandler installs fn as the callback invoked by future Raise calls,
// along with userData passed through verbatim. A nil fn restores the
// default record-only behavior.
func (s *Status) SetHandler(fn Handler, userData any) {
	s.handler = fn
	s.userData = userData
}

// Raise records err as the last error and, if a handler is installed,
// invokes it. Raise is a no-op if err is nil.
func (s *Status) Raise(err error, loc Srcloc) {
	if err == nil {
		return
	}
	s.last = err
	s.lastLoc = loc
	if s.handler != nil {
		s.handler(err, loc, s.userData)
	}
}

// Last returns the most recently raised error and the site it was raised
// from, or (nil, Srcloc{}) if none has been raised yet.
func (s *Status) Last() (error, Srcloc) { return s.last, s.lastLoc }

// Clear resets the last-error slot without touching the installed
// handler.
func (s *Status) Clear() { s.last = nil; s.lastLoc = Srcloc{} }

// Ignore is a Handler that does nothing, equivalent to the original
// library's BGP_ERR_IGN sentinel: errors are recorded in Status but never
// escalated.
func Ignore(error, Srcloc, any) {}

// Abort is a Handler that panics with the error and a best-effort stack
// trace, equivalent to the original library's BGP_ERR_QUIT sentinel.
func Abort(err error, loc Srcloc, _ any) {
	panic(fmt.Sprintf("errstat: fatal error at %s: %v\n%s", loc, err, debug.Stack()))
}
