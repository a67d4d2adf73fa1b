package core

import (
	"fmt"
	"sync/atomic"
)

var fatalAssertions atomic.Bool

func init() {
	fatalAssertions.Store(true)
}

// SetFatalAssertions switches between panicking assertions (debug) and
// logged ones (release).
func SetFatalAssertions(fatal bool) {
	fatalAssertions.Store(fatal)
}

// Assert panics with an error wrapping ErrAssertion when cond is false and
// assertions are fatal. Otherwise the failure is only logged.
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	err := fmt.Errorf("%w: %s", ErrAssertion, fmt.Sprintf(format, args...))
	LogError(err.Error())
	if fatalAssertions.Load() {
		panic(err)
	}
}
