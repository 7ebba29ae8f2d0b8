// Package monitoring forwards unexpected dispatch and simulation failures
// to a process-wide error reporter. Init swaps the reporter; the package
// helpers are safe to call from any goroutine.
package monitoring

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

type holder struct{ m Monitor }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{m: NopMonitor{}}) }

// Init installs m as the reporter. A nil m keeps the current one.
func Init(m Monitor) {
	if m != nil {
		current.Store(&holder{m: m})
	}
}

// Current returns the installed reporter.
func Current() Monitor { return current.Load().m }

// CaptureException reports err with tags such as component, incident_id or
// vehicle_id. Nil errors are dropped.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	Current().CaptureException(err, tags)
}

// Recover reports a panic in the calling goroutine, flushes and re-panics.
// It must be deferred directly for recover to see the panic.
func Recover() {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	Current().CaptureException(err, map[string]string{"panic": "true"})
	Current().Flush(2 * time.Second)
	panic(r)
}

// Flush waits up to d for buffered reports to be delivered.
func Flush(d time.Duration) {
	Current().Flush(d)
}
