package sched

import (
	"fmt"
	"os"
	"sync/atomic"

	"tempo/pkg/logx"
)

// abortf terminates the process. Invariant violations such as invoking
// an unsubscribed schedulable or an empty action are programming errors
// and are not reported as recoverable errors.
func abortf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "sched: fatal: "+format+"\n", args...)
	os.Exit(2)
}

var pkgLog atomic.Pointer[logx.Logger]

// SetLogger installs the logger used for the package's only log site:
// the panic-recovery path in Schedulable.Invoke. Defaults to a no-op.
func SetLogger(l logx.Logger) {
	pkgLog.Store(&l)
}

func logger() logx.Logger {
	if l := pkgLog.Load(); l != nil {
		return *l
	}
	return logx.Nop()
}
