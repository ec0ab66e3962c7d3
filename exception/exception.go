package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/monitoring"
)

// SafeGo runs fn on its own goroutine and logs a panic instead of crashing.
func SafeGo(name string, fn func()) {
	go func() {
		defer recoverAndLog(name, false)
		fn()
	}()
}

// SafeGoWithPanic is SafeGo for loops the node cannot run without; a panic
// is logged and then exits the process.
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer recoverAndLog(name, true)
		fn()
	}()
}

func recoverAndLog(name string, exit bool) {
	if r := recover(); r != nil {
		monitoring.IncreasePanicCount()
		logx.Error("PANIC", "panic in ", name, ": ", r, "\n", string(debug.Stack()))
		if exit {
			os.Exit(1)
		}
	}
}
