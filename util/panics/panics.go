// Package panics wraps goroutines so a panic is logged through the
// subsystem logger and triggers an orderly shutdown instead of crashing the
// process silently mid-write. Kept close to verbatim from the teacher's
// util/panics/panics.go, since it is pure ambient infrastructure untouched
// by the domain change: only the logger type it wraps (infrastructure/log
// instead of the teacher's logs.Logger) differs.
package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/tos-network/tos-core/infrastructure/log"
)

// HandlePanic recovers a panic, logs it along with the goroutine's stack
// trace at spawn time, then exits the process. Deferred at the top of every
// goroutine GoroutineWrapperFunc spawns.
func HandlePanic(logger *log.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		logger.Criticalf("fatal error: %+v", err)
		if goroutineStackTrace != nil {
			logger.Criticalf("goroutine stack trace: %s", goroutineStackTrace)
		}
		logger.Criticalf("stack trace: %s", debug.Stack())
		close(done)
	}()

	const panicHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(panicHandlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't handle a fatal error, exiting")
	case <-done:
	}
	logger.Criticalf("exiting")
	os.Exit(1)
}

// GoroutineWrapperFunc returns a spawn function that runs f in a new
// goroutine with HandlePanic deferred, capturing the stack trace at spawn
// time (not at panic time, since the original call stack is gone by then).
func GoroutineWrapperFunc(logger *log.Logger) func(func()) {
	return func(f func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(logger, stackTrace)
			f()
		}()
	}
}

// AfterFuncWrapperFunc returns a time.AfterFunc wrapper that handles panics
// the same way GoroutineWrapperFunc does.
func AfterFuncWrapperFunc(logger *log.Logger) func(d time.Duration, f func()) *time.Timer {
	return func(d time.Duration, f func()) *time.Timer {
		stackTrace := debug.Stack()
		return time.AfterFunc(d, func() {
			defer HandlePanic(logger, stackTrace)
			f()
		})
	}
}

// Exit logs reason through logger and exits the process.
func Exit(logger *log.Logger, reason string) {
	done := make(chan struct{})
	go func() {
		logger.Criticalf("exiting: %s", reason)
		close(done)
	}()

	const exitHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(exitHandlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't exit gracefully")
	case <-done:
	}
	os.Exit(1)
}
