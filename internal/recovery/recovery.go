// Package recovery turns goroutine panics into logged errors.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic is wrapped by errors returned for a recovered panic.
var ErrPanic = errors.New("panic")

// Run calls fn and returns its error. A panic inside fn is logged with its
// stack and returned as an error wrapping ErrPanic.
//
// Example:
//
//	err := recovery.Run(logger, "sniffer", func() error {
//	    return sniffer.Run(ctx)
//	})
func Run(logger *slog.Logger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered",
				"goroutine", name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%w in %s: %v", ErrPanic, name, r)
		}
	}()
	return fn()
}

// Go runs fn on a new goroutine through Run. The result is delivered on
// the returned channel, which is buffered and receives exactly one value.
func Go(logger *slog.Logger, name string, fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- Run(logger, name, fn)
	}()
	return done
}
