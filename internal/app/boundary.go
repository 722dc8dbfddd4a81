package app

import (
	"fmt"
	"runtime/debug"
	gosync "sync"

	"go.uber.org/zap"
)

// errorBoundary catches panics raised while rendering so a broken view
// shows a recovery screen instead of killing the terminal session. It is
// held by pointer so the value-receiver View can record a failure.
type errorBoundary struct {
	logger *zap.Logger

	mu  gosync.Mutex
	err string
}

func newErrorBoundary(logger *zap.Logger) *errorBoundary {
	return &errorBoundary{logger: logger}
}

// Render calls fn and returns its output, or "" after recording the
// panic if fn panics.
func (b *errorBoundary) Render(fn func() string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("view panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			b.mu.Lock()
			b.err = fmt.Sprint(r)
			b.mu.Unlock()
			out = ""
		}
	}()
	return fn()
}

// Failed returns the recorded panic message.
func (b *errorBoundary) Failed() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err, b.err != ""
}

// Reset clears the recorded failure.
func (b *errorBoundary) Reset() {
	b.mu.Lock()
	b.err = ""
	b.mu.Unlock()
}
