package cli

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"expat-market.storefront/pkg/logger"
)

// Severity says how much of the screen a failure takes down.
type Severity string

const (
	SeverityPage      Severity = "page"
	SeverityFeature   Severity = "feature"
	SeverityComponent Severity = "component"
)

// recovery is what the user is offered after a crash at each severity.
var recovery = map[Severity]struct {
	headline string
	action   string
}{
	SeverityPage:      {headline: "This page failed to load.", action: "Type 'retry' to try again."},
	SeverityFeature:   {headline: "This feature is unavailable right now.", action: "Type 'home' to go back to the start."},
	SeverityComponent: {headline: "Part of this view could not be shown.", action: "Type 'report' to send an error report."},
}

// PanicError is returned by Boundary.Run when the guarded code panicked.
type PanicError struct {
	Severity Severity
	Name     string
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s %q crashed: %v", e.Severity, e.Name, e.Value)
}

// Boundary contains panics raised while running a command so the REPL
// keeps going. The last crash is kept for retry and report.
type Boundary struct {
	out *Output

	mu        sync.Mutex
	last      *PanicError
	lastRetry func(ctx context.Context) error
}

func NewBoundary(out *Output) *Boundary {
	return &Boundary{out: out}
}

// Run calls fn, turning a panic into a PanicError and a recovery message.
func (b *Boundary) Run(ctx context.Context, severity Severity, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		pe := &PanicError{Severity: severity, Name: name, Value: r, Stack: debug.Stack()}
		logger.Error(logger.WithComponent(ctx, name), "Recovered from panic",
			zap.String("severity", string(severity)),
			zap.Any("panic", r),
			zap.ByteString("stack", pe.Stack),
		)

		b.mu.Lock()
		b.last = pe
		b.lastRetry = fn
		b.mu.Unlock()

		msg, ok := recovery[severity]
		if !ok {
			msg = recovery[SeverityComponent]
		}
		b.out.Printf("%s %s\n", msg.headline, msg.action)
		err = pe
	}()
	return fn(ctx)
}

// Retry reruns the last crashed operation under the same boundary.
func (b *Boundary) Retry(ctx context.Context) error {
	b.mu.Lock()
	last, fn := b.last, b.lastRetry
	b.mu.Unlock()
	if last == nil || fn == nil {
		b.out.Println("Nothing to retry.")
		return nil
	}

	err := b.Run(ctx, last.Severity, last.Name, fn)
	if err == nil {
		b.Reset()
	}
	return err
}

// Report logs the last crash under a fresh incident id and returns the id.
func (b *Boundary) Report(ctx context.Context) string {
	b.mu.Lock()
	last := b.last
	b.mu.Unlock()
	if last == nil {
		b.out.Println("Nothing to report.")
		return ""
	}

	incident := uuid.NewString()
	logger.Error(logger.WithComponent(ctx, last.Name), "Error report",
		zap.String("incident", incident),
		zap.String("severity", string(last.Severity)),
		zap.Any("panic", last.Value),
		zap.ByteString("stack", last.Stack),
	)
	b.out.Printf("Report sent. Reference: %s\n", incident)
	b.Reset()
	return incident
}

// Last returns the most recent crash, if any.
func (b *Boundary) Last() *PanicError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Boundary) Reset() {
	b.mu.Lock()
	b.last = nil
	b.lastRetry = nil
	b.mu.Unlock()
}
