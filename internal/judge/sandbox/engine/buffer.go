package engine

import (
	"bytes"
	"sync"
)

// outputBudget is shared by stdout and stderr so the ceiling applies to
// their combined size.
type outputBudget struct {
	mu        sync.Mutex
	remaining int64
	exceeded  chan struct{}
	once      sync.Once
}

func newOutputBudget(limit int64) *outputBudget {
	return &outputBudget{remaining: limit, exceeded: make(chan struct{})}
}

// take reserves up to n bytes and returns how many may be kept.
func (b *outputBudget) take(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int64(n) <= b.remaining {
		b.remaining -= int64(n)
		return n
	}
	kept := int(b.remaining)
	b.remaining = 0
	b.once.Do(func() { close(b.exceeded) })
	return kept
}

// Exceeded is closed once any write overflows the budget.
func (b *outputBudget) Exceeded() <-chan struct{} {
	return b.exceeded
}

// boundedWriter keeps what fits in the budget and discards the rest.
// It never fails a write so the child does not see EPIPE before being killed.
type boundedWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	budget *outputBudget
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	kept := w.budget.take(len(p))
	if kept > 0 {
		w.mu.Lock()
		w.buf.Write(p[:kept])
		w.mu.Unlock()
	}
	return len(p), nil
}

func (w *boundedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
