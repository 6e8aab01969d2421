package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Outcome is the result of evaluating one message in a batch. The values
// double as metric labels.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeError     Outcome = "error"
)

// Tally counts batch outcomes.
type Tally struct {
	Matched   int
	Unmatched int
	Errors    int
}

// Done returns the number of messages with any outcome.
func (t Tally) Done() int {
	return t.Matched + t.Unmatched + t.Errors
}

func (t *Tally) add(o Outcome) {
	switch o {
	case OutcomeMatched:
		t.Matched++
	case OutcomeUnmatched:
		t.Unmatched++
	default:
		t.Errors++
	}
}

// ProgressReporter follows a batch of message evaluations.
type ProgressReporter interface {
	Start(total int)
	Record(o Outcome)
	Finish()
	Error(err error)
}

// BatchProgress renders a single status line with per-outcome counts.
// It is safe for use from several workers.
type BatchProgress struct {
	mu      sync.Mutex
	total   int
	tally   Tally
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) *BatchProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BatchProgress{writer: w}
}

// Start resets the counts for a batch of total messages.
func (p *BatchProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.tally = Tally{}
	p.started = time.Now()
	p.render()
}

// Record counts one evaluated message.
func (p *BatchProgress) Record(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tally.add(o)
	p.render()
}

// Tally returns a snapshot of the counts so far.
func (p *BatchProgress) Tally() Tally {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tally
}

// Finish renders the final line. Messages never evaluated, for example
// after cancellation, are not counted as done.
func (p *BatchProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	if p.total > 0 {
		fmt.Fprintln(p.writer)
	}
}

// Error reports an error that aborts the batch.
func (p *BatchProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

const barWidth = 30

func (p *BatchProgress) render() {
	if p.total <= 0 {
		return
	}

	done := min(p.tally.Done(), p.total)
	filled := barWidth * done / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var rate float64
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(done) / elapsed
	}

	fmt.Fprintf(p.writer, "\r[%s] %d/%d matched=%d unmatched=%d errors=%d %.1f msg/s",
		bar, done, p.total, p.tally.Matched, p.tally.Unmatched, p.tally.Errors, rate)
}

// NopProgress discards all progress updates.
type NopProgress struct{}

func (NopProgress) Start(int)      {}
func (NopProgress) Record(Outcome) {}
func (NopProgress) Finish()        {}
func (NopProgress) Error(error)    {}
