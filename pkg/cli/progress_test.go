package cli

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestBatchProgress(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		outcomes []Outcome
		want     []string
	}{
		{
			name:     "mixed outcomes",
			total:    4,
			outcomes: []Outcome{OutcomeMatched, OutcomeUnmatched, OutcomeError, OutcomeMatched},
			want:     []string{"4/4", "matched=2", "unmatched=1", "errors=1", "msg/s"},
		},
		{
			name:     "cancelled batch stops short",
			total:    5,
			outcomes: []Outcome{OutcomeUnmatched, OutcomeUnmatched},
			want:     []string{"2/5", "matched=0", "unmatched=2", "errors=0"},
		},
		{
			name:     "unknown outcome counts as error",
			total:    1,
			outcomes: []Outcome{"timeout"},
			want:     []string{"1/1", "errors=1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			progress := NewProgressReporter(buf)
			progress.Start(tt.total)
			for _, o := range tt.outcomes {
				progress.Record(o)
			}
			progress.Finish()

			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\r")
			last := lines[len(lines)-1]
			for _, w := range tt.want {
				if !strings.Contains(last, w) {
					t.Errorf("final line %q does not contain %q", last, w)
				}
			}
		})
	}
}

func TestBatchProgressConcurrent(t *testing.T) {
	progress := NewProgressReporter(&bytes.Buffer{})
	progress.Start(100)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if i == 0 {
					progress.Record(OutcomeError)
				} else {
					progress.Record(OutcomeMatched)
				}
			}
		}(i)
	}
	wg.Wait()

	got := progress.Tally()
	if got.Done() != 100 || got.Errors != 25 || got.Matched != 75 {
		t.Errorf("Tally() = %+v, want 75 matched and 25 errors", got)
	}
}

func TestBatchProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(0)
	progress.Record(OutcomeMatched)
	progress.Finish()

	if buf.Len() != 0 {
		t.Errorf("zero total should render nothing, got %q", buf.String())
	}
}

func TestBatchProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(10)
	progress.Error(errors.New("store unavailable"))

	if !strings.Contains(buf.String(), "store unavailable") {
		t.Errorf("expected error in output, got %q", buf.String())
	}
}

func TestNopProgress(t *testing.T) {
	var p ProgressReporter = NopProgress{}
	p.Start(1)
	p.Record(OutcomeMatched)
	p.Error(errors.New("ignored"))
	p.Finish()
}
