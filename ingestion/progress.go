package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints how far a dispatcher has advanced through its source,
// how many records it skipped and the ingestion rate since Start.
type ProgressTracker struct {
	writer   io.Writer
	total    int
	interval int

	mu           sync.Mutex
	started      bool
	startTime    time.Time
	startIndex   int
	current      int
	skipped      int
	lastReported int
}

// NewProgressTracker creates a tracker for a source of total records that
// prints to w every interval records. Intervals below 1 print on every record.
func NewProgressTracker(w io.Writer, total, interval int) *ProgressTracker {
	return &ProgressTracker{
		writer:   w,
		total:    total,
		interval: max(interval, 1),
	}
}

// Start begins tracking at index start, which is non-zero when resuming from a checkpoint.
func (p *ProgressTracker) Start(start int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = true
	p.startTime = time.Now()
	p.startIndex = min(start, p.total)
	p.current = p.startIndex
	p.lastReported = p.startIndex
	p.skipped = 0
}

// Update records that the dispatcher is now at index current.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(current, p.total)
	if p.current-p.lastReported >= p.interval {
		p.report()
		p.lastReported = p.current
	}
}

// Skip counts a record that was abandoned before fan-out.
func (p *ProgressTracker) Skip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.skipped++
	}
}

// Current returns the last recorded index.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Skipped returns the number of abandoned records since Start.
func (p *ProgressTracker) Skipped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Finish prints the final line. It is a no-op before Start.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with mu held.
func (p *ProgressTracker) report() {
	done := p.current - p.startIndex
	rate := 0.0
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		rate = float64(done) / secs
	}

	pct := 0.0
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100
	}

	eta := "-"
	if remaining := p.total - p.current; remaining > 0 && rate > 0 {
		eta = time.Duration(float64(remaining) / rate * float64(time.Second)).Round(time.Second).String()
	}

	fmt.Fprintf(p.writer, "\rIngested: %d/%d (%.1f%%), %d skipped - %.1f records/s, eta %s",
		p.current, p.total, pct, p.skipped, rate, eta)
}
