package reembed

import (
	"fmt"
	"io"
	"time"
)

// progress keeps the running tally of a reembedding run and redraws a
// single status line as batches complete. It is not safe for concurrent use;
// Run records batches one at a time.
type progress struct {
	w        io.Writer
	total    int
	interval int
	now      func() time.Time

	start      time.Time
	reembedded int
	skipped    int
	drawnAt    int
}

func newProgress(w io.Writer, total, interval int, now func() time.Time) *progress {
	if now == nil {
		now = time.Now
	}
	return &progress{
		w:        w,
		total:    total,
		interval: max(interval, 1),
		now:      now,
		start:    now(),
	}
}

func (p *progress) seen() int {
	return p.reembedded + p.skipped
}

// record adds one batch's outcome. The line is redrawn once interval entries
// have been seen since it was last drawn.
func (p *progress) record(reembedded, skipped int) {
	p.reembedded += reembedded
	p.skipped += skipped
	if p.seen()-p.drawnAt >= p.interval {
		p.draw()
	}
}

// done draws the final tally and ends the line.
func (p *progress) done() {
	p.draw()
	fmt.Fprintln(p.w)
}

func (p *progress) summary() *Summary {
	return &Summary{
		Total:      p.total,
		Reembedded: p.reembedded,
		Skipped:    p.skipped,
		Elapsed:    p.now().Sub(p.start),
	}
}

func (p *progress) draw() {
	seen := p.seen()
	p.drawnAt = seen

	percent := 100.0
	if p.total > 0 {
		percent = float64(min(seen, p.total)) / float64(p.total) * 100
	}
	rate := 0.0
	if elapsed := p.now().Sub(p.start).Seconds(); elapsed > 0 {
		rate = float64(seen) / elapsed
	}
	fmt.Fprintf(p.w, "\r%d/%d entries (%.1f%%): %d reembedded, %d current - %.1f entries/s",
		seen, p.total, percent, p.reembedded, p.skipped, rate)
}
