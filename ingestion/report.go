package ingestion

import (
	"fmt"
	"time"
)

// Report summarizes one Ingest call.
type Report struct {
	Pages      int // raw pages received
	Chunks     int // chunks produced after dropping empty pages
	Skipped    int // chunks whose stored vector was already current
	Relabeled  int // unchanged chunks rewritten with new chapter or position metadata
	Embedded   int // chunks embedded and written
	Removed    int // stored entries deleted because the source no longer has their IDs
	Failed     []BatchFailure
	IndexCount int // entries in the index after ingestion
	Elapsed    time.Duration
}

// FailedChunks returns the number of chunks in failed batches.
func (r *Report) FailedChunks() int {
	n := 0
	for _, f := range r.Failed {
		n += f.Size
	}
	return n
}

// BatchFailure records a batch that could not be embedded or written.
type BatchFailure struct {
	Batch   int    // zero-based batch number
	FirstID string // ID of the first chunk in the batch
	LastID  string // ID of the last chunk in the batch
	Size    int
	Err     error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("batch %d (chunks %s-%s): %v", f.Batch, f.FirstID, f.LastID, f.Err)
}

func (f BatchFailure) Unwrap() error {
	return f.Err
}
