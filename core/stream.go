package core

import (
	"context"
	"io"
)

// Row is a single result record from the remote query service.
type Row = map[string]any

// PageSource pulls one page of rows at a time from the remote
// transport. NextPage returns io.EOF once the result set is exhausted.
// Implementations that also satisfy io.Closer are closed when the
// stream is closed or terminates.
type PageSource interface {
	NextPage(ctx context.Context) ([]Row, error)
}

// Rewinder is implemented by page sources that can take back rows that
// were fetched but never produced. When a stream releases its source
// with part of a page still buffered, the remainder is rewound first,
// so a resumable source's position lands exactly after the last
// produced row.
type Rewinder interface {
	Rewind(n int)
}

// TransformFunc reshapes a row before it is produced to the consumer.
type TransformFunc func(Row) Row

// ProgressFunc receives a progress update after every consumed page and
// once more on termination with HasMore=false.
type ProgressFunc func(StreamProgress)

// StreamProgress reports how far a stream has advanced. The transport
// does not expose a total count ahead of time, so EstimatedTotal is
// zero unless the caller supplied one.
type StreamProgress struct {
	CurrentPage    int  `json:"current_page"`
	TotalFetched   int  `json:"total_fetched"`
	HasMore        bool `json:"has_more"`
	EstimatedTotal int  `json:"estimated_total,omitempty"`
}

// StreamState tracks the lifecycle of a Rows iterator.
type StreamState int

const (
	StreamNotStarted StreamState = iota
	StreamStreaming
	StreamCompleted
	StreamCappedStop
	StreamFailed
)

// String returns the state name.
func (s StreamState) String() string {
	switch s {
	case StreamStreaming:
		return "streaming"
	case StreamCompleted:
		return "completed"
	case StreamCappedStop:
		return "capped"
	case StreamFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// StreamConfig configures a Rows iterator. The zero value streams the
// whole remote result set with no transform and no progress reporting.
type StreamConfig struct {
	// MaxResults caps the number of rows produced. Zero means no cap.
	// When the cap is hit mid-page the remaining rows of that page are
	// not processed.
	MaxResults int

	// Transform is applied to each row before it is produced. Nil
	// passes rows through unchanged.
	Transform TransformFunc

	// Progress, when set, is invoked after each fully consumed page and
	// once more when the stream terminates.
	Progress ProgressFunc
}

// Rows iterates a paged remote result set lazily, one page in memory at
// a time. It is not restartable; issue a fresh request to re-stream.
// Rows are produced in the exact order the transport emits them.
//
// Usage mirrors sql.Rows:
//
//	rows := core.NewRows(src, conf)
//	defer rows.Close()
//	for rows.Next(ctx) {
//	    use(rows.Row())
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows struct {
	src  PageSource
	conf StreamConfig

	page    []Row
	pageIdx int
	cur     Row

	state        StreamState
	currentPage  int
	totalFetched int
	err          error
	closed       bool
	released     bool
	finalSent    bool
}

// NewRows creates a lazy row iterator over src.
func NewRows(src PageSource, conf StreamConfig) *Rows {
	return &Rows{src: src, conf: conf}
}

// Next advances to the next row, fetching pages from the transport as
// needed. It returns false when the stream terminates for any reason;
// check Err to distinguish failure from completion.
func (r *Rows) Next(ctx context.Context) bool {
	if r.closed || r.terminal() {
		return false
	}

	// Cap reached: stop before touching any further rows.
	if r.conf.MaxResults > 0 && r.totalFetched >= r.conf.MaxResults {
		r.finish(StreamCappedStop)
		return false
	}

	for r.pageIdx >= len(r.page) {
		page, err := r.src.NextPage(ctx)
		if err == io.EOF {
			r.finish(StreamCompleted)
			return false
		}
		if err != nil {
			r.state = StreamFailed
			r.err = err
			r.release()
			return false
		}
		r.state = StreamStreaming
		r.currentPage++
		r.page = page
		r.pageIdx = 0
	}

	row := r.page[r.pageIdx]
	r.pageIdx++
	if r.conf.Transform != nil {
		row = r.conf.Transform(row)
	}
	r.totalFetched++
	r.cur = row

	// Page fully consumed: report progress. HasMore is indeterminate
	// until the transport signals the end.
	if r.pageIdx == len(r.page) && r.conf.Progress != nil {
		r.conf.Progress(StreamProgress{
			CurrentPage:  r.currentPage,
			TotalFetched: r.totalFetched,
			HasMore:      true,
		})
	}

	return true
}

// Row returns the row produced by the last successful Next call.
func (r *Rows) Row() Row {
	return r.cur
}

// Err returns the transport error that terminated the stream, if any.
func (r *Rows) Err() error {
	return r.err
}

// State returns the current lifecycle state.
func (r *Rows) State() StreamState {
	return r.state
}

// Progress returns a snapshot of the stream position.
func (r *Rows) Progress() StreamProgress {
	return StreamProgress{
		CurrentPage:  r.currentPage,
		TotalFetched: r.totalFetched,
		HasMore:      !r.terminal(),
	}
}

// Close releases the underlying transport handle. It is safe to call
// at any point, including after early exit from an iteration loop, and
// is idempotent.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if !r.terminal() {
		r.state = StreamCappedStop
	}
	return r.release()
}

func (r *Rows) terminal() bool {
	switch r.state {
	case StreamCompleted, StreamCappedStop, StreamFailed:
		return true
	}
	return false
}

func (r *Rows) finish(state StreamState) {
	r.state = state
	if r.conf.Progress != nil && !r.finalSent {
		r.finalSent = true
		r.conf.Progress(StreamProgress{
			CurrentPage:  r.currentPage,
			TotalFetched: r.totalFetched,
			HasMore:      false,
		})
	}
	r.release() //nolint:errcheck
}

func (r *Rows) release() error {
	if r.released {
		return nil
	}
	r.released = true
	if n := len(r.page) - r.pageIdx; n > 0 {
		if rw, ok := r.src.(Rewinder); ok {
			rw.Rewind(n)
		}
	}
	r.page = nil
	r.pageIdx = 0
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CollectAll drains the full stream into a slice.
//
// This materializes every row in memory and is unsafe for unbounded
// remote result sets; prefer iterating Rows directly unless
// conf.MaxResults is set.
func CollectAll(ctx context.Context, src PageSource, conf StreamConfig) ([]Row, error) {
	rows := NewRows(src, conf)
	defer rows.Close() //nolint:errcheck

	var out []Row
	for rows.Next(ctx) {
		out = append(out, rows.Row())
	}
	return out, rows.Err()
}
