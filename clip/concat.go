package clip

import (
	"context"
	"io"
	"sync"
)

// Stream yields fetched segment payloads strictly in segment order, no matter
// in what order the downloads complete. It is single-consumer.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	slots  []*fetchSlot

	mu    sync.Mutex
	cause error // first fetch failure, set by the scheduler
	err   error // terminal consumer-side error
}

// WriteTo copies every segment payload to w in segment order, blocking on each
// slot until its download resolves. It returns the byte count written so far
// and the first error encountered; on error all outstanding downloads are
// canceled and the stream is unusable.
func (st *Stream) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, slot := range st.slots {
		select {
		case <-slot.done:
		case <-st.ctx.Done():
			return n, st.fail(st.ctx.Err())
		}
		if slot.err != nil {
			return n, st.fail(slot.err)
		}
		nw, err := w.Write(slot.data)
		n += int64(nw)
		slot.data = nil // payload consumed, let it go
		if err != nil {
			return n, st.fail(err)
		}
	}
	st.cancel()
	return n, nil
}

// Err returns the stream's terminal error, if any.
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Close cancels any outstanding downloads. Safe to call at any point.
func (st *Stream) Close() {
	st.cancel()
}

func (st *Stream) setCause(err error) {
	st.mu.Lock()
	if st.cause == nil {
		st.cause = err
	}
	st.mu.Unlock()
}

// fail records the terminal error, preferring the scheduler's root cause over
// the cascade of context cancellations it triggers.
func (st *Stream) fail(err error) error {
	st.cancel()
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cause != nil {
		err = st.cause
	}
	if st.err == nil {
		st.err = err
	}
	return st.err
}
