package clip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"autoclip/telemetry"
)

// Scheduler downloads segment payloads under bounded concurrency. Downloads
// are admitted in ascending segment order so the bytes the consumer needs
// first tend to arrive first.
type Scheduler struct {
	Client      *http.Client
	Concurrency int // defaults to 20
	Retries     int // extra attempts per segment; 0 means fail on first error
}

type fetchSlot struct {
	done chan struct{}
	data []byte
	err  error
}

// Fetch starts downloading every segment and returns a Stream that yields the
// payloads strictly in segment order. The first failed download cancels all
// outstanding fetches and poisons the stream.
func (s *Scheduler) Fetch(ctx context.Context, segments []Segment) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	slots := make([]*fetchSlot, len(segments))
	for i := range slots {
		slots[i] = &fetchSlot{done: make(chan struct{})}
	}
	st := &Stream{ctx: ctx, cancel: cancel, slots: slots}

	concurrency := s.Concurrency
	if concurrency < 1 {
		concurrency = 20
	}

	go func() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, seg := range segments {
			// SetLimit makes this call block until a worker frees up, which is
			// what keeps admission in index order.
			g.Go(func() error {
				slot := slots[i]
				slot.data, slot.err = s.fetchOne(gctx, seg)
				if slot.err != nil {
					// Record the cause before signaling the slot so a consumer
					// that unblocks on a canceled sibling still sees the
					// originating failure, not the cancellation cascade.
					st.setCause(slot.err)
				}
				close(slot.done)
				return slot.err
			})
		}
		_ = g.Wait()
	}()
	return st
}

// fetchOne downloads a single segment, retrying retryable failures up to the
// configured budget.
func (s *Scheduler) fetchOne(ctx context.Context, seg Segment) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		data, err := s.get(ctx, seg)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (s *Scheduler) get(ctx context.Context, seg Segment) ([]byte, error) {
	telemetry.SegmentFetchesStarted.Inc()
	telemetry.SegmentFetchInFlight.Inc()
	defer telemetry.SegmentFetchInFlight.Dec()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seg.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build segment request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		telemetry.SegmentFetchesFailed.Inc()
		return nil, &FetchError{URL: seg.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.SegmentFetchesFailed.Inc()
		return nil, &FetchError{URL: seg.URL.String(), Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.SegmentFetchesFailed.Inc()
		return nil, &FetchError{URL: seg.URL.String(), Err: err}
	}
	return data, nil
}
