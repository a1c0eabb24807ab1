// Package worker runs chat aggregation off the request path. Jobs are a
// single closed struct rather than an open method table, so the full set of
// background computations is visible in one place. Per-video supersession is
// last-request-wins: submitting a newer job for a video marks every older
// in-flight job for that video stale.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"autoclip/analytics"
	"autoclip/chat"
	"autoclip/telemetry"
)

// Request is one aggregation job.
type Request struct {
	Video    string
	Period   float64
	EmoteIdx []int
	Lines    []chat.Line
}

// Result carries everything one aggregation pass produces. Stale means a newer
// request for the same video superseded this one; callers should discard it.
type Result struct {
	Meta       analytics.Meta
	Chart      analytics.Chart
	Highlights []analytics.Highlight
	Stale      bool
}

type job struct {
	req Request
	gen uint64
	out chan Result
}

// Pool is a fixed-size set of aggregation workers.
type Pool struct {
	jobs chan job

	mu   sync.Mutex
	gens map[string]uint64 // video id -> latest accepted generation

	wg sync.WaitGroup
}

// NewPool starts count workers that run until ctx is canceled.
func NewPool(ctx context.Context, count int) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		jobs: make(chan job, count*2),
		gens: make(map[string]uint64),
	}
	for i := 0; i < count; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	return p
}

// Submit queues a job and returns the channel its result will arrive on. The
// channel is buffered, so an abandoned result never blocks a worker.
func (p *Pool) Submit(ctx context.Context, req Request) (<-chan Result, error) {
	p.mu.Lock()
	p.gens[req.Video]++
	gen := p.gens[req.Video]
	p.mu.Unlock()

	j := job{req: req, gen: gen, out: make(chan Result, 1)}
	select {
	case p.jobs <- j:
		return j.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			j.out <- p.process(j)
		}
	}
}

func (p *Pool) process(j job) Result {
	start := time.Now()
	meta, chart := analytics.Aggregate(j.req.Lines, j.req.Period, j.req.EmoteIdx)
	highlights := analytics.DetectHighlights(chart.Chatters, chart.Period)

	telemetry.AggregationsTotal.Inc()
	telemetry.AggregationDuration.Observe(time.Since(start).Seconds())

	res := Result{Meta: meta, Chart: chart, Highlights: highlights}
	p.mu.Lock()
	stale := p.gens[j.req.Video] != j.gen
	p.mu.Unlock()
	if stale {
		res.Stale = true
		telemetry.AggregationsSuperseded.Inc()
		slog.Debug("aggregation superseded", slog.String("video_id", j.req.Video))
	}
	return res
}
