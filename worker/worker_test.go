package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"autoclip/chat"
	"autoclip/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

func testLines() []chat.Line {
	return []chat.Line{
		{ID: "a", Offset: 0, CommenterID: "u1"},
		{ID: "b", Offset: 10, CommenterID: "u2"},
		{ID: "c", Offset: 70, CommenterID: "u1"},
	}
}

func TestPoolComputesAggregation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(ctx, 1)
	results, err := p.Submit(ctx, Request{Video: "v1", Period: 60, Lines: testLines()})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-results:
		if res.Stale {
			t.Fatal("single job should not be stale")
		}
		if res.Meta.Activity != 3 {
			t.Fatalf("activity = %d, want 3", res.Meta.Activity)
		}
		if len(res.Chart.Lines) != 2 || res.Chart.Lines[0] != 2 || res.Chart.Lines[1] != 1 {
			t.Fatalf("line series = %v", res.Chart.Lines)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}
}

func TestLastRequestWins(t *testing.T) {
	// Queue both jobs before any worker runs so the supersession outcome is
	// deterministic: by the time the first job is processed the second has
	// already bumped the video's generation.
	p := &Pool{jobs: make(chan job, 2), gens: make(map[string]uint64)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1, err := p.Submit(ctx, Request{Video: "v1", Period: 60, Lines: testLines()})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := p.Submit(ctx, Request{Video: "v1", Period: 30, Lines: testLines()})
	if err != nil {
		t.Fatal(err)
	}

	p.wg.Add(1)
	go p.run(ctx)

	if res := <-r1; !res.Stale {
		t.Fatal("superseded job should be stale")
	}
	if res := <-r2; res.Stale {
		t.Fatal("latest job should be fresh")
	}
}

func TestGenerationsPerVideo(t *testing.T) {
	// Jobs for different videos never supersede each other.
	p := &Pool{jobs: make(chan job, 2), gens: make(map[string]uint64)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1, err := p.Submit(ctx, Request{Video: "v1", Period: 60, Lines: testLines()})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := p.Submit(ctx, Request{Video: "v2", Period: 60, Lines: testLines()})
	if err != nil {
		t.Fatal(err)
	}

	p.wg.Add(1)
	go p.run(ctx)

	if res := <-r1; res.Stale {
		t.Fatal("v1 job should be fresh")
	}
	if res := <-r2; res.Stale {
		t.Fatal("v2 job should be fresh")
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	// A full queue plus a canceled context fails Submit instead of blocking.
	p := &Pool{jobs: make(chan job, 1), gens: make(map[string]uint64)}
	ctx := context.Background()
	if _, err := p.Submit(ctx, Request{Video: "v1"}); err != nil {
		t.Fatal(err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Submit(canceled, Request{Video: "v1"}); err == nil {
		t.Fatal("expected context error")
	}
}
