package tracker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTracker_LogThenCheckIncrementsHitOnce(t *testing.T) {
	tr := New(15*time.Minute, nil, nil, zap.NewNop())
	ctx := context.Background()

	tr.Log(ctx, "sess1", "prompt", []string{"/repo/a.py", "/repo/b.py"}, nil, 0.9)

	tr.Check(ctx, "sess1", "/repo/a.py")
	tr.Check(ctx, "sess1", "/repo/a.py")

	tr.mu.Lock()
	entries := tr.outstanding["sess1"]
	tr.mu.Unlock()

	if len(entries) != 1 || entries[0].Hits != 1 {
		t.Fatalf("expected hits==1 after duplicate check, got %+v", entries)
	}
}

func TestTracker_HitAtKIgnoresHitsBeyondTopK(t *testing.T) {
	predicted := []string{
		"/repo/a.py", "/repo/b.py", "/repo/c.py", "/repo/d.py", "/repo/e.py",
		"/repo/f.py",
	}
	tr := New(time.Millisecond, nil, nil, zap.NewNop())
	ctx := context.Background()

	tr.Log(ctx, "sess1", "prompt", predicted, nil, 0.5)
	tr.Check(ctx, "sess1", "/repo/f.py") // hit, but beyond TopKForHitAt5
	time.Sleep(5 * time.Millisecond)
	tr.Sweep(time.Now())

	tr.mu.Lock()
	window := append([]bool(nil), tr.window...)
	tr.mu.Unlock()

	if len(window) != 1 || window[0] {
		t.Errorf("expected hit beyond top-%d to not count as hit_at_5, got window=%v", TopKForHitAt5, window)
	}
}

func TestTracker_HitAtKCreditsHitWithinTopK(t *testing.T) {
	predicted := []string{
		"/repo/a.py", "/repo/b.py", "/repo/c.py", "/repo/d.py", "/repo/e.py",
		"/repo/f.py",
	}
	tr := New(time.Millisecond, nil, nil, zap.NewNop())
	ctx := context.Background()

	tr.Log(ctx, "sess1", "prompt", predicted, nil, 0.5)
	tr.Check(ctx, "sess1", "/repo/c.py") // within top 5
	time.Sleep(5 * time.Millisecond)
	tr.Sweep(time.Now())

	tr.mu.Lock()
	window := append([]bool(nil), tr.window...)
	tr.mu.Unlock()

	if len(window) != 1 || !window[0] {
		t.Errorf("expected hit within top-%d to count as hit_at_5, got window=%v", TopKForHitAt5, window)
	}
}

func TestTracker_MetricsCalibratingBelowThreshold(t *testing.T) {
	tr := New(15*time.Minute, nil, nil, zap.NewNop())
	m := tr.Metrics()
	if !m.Calibrating {
		t.Errorf("expected calibrating with no evaluated predictions")
	}
}

func TestTracker_SweepEvaluatesExpiredEntries(t *testing.T) {
	tr := New(time.Millisecond, nil, nil, zap.NewNop())
	ctx := context.Background()

	tr.Log(ctx, "sess1", "prompt", []string{"/repo/a.py"}, nil, 0.5)
	time.Sleep(5 * time.Millisecond)

	tr.Sweep(time.Now())

	tr.mu.Lock()
	remaining := len(tr.outstanding["sess1"])
	evaluated := tr.evaluated
	tr.mu.Unlock()

	if remaining != 0 {
		t.Errorf("expected expired entry removed, got %d remaining", remaining)
	}
	if evaluated != 1 {
		t.Errorf("expected 1 evaluated entry, got %d", evaluated)
	}
}
