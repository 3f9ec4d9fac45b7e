package launch

import (
	"context"
	"testing"
	"time"
)

func TestNilGateAdmits(t *testing.T) {
	var g *Gate
	if err := g.Wait(context.Background()); err != nil {
		t.Errorf("nil gate Wait() = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx); err == nil {
		t.Error("nil gate should still report a cancelled context")
	}
}

func TestNewGateDisabled(t *testing.T) {
	if g := NewGate(0, 5); g != nil {
		t.Error("NewGate(0, ...) should disable gating")
	}
	if g := NewGate(-1, 5); g != nil {
		t.Error("NewGate(-1, ...) should disable gating")
	}
}

func TestGateSpacesLaunches(t *testing.T) {
	g := NewGate(20, 1) // one launch every 50ms
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := g.Wait(ctx); err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 launches at 20/s took %v, expected at least ~100ms", elapsed)
	}
}

func TestGateWaitCancelled(t *testing.T) {
	g := NewGate(0.1, 1) // one launch every 10s
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first Wait() should use the burst token: %v", err)
	}
	if err := g.Wait(ctx); err == nil {
		t.Error("second Wait() should fail once the context expires")
	}
}
