package agent

import (
	"testing"
	"time"
)

func TestPushBackoffDoublesOnFailure(t *testing.T) {
	b := newPushBackoff()
	if b.current != pushBackoffBase {
		t.Fatalf("initial current = %v, want %v", b.current, pushBackoffBase)
	}

	b.Fail()
	if b.current != 2*pushBackoffBase {
		t.Fatalf("after one Fail, current = %v, want %v", b.current, 2*pushBackoffBase)
	}

	b.Fail()
	if b.current != 4*pushBackoffBase {
		t.Fatalf("after two Fails, current = %v, want %v", b.current, 4*pushBackoffBase)
	}
}

func TestPushBackoffCapsAtMax(t *testing.T) {
	b := newPushBackoff()
	for i := 0; i < 10; i++ {
		b.Fail()
	}
	if b.current != pushBackoffMax {
		t.Fatalf("current = %v, want capped at %v", b.current, pushBackoffMax)
	}
}

func TestPushBackoffSucceedResetsToFloor(t *testing.T) {
	b := newPushBackoff()
	b.Fail()
	b.Fail()
	b.Succeed()

	if b.current != pushBackoffBase {
		t.Fatalf("current after Succeed = %v, want %v", b.current, pushBackoffBase)
	}
}

func TestPushBackoffFailWithHintRaisesFloorThenDoubles(t *testing.T) {
	b := newPushBackoff()
	b.FailWithHint(10 * time.Second)

	// hint (10s) exceeds current (1s), so it becomes the new floor before
	// doubling: want 20s.
	if b.current != 20*time.Second {
		t.Fatalf("current = %v, want 20s", b.current)
	}
}

func TestPushBackoffFailWithHintIgnoresSmallerHint(t *testing.T) {
	b := newPushBackoff()
	b.Fail() // current = 2s
	b.FailWithHint(time.Second)

	// hint (1s) is below current (2s), so it has no effect before doubling.
	if b.current != 4*time.Second {
		t.Fatalf("current = %v, want 4s", b.current)
	}
}
