package client

import "testing"

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := New(nil, "conn")
	for i := 0; i < SendQueueSize; i++ {
		if !c.Enqueue([]byte{byte(i)}) {
			t.Fatalf("enqueue %d refused", i)
		}
	}
	if c.Enqueue([]byte("extra")) {
		t.Fatal("enqueue on a full queue should drop")
	}

	c.Close()
	c.Close()
	if c.Enqueue([]byte("late")) {
		t.Fatal("enqueue after close should drop")
	}
}

func TestTrackReplacesAndResetCancels(t *testing.T) {
	c := New(nil, "conn")
	c.Seat("ABC123", "p1")

	cancelled := map[string]int{}
	c.Track("gameState", func() { cancelled["first"]++ })
	c.Track("gameState", func() { cancelled["second"]++ })
	c.Track("inputs/p2", func() { cancelled["inputs"]++ })

	if cancelled["first"] != 1 {
		t.Fatal("replaced subscription was not cancelled")
	}

	c.Untrack("inputs/p2")
	c.Untrack("inputs/p2")
	if cancelled["inputs"] != 1 {
		t.Fatalf("inputs cancelled %d times", cancelled["inputs"])
	}

	c.Reset()
	if cancelled["second"] != 1 {
		t.Fatal("reset did not cancel remaining subscriptions")
	}
	if code, pid := c.Membership(); code != "" || pid != "" {
		t.Fatalf("membership after reset = %q, %q", code, pid)
	}
}
