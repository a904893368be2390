package avrcp

import (
	"errors"
	"testing"
	"time"
)

func TestDispatcherOrdering(t *testing.T) {
	d := NewDispatcher(16)
	d.Start()
	defer d.Stop()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := d.Enqueue("order", func() error {
			got = append(got, i)
			return nil
		}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if err := d.Do("barrier", func() error { return nil }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("execution order %v, want ascending", got)
		}
	}
	if d.Processed() != 6 {
		t.Errorf("Processed = %d, want 6", d.Processed())
	}
}

func TestDispatcherDoReturnsError(t *testing.T) {
	d := NewDispatcher(0)
	d.Start()
	defer d.Stop()

	sentinel := errors.New("boom")
	if err := d.Do("failing", func() error { return sentinel }); err != sentinel {
		t.Errorf("Do error = %v, want sentinel", err)
	}
}

func TestDispatcherStop(t *testing.T) {
	d := NewDispatcher(4)
	d.Start()
	d.Stop()

	if err := d.Enqueue("late", func() error { return nil }); err != ErrDispatcherStopped {
		t.Errorf("Enqueue after Stop = %v, want ErrDispatcherStopped", err)
	}
	if err := d.Do("late", func() error { return nil }); err != ErrDispatcherStopped {
		t.Errorf("Do after Stop = %v, want ErrDispatcherStopped", err)
	}
	// Stop is idempotent.
	d.Stop()
}

func TestDispatcherDoDuringStopAlwaysReturns(t *testing.T) {
	// A Do that races Stop may land its task on the buffered queue
	// after the worker drained; the caller must still get a reply.
	for i := 0; i < 100; i++ {
		d := NewDispatcher(4)
		d.Start()
		returned := make(chan struct{})
		go func() {
			for j := 0; j < 8; j++ {
				d.Do("racing", func() error { return nil })
			}
			close(returned)
		}()
		d.Stop()
		select {
		case <-returned:
		case <-time.After(2 * time.Second):
			t.Fatal("Do call hung across Stop")
		}
	}
}

func TestDispatcherDelay(t *testing.T) {
	d := NewDispatcher(4)
	d.Start()
	defer d.Stop()

	done := make(chan struct{})
	d.Delay("delayed", time.Millisecond, func() error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delayed task never ran")
	}
}
