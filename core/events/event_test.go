package events

import (
	"fmt"
	"testing"
)

type stubEvent struct {
	name string
}

func (s stubEvent) EventType() string { return s.name }

func TestRecorderRetainsEmissionOrder(t *testing.T) {
	recorder := NewRecorder(10)
	for i := 0; i < 3; i++ {
		recorder.Emit(stubEvent{name: fmt.Sprintf("evt.%d", i)})
	}
	listed := recorder.List()
	if len(listed) != 3 {
		t.Fatalf("expected 3 events, got %d", len(listed))
	}
	for i, evt := range listed {
		if evt.EventType() != fmt.Sprintf("evt.%d", i) {
			t.Fatalf("event %d out of order: %q", i, evt.EventType())
		}
	}
}

func TestRecorderDropsOldestBeyondLimit(t *testing.T) {
	recorder := NewRecorder(2)
	for i := 0; i < 5; i++ {
		recorder.Emit(stubEvent{name: fmt.Sprintf("evt.%d", i)})
	}
	listed := recorder.List()
	if len(listed) != 2 {
		t.Fatalf("expected retention limit of 2, got %d", len(listed))
	}
	if listed[0].EventType() != "evt.3" || listed[1].EventType() != "evt.4" {
		t.Fatalf("expected the newest events retained, got %q %q", listed[0].EventType(), listed[1].EventType())
	}
}

func TestRecorderIgnoresNilEvents(t *testing.T) {
	recorder := NewRecorder(0)
	recorder.Emit(nil)
	if got := recorder.List(); len(got) != 0 {
		t.Fatalf("nil events must be dropped, got %d", len(got))
	}
}
