package activity

import (
	"fmt"
	"testing"
)

func TestPublishAndRecent(t *testing.T) {
	f := NewInMemoryFeed()

	f.Publish(&Event{Type: TypeTaskCreated, TaskID: "t1", Summary: "created"})
	f.Publish(&Event{Type: TypeCommentAdded, TaskID: "t2", Summary: "commented"})
	f.Publish(&Event{Type: TypeTaskUpdated, TaskID: "t1", Summary: "updated"})

	all := f.Recent("", 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	// Chronological order.
	if all[0].Type != TypeTaskCreated || all[2].Type != TypeTaskUpdated {
		t.Errorf("expected chronological order, got %v then %v", all[0].Type, all[2].Type)
	}
	for _, ev := range all {
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Errorf("expected id and timestamp to be filled in: %+v", ev)
		}
	}
}

func TestRecent_TaskFilterAndLimit(t *testing.T) {
	f := NewInMemoryFeed()
	for i := 0; i < 5; i++ {
		f.Publish(&Event{Type: TypeTaskUpdated, TaskID: "t1", Summary: fmt.Sprintf("update %d", i)})
		f.Publish(&Event{Type: TypeTaskUpdated, TaskID: "t2", Summary: "other"})
	}

	got := f.Recent("t1", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for _, ev := range got {
		if ev.TaskID != "t1" {
			t.Errorf("expected only t1 events, got %q", ev.TaskID)
		}
	}
	// The most recent three, chronologically.
	if got[2].Summary != "update 4" || got[0].Summary != "update 2" {
		t.Errorf("unexpected window: first=%q last=%q", got[0].Summary, got[2].Summary)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	f := NewInMemoryFeed()

	var seen []Type
	unsub := f.Subscribe(func(ev *Event) { seen = append(seen, ev.Type) })

	f.Publish(&Event{Type: TypeTaskCreated})
	unsub()
	f.Publish(&Event{Type: TypeTaskDeleted})

	if len(seen) != 1 || seen[0] != TypeTaskCreated {
		t.Errorf("expected exactly the pre-unsubscribe event, got %v", seen)
	}
}

func TestHistoryCap(t *testing.T) {
	f := NewInMemoryFeed()
	f.maxHist = 10
	for i := 0; i < 25; i++ {
		f.Publish(&Event{Type: TypeTaskUpdated, Summary: fmt.Sprintf("e%d", i)})
	}
	all := f.Recent("", 0)
	if len(all) != 10 {
		t.Fatalf("expected history capped at 10, got %d", len(all))
	}
	if all[len(all)-1].Summary != "e24" {
		t.Errorf("expected newest event retained, got %q", all[len(all)-1].Summary)
	}
}
