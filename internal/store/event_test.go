package store

import (
	"encoding/json"
	"testing"
)

func TestEventRepository_AppendAndQuery(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	records := []EventRecord{
		{IntentID: "g", InstanceID: "i1", Phase: "start", TimestampMs: 100, Payload: json.RawMessage(`{"type": "g:start"}`)},
		{IntentID: "g", InstanceID: "i1", Phase: "update", TimestampMs: 200, Payload: json.RawMessage(`{"type": "g:update"}`)},
		{IntentID: "g", InstanceID: "i1", Phase: "end", TimestampMs: 300, Payload: json.RawMessage(`{"type": "g:end"}`)},
		{IntentID: "other", InstanceID: "i2", Phase: "start", TimestampMs: 250, Payload: json.RawMessage(`{"type": "other:start"}`)},
	}
	for i := range records {
		if err := repo.Append(&records[i]); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if records[i].ID == 0 {
			t.Error("Append should set the row id")
		}
	}

	byIntent, err := repo.GetByIntentID("g", 2)
	if err != nil {
		t.Fatalf("GetByIntentID() error = %v", err)
	}
	if len(byIntent) != 2 {
		t.Fatalf("len = %d, want 2 (limit applied)", len(byIntent))
	}
	if byIntent[0].TimestampMs != 300 || byIntent[1].TimestampMs != 200 {
		t.Errorf("GetByIntentID should return newest first, got %d then %d", byIntent[0].TimestampMs, byIntent[1].TimestampMs)
	}

	byInstance, err := repo.GetByInstanceID("i1")
	if err != nil {
		t.Fatalf("GetByInstanceID() error = %v", err)
	}
	if len(byInstance) != 3 {
		t.Fatalf("len = %d, want 3", len(byInstance))
	}
	for i, phase := range []string{"start", "update", "end"} {
		if byInstance[i].Phase != phase {
			t.Errorf("byInstance[%d].Phase = %q, want %q (oldest first)", i, byInstance[i].Phase, phase)
		}
	}
}

func TestEventRepository_DeleteBefore(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	for _, ts := range []int64{100, 200, 300} {
		rec := &EventRecord{IntentID: "g", InstanceID: "i1", Phase: "update", TimestampMs: ts}
		if err := repo.Append(rec); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.DeleteBefore(250); err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}

	remaining, err := repo.GetByIntentID("g", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].TimestampMs != 300 {
		t.Errorf("remaining = %v, want just the 300ms event", remaining)
	}
}
