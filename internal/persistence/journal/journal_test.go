package journal

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"escaperoom.ai/internal/room"
)

func TestDispatchJournal_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewDispatchJournal(dir, nil)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	j.w.now = func() time.Time { return fixed }

	in := []room.DispatchRecord{
		{ID: "a", Kind: room.KindInteract, Entity: "Door", Status: room.StatusOK, TxHash: "0x1", Facts: 2},
		{ID: "b", Kind: room.KindEscape, Entity: room.WorldEntity, Status: room.StatusFailed, Error: "execute: nope"},
	}
	for _, r := range in {
		j.RecordDispatch(r)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "dispatch", "dispatch-2026-03-04-05.jsonl.zst")
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records=%d want 2", len(got))
	}
	if got[0].ID != "a" || got[0].Entity != "Door" || got[0].Facts != 2 {
		t.Fatalf("first record %+v", got[0])
	}
	if got[1].Status != room.StatusFailed || got[1].Error == "" {
		t.Fatalf("second record %+v", got[1])
	}
}

func TestHourlyWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyWriter(dir, "dispatch")
	now := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(room.DispatchRecord{ID: "one"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(room.DispatchRecord{ID: "two"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for hour, id := range map[string]string{"2026-01-01-10": "one", "2026-01-01-11": "two"} {
		got, err := ReadFile(w.pathFor(hour))
		if err != nil {
			t.Fatalf("ReadFile %s: %v", hour, err)
		}
		if len(got) != 1 || got[0].ID != id {
			t.Fatalf("hour %s records %+v", hour, got)
		}
	}
}

func TestDispatchJournal_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	j := NewDispatchJournal(dir, nil)
	fixed := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
	j.w.now = func() time.Time { return fixed }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 25; k++ {
				j.RecordDispatch(room.DispatchRecord{ID: "x", Kind: room.KindRefresh})
			}
		}()
	}
	wg.Wait()
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := ReadFile(filepath.Join(dir, "dispatch", "dispatch-2026-03-04-05.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 200 {
		t.Fatalf("records=%d want 200", len(got))
	}
}
