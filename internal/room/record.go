package room

import "time"

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// DispatchRecord is one finished command, as written to the journal and index.
type DispatchRecord struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Entity     string    `json:"entity"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Facts      int       `json:"facts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Recorder receives records from dispatch goroutines. Implementations must be
// safe for concurrent use and must not block for long.
type Recorder interface {
	RecordDispatch(DispatchRecord)
}

// Recorders fans a record out to several recorders.
type Recorders []Recorder

func (rs Recorders) RecordDispatch(r DispatchRecord) {
	for _, x := range rs {
		if x != nil {
			x.RecordDispatch(r)
		}
	}
}

func newRecord(h header, kind Kind, started time.Time, finished time.Time, o Outcome) DispatchRecord {
	r := DispatchRecord{
		ID:         h.ID,
		Kind:       kind,
		Entity:     h.Key.Entity,
		Status:     StatusOK,
		Facts:      len(o.ObjectFacts) + len(o.GameFacts),
		EnqueuedAt: h.Enqueued.UTC(),
		StartedAt:  started.UTC(),
		DurationMS: finished.Sub(started).Milliseconds(),
	}
	if !o.OK {
		r.Status = StatusFailed
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	if !o.TxHash.IsZero() {
		r.TxHash = o.TxHash.Hex()
	}
	return r
}
