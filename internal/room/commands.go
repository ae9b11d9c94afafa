package room

import (
	"time"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/schema"
	"escaperoom.ai/internal/tasks"
)

// Kind names a command kind. Each kind has its own channel and dispatch loop.
type Kind string

const (
	KindInitialize   Kind = "initialize"
	KindSpawnObjects Kind = "spawn_objects"
	KindInteract     Kind = "interact"
	KindEscape       Kind = "escape"
	KindRefresh      Kind = "refresh"
	KindInspect      Kind = "inspect"
)

// Contract entrypoints and record models on the remote world.
const (
	EntryInitialise  = "initialise"
	EntrySpawnObject = "spawn_object"
	EntryInteract    = "interact"
	EntryEscape      = "escape"

	ModelGame   = "Game"
	ModelObject = "Object"
)

// WorldEntity keys commands that are not tied to a single room object.
const WorldEntity = "world"

// Outcome is what background work hands back to the frame goroutine.
type Outcome struct {
	ID     string
	Kind   Kind
	Entity string
	OK     bool
	Err    error
	TxHash felt.Felt

	// Object is set when ObjectFacts belong to a room object.
	Object      string
	ObjectFacts []schema.Fact
	GameFacts   []schema.Fact
}

// Finished reports the is_finished fact carried by the outcome, if any.
func (o Outcome) Finished() (bool, bool) {
	for _, f := range o.GameFacts {
		if f.Kind == schema.FactFinished {
			return f.Finished, true
		}
	}
	return false, false
}

// header is shared by every command: a unique id, the task key it was
// reserved under and the slot its outcome is delivered to.
type header struct {
	ID       string
	Key      tasks.Key
	Enqueued time.Time
	done     tasks.Completer[Outcome]
}

func (h header) head() header { return h }

// command is any dispatchable command; all of them embed header.
type command interface{ head() header }

func (h header) complete(o Outcome) {
	o.ID = h.ID
	o.Entity = h.Key.Entity
	h.done.Complete(o)
}

type InitializeCmd struct {
	header
	Turns uint64
}

type SpawnObjectsCmd struct {
	header
	Objects []Object
}

type InteractCmd struct {
	header
	Object string
}

type EscapeCmd struct {
	header
	Secret string
}

// RefreshCmd re-reads the Game record without submitting a transaction.
type RefreshCmd struct {
	header
}
