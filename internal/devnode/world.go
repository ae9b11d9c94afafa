// Package devnode is a local stand-in for the remote world: an in-memory
// escape-room contract behind the same JSON-RPC websocket protocol the
// client speaks. It exists for demos and integration tests.
package devnode

import (
	"errors"
	"fmt"
	"sync"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/room"
	"escaperoom.ai/internal/schema"
)

var (
	ErrUnknownEntrypoint = errors.New("devnode: unknown entrypoint")
	ErrNotFound          = errors.New("devnode: record not found")
)

// ExecError is a contract-level revert.
type ExecError struct {
	Entrypoint string
	Reason     string
}

func (e *ExecError) Error() string { return e.Entrypoint + ": " + e.Reason }

func revert(entry, format string, args ...any) error {
	return &ExecError{Entrypoint: entry, Reason: fmt.Sprintf(format, args...)}
}

type game struct {
	turns       uint64
	initialised bool
	finished    bool
	objects     map[felt.Felt]felt.Felt
}

// World holds one game per player account.
type World struct {
	secret felt.Felt

	mu    sync.Mutex
	games map[felt.Felt]*game
	txSeq uint64

	entrypoints map[felt.Felt]string
}

func NewWorld(escapeSecret string) (*World, error) {
	secret, err := felt.PackShortString(escapeSecret)
	if err != nil {
		return nil, fmt.Errorf("escape secret: %w", err)
	}
	w := &World{
		secret:      secret,
		games:       map[felt.Felt]*game{},
		entrypoints: map[felt.Felt]string{},
	}
	for _, name := range []string{room.EntryInitialise, room.EntrySpawnObject, room.EntryInteract, room.EntryEscape} {
		w.entrypoints[felt.Selector(name)] = name
	}
	return w, nil
}

func (w *World) gameLocked(player felt.Felt) *game {
	g, ok := w.games[player]
	if !ok {
		g = &game{objects: map[felt.Felt]felt.Felt{}}
		w.games[player] = g
	}
	return g
}

// Execute runs one call for player and returns its transaction hash.
func (w *World) Execute(player, selector felt.Felt, calldata []felt.Felt) (felt.Felt, error) {
	name, ok := w.entrypoints[selector]
	if !ok {
		return felt.Felt{}, fmt.Errorf("%w: %s", ErrUnknownEntrypoint, selector.Hex())
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	g := w.gameLocked(player)
	var err error
	switch name {
	case room.EntryInitialise:
		err = g.initialise(calldata)
	case room.EntrySpawnObject:
		err = g.spawn(calldata)
	case room.EntryInteract:
		err = g.interact(calldata)
	case room.EntryEscape:
		err = g.escape(w.secret, calldata)
	}
	if err != nil {
		return felt.Felt{}, err
	}
	w.txSeq++
	return felt.FromUint64(w.txSeq), nil
}

func (g *game) initialise(calldata []felt.Felt) error {
	if len(calldata) != 1 {
		return revert(room.EntryInitialise, "want 1 argument, got %d", len(calldata))
	}
	turns, ok := calldata[0].Uint64()
	if !ok || turns == 0 {
		return revert(room.EntryInitialise, "bad turn count %s", calldata[0].Hex())
	}
	g.turns = turns
	g.initialised = true
	g.finished = false
	return nil
}

// spawn takes [n, ids..., n, descriptions...].
func (g *game) spawn(calldata []felt.Felt) error {
	if len(calldata) < 2 {
		return revert(room.EntrySpawnObject, "short calldata")
	}
	n, ok := calldata[0].Uint64()
	if !ok || n > uint64(len(calldata)) || uint64(len(calldata)) < 2+2*n {
		return revert(room.EntrySpawnObject, "bad id count")
	}
	ids := calldata[1 : 1+n]
	m, ok := calldata[1+n].Uint64()
	if !ok || m != n || uint64(len(calldata)) != 2+2*n {
		return revert(room.EntrySpawnObject, "id and description counts differ")
	}
	descs := calldata[2+n:]
	for i := range ids {
		g.objects[ids[i]] = descs[i]
	}
	return nil
}

func (g *game) playable(entry string) error {
	switch {
	case !g.initialised:
		return revert(entry, "game not initialised")
	case g.finished:
		return revert(entry, "game already finished")
	case g.turns == 0:
		return revert(entry, "no turns remaining")
	}
	return nil
}

func (g *game) interact(calldata []felt.Felt) error {
	if len(calldata) != 1 {
		return revert(room.EntryInteract, "want 1 argument, got %d", len(calldata))
	}
	if err := g.playable(room.EntryInteract); err != nil {
		return err
	}
	if _, ok := g.objects[calldata[0]]; !ok {
		return revert(room.EntryInteract, "no such object")
	}
	g.turns--
	return nil
}

// escape never reverts on a wrong secret: it costs a turn and leaves
// is_finished false for the client to read back.
func (g *game) escape(secret felt.Felt, calldata []felt.Felt) error {
	if len(calldata) != 1 {
		return revert(room.EntryEscape, "want 1 argument, got %d", len(calldata))
	}
	if err := g.playable(room.EntryEscape); err != nil {
		return err
	}
	if calldata[0] == secret {
		g.finished = true
		return nil
	}
	g.turns--
	return nil
}

// Record returns the Game (keys [player]) or Object (keys [player, id])
// record. Both carry an owner field the client does not ask for.
func (w *World) Record(model string, keys []felt.Felt) (schema.Ty, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch model {
	case room.ModelGame:
		if len(keys) != 1 {
			return nil, fmt.Errorf("%w: Game takes 1 key", ErrNotFound)
		}
		g, ok := w.games[keys[0]]
		if !ok || !g.initialised {
			return nil, fmt.Errorf("%w: Game %s", ErrNotFound, keys[0].Hex())
		}
		return schema.Struct{
			Name: room.ModelGame,
			Children: []schema.Member{
				{Name: "player", Key: true, Ty: schema.Primitive{Type: schema.ContractAddress, Value: keys[0]}},
				{Name: "turns_remaining", Ty: schema.U64Value(g.turns)},
				{Name: "is_finished", Ty: schema.BoolValue(g.finished)},
				{Name: "owner", Ty: schema.Primitive{Type: schema.ContractAddress, Value: keys[0]}},
			},
		}, nil
	case room.ModelObject:
		if len(keys) != 2 {
			return nil, fmt.Errorf("%w: Object takes 2 keys", ErrNotFound)
		}
		g, ok := w.games[keys[0]]
		if !ok {
			return nil, fmt.Errorf("%w: Object %s", ErrNotFound, keys[1].Hex())
		}
		desc, ok := g.objects[keys[1]]
		if !ok {
			return nil, fmt.Errorf("%w: Object %s", ErrNotFound, keys[1].Hex())
		}
		return schema.Struct{
			Name: room.ModelObject,
			Children: []schema.Member{
				{Name: "player", Key: true, Ty: schema.Primitive{Type: schema.ContractAddress, Value: keys[0]}},
				{Name: "object_id", Key: true, Ty: schema.FeltValue(keys[1])},
				{Name: "description", Ty: schema.FeltValue(desc)},
				{Name: "owner", Ty: schema.Primitive{Type: schema.ContractAddress, Value: keys[0]}},
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown model %q", ErrNotFound, model)
	}
}
