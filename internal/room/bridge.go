// Package room drives the escape room from a single frame goroutine. Remote
// work runs on per-kind dispatch loops and spawned tasks; results come back
// through the task table and are folded into the mirror once per frame.
package room

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"escaperoom.ai/internal/dispatch"
	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/gateway"
	"escaperoom.ai/internal/mirror"
	"escaperoom.ai/internal/schema"
	"escaperoom.ai/internal/synctimer"
	"escaperoom.ai/internal/tasks"
)

type Options struct {
	// Player is the account address; records are keyed by it.
	Player felt.Felt
	// Actions is the contract that receives every call.
	Actions felt.Felt

	SyncInterval    time.Duration
	SettleDelay     time.Duration
	ChannelCapacity int
	// Catalog is the set of objects spawned at setup and accepted by input.
	Catalog []Object

	Recorder Recorder
	Logger   *log.Logger
}

func (o *Options) applyDefaults() {
	if o.SyncInterval <= 0 {
		o.SyncInterval = synctimer.DefaultPeriod
	}
	if o.ChannelCapacity <= 0 {
		o.ChannelCapacity = 32
	}
	if len(o.Catalog) == 0 {
		o.Catalog = DefaultCatalog
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
}

type Bridge struct {
	gw     gateway.Gateway
	opts   Options
	logger *log.Logger

	mirror *mirror.State
	timer  *synctimer.Timer
	table  *tasks.Table[Outcome]

	initCh     *dispatch.Channel[InitializeCmd]
	spawnCh    *dispatch.Channel[SpawnObjectsCmd]
	interactCh *dispatch.Channel[InteractCmd]
	escapeCh   *dispatch.Channel[EscapeCmd]
	refreshCh  *dispatch.Channel[RefreshCmd]

	ctx context.Context
	now func() time.Time
}

func NewBridge(gw gateway.Gateway, opts Options) (*Bridge, error) {
	if gw == nil {
		return nil, fmt.Errorf("nil gateway")
	}
	if opts.Player.IsZero() {
		return nil, fmt.Errorf("zero player address")
	}
	if opts.Actions.IsZero() {
		return nil, fmt.Errorf("zero actions address")
	}
	opts.applyDefaults()
	if err := ValidateCatalog(opts.Catalog); err != nil {
		return nil, err
	}
	capacity, lg := opts.ChannelCapacity, opts.Logger
	table := tasks.NewTable[Outcome](context.Background())
	table.OnPanic(func(key tasks.Key, v any) Outcome {
		return Outcome{Kind: Kind(key.Kind), Entity: key.Entity, Object: key.Entity, Err: fmt.Errorf("%s task panic: %v", key.Kind, v)}
	})
	return &Bridge{
		gw:         gw,
		opts:       opts,
		logger:     lg,
		mirror:     mirror.New(),
		timer:      synctimer.New(opts.SyncInterval),
		table:      table,
		initCh:     dispatch.NewChannel[InitializeCmd](string(KindInitialize), capacity, lg),
		spawnCh:    dispatch.NewChannel[SpawnObjectsCmd](string(KindSpawnObjects), capacity, lg),
		interactCh: dispatch.NewChannel[InteractCmd](string(KindInteract), capacity, lg),
		escapeCh:   dispatch.NewChannel[EscapeCmd](string(KindEscape), capacity, lg),
		refreshCh:  dispatch.NewChannel[RefreshCmd](string(KindRefresh), capacity, lg),
		ctx:        context.Background(),
		now:        time.Now,
	}, nil
}

// Start launches one dispatch loop per command kind. ctx is passed to the
// gateway; the loops themselves stop only on Close.
func (b *Bridge) Start(ctx context.Context) {
	b.ctx = ctx
	b.initCh.Start(ctx, guarded[InitializeCmd](b, KindInitialize, b.handleInitialize))
	b.spawnCh.Start(ctx, guarded[SpawnObjectsCmd](b, KindSpawnObjects, b.handleSpawnObjects))
	b.interactCh.Start(ctx, guarded[InteractCmd](b, KindInteract, b.handleInteract))
	b.escapeCh.Start(ctx, guarded[EscapeCmd](b, KindEscape, b.handleEscape))
	b.refreshCh.Start(ctx, guarded[RefreshCmd](b, KindRefresh, b.handleRefresh))
}

// Close stops accepting commands. Loops finish what is queued and exit on
// their own; Wait observes that.
func (b *Bridge) Close() {
	b.initCh.Close()
	b.spawnCh.Close()
	b.interactCh.Close()
	b.escapeCh.Close()
	b.refreshCh.Close()
}

func (b *Bridge) Wait(ctx context.Context) error {
	for _, done := range []<-chan struct{}{
		b.initCh.Done(), b.spawnCh.Done(), b.interactCh.Done(), b.escapeCh.Done(), b.refreshCh.Done(),
	} {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Mirror is the frame goroutine's read view of remote state.
func (b *Bridge) Mirror() *mirror.State { return b.mirror }

func (b *Bridge) Pending(kind Kind, entity string) bool {
	return b.table.Pending(tasks.Key{Entity: entity, Kind: string(kind)})
}

type ChannelStats map[Kind]dispatch.Stats

func (b *Bridge) Stats() ChannelStats {
	return ChannelStats{
		KindInitialize:   b.initCh.Stats(),
		KindSpawnObjects: b.spawnCh.Stats(),
		KindInteract:     b.interactCh.Stats(),
		KindEscape:       b.escapeCh.Stats(),
		KindRefresh:      b.refreshCh.Stats(),
	}
}

// submit reserves the task slot and enqueues the command built for it. A
// rejected enqueue frees the slot again.
func submit[C any](b *Bridge, ch *dispatch.Channel[C], kind Kind, entity string, build func(header) C) (string, error) {
	key := tasks.Key{Entity: entity, Kind: string(kind)}
	_, done, err := b.table.Reserve(key)
	if err != nil {
		return "", err
	}
	h := header{ID: uuid.NewString(), Key: key, Enqueued: b.now(), done: done}
	if err := ch.Enqueue(build(h)); err != nil {
		b.table.Release(key)
		return "", err
	}
	return h.ID, nil
}

// Setup furnishes the room and starts a game with the given turn budget.
// The two commands run on separate loops and may reach the node in any order.
func (b *Bridge) Setup(turns uint64) error {
	if _, err := b.SpawnObjects(b.opts.Catalog); err != nil {
		return fmt.Errorf("spawn objects: %w", err)
	}
	if _, err := b.Initialize(turns); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

func (b *Bridge) Initialize(turns uint64) (string, error) {
	return submit(b, b.initCh, KindInitialize, WorldEntity, func(h header) InitializeCmd {
		return InitializeCmd{header: h, Turns: turns}
	})
}

func (b *Bridge) SpawnObjects(objects []Object) (string, error) {
	if err := ValidateCatalog(objects); err != nil {
		return "", err
	}
	objs := append([]Object(nil), objects...)
	return submit(b, b.spawnCh, KindSpawnObjects, WorldEntity, func(h header) SpawnObjectsCmd {
		return SpawnObjectsCmd{header: h, Objects: objs}
	})
}

// Interact is keyed by object: different objects may be in flight together.
func (b *Bridge) Interact(object string) (string, error) {
	if _, err := felt.PackShortString(object); err != nil {
		return "", fmt.Errorf("object %q: %w", object, err)
	}
	return submit(b, b.interactCh, KindInteract, object, func(h header) InteractCmd {
		return InteractCmd{header: h, Object: object}
	})
}

func (b *Bridge) Escape(secret string) (string, error) {
	if _, err := felt.PackShortString(secret); err != nil {
		return "", fmt.Errorf("secret: %w", err)
	}
	return submit(b, b.escapeCh, KindEscape, WorldEntity, func(h header) EscapeCmd {
		return EscapeCmd{header: h, Secret: secret}
	})
}

func (b *Bridge) Refresh() (string, error) {
	return submit(b, b.refreshCh, KindRefresh, WorldEntity, func(h header) RefreshCmd {
		return RefreshCmd{header: h}
	})
}

// Inspect reads an object's record on a spawned task rather than a dispatch
// loop; there is no transaction to order against.
func (b *Bridge) Inspect(object string) error {
	key, err := felt.PackShortString(object)
	if err != nil {
		return fmt.Errorf("object %q: %w", object, err)
	}
	h := header{ID: uuid.NewString(), Key: tasks.Key{Entity: object, Kind: string(KindInspect)}, Enqueued: b.now()}
	ctx := b.ctx
	_, err = b.table.Spawn(h.Key, func(context.Context) Outcome {
		started := b.now()
		o := Outcome{ID: h.ID, Kind: KindInspect, Entity: object, Object: object}
		ty, err := b.gw.ReadRecord(ctx, ModelObject, []felt.Felt{b.opts.Player, key})
		if err != nil {
			o.Err = err
		} else {
			o.ObjectFacts = schema.DecodeFacts(ty, schema.ObjectInterest)
		}
		o.OK = o.Err == nil
		b.record(h, KindInspect, started, o)
		return o
	})
	return err
}

// Update runs once per frame on the frame goroutine and never blocks.
// It returns the outcomes that arrived this frame.
func (b *Bridge) Update(dt time.Duration) []Outcome {
	if b.timer.Tick(dt) && !b.Pending(KindRefresh, WorldEntity) {
		if _, err := b.Refresh(); err != nil {
			b.logger.Printf("sync refresh skipped err=%v", err)
		}
	}

	var arrived []Outcome
	b.table.PollAll(func(_ tasks.Key, o Outcome) {
		arrived = append(arrived, o)
		b.apply(o)
	})
	return arrived
}

func (b *Bridge) apply(o Outcome) {
	if !o.OK {
		b.logger.Printf("%s failed id=%s entity=%s err=%v", o.Kind, o.ID, o.Entity, o.Err)
		return
	}
	switch o.Kind {
	case KindInitialize:
		b.logger.Printf("game initialized")
	case KindSpawnObjects:
		b.logger.Printf("objects spawned")
	}

	ch := b.mirror.Apply(o.Object, o.ObjectFacts)
	for _, name := range ch.Descriptions {
		d, _ := b.mirror.Description(name)
		b.logger.Printf("object=%s description=%q", name, d)
	}
	ch = b.mirror.Apply("", o.GameFacts)
	if ch.Turns {
		n, _ := b.mirror.TurnsRemaining()
		b.logger.Printf("turns remaining=%d", n)
	}
	if o.Kind == KindEscape {
		if finished, ok := o.Finished(); ok {
			if finished {
				b.logger.Printf("You have escaped the room!")
			} else {
				b.logger.Printf("Wrong secret. Try again.")
			}
		}
	}
}
