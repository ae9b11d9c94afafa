package room

import (
	"context"
	"fmt"
	"time"

	"escaperoom.ai/internal/dispatch"
	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/gateway"
	"escaperoom.ai/internal/schema"
)

// Handlers run on dispatch goroutines. They only talk to the gateway and
// hand an Outcome to the command's slot; the mirror is never touched here.

// guarded completes the command's slot with a failed Outcome when h panics,
// so the task key is freed and later commands of the kind are accepted.
func guarded[C command](b *Bridge, kind Kind, h dispatch.Handler[C]) dispatch.Handler[C] {
	return func(ctx context.Context, cmd C) (err error) {
		started := b.now()
		defer func() {
			if v := recover(); v != nil {
				err = fmt.Errorf("%s handler panic: %v", kind, v)
				cmd.head().complete(Outcome{Kind: kind, Err: err})
				b.record(cmd.head(), kind, started, Outcome{Kind: kind, Err: err})
			}
		}()
		return h(ctx, cmd)
	}
}

func (b *Bridge) handleInitialize(ctx context.Context, cmd InitializeCmd) error {
	started := b.now()
	o := Outcome{Kind: KindInitialize}
	tx, err := b.gw.Call(ctx, gateway.NewCall(b.opts.Actions, EntryInitialise, felt.FromUint64(cmd.Turns)))
	o.TxHash, o.Err = tx.TransactionHash, err
	return b.finish(cmd.header, started, o)
}

func (b *Bridge) handleSpawnObjects(ctx context.Context, cmd SpawnObjectsCmd) error {
	started := b.now()
	o := Outcome{Kind: KindSpawnObjects}
	calldata, err := spawnCalldata(cmd.Objects)
	if err != nil {
		o.Err = err
		return b.finish(cmd.header, started, o)
	}
	tx, err := b.gw.Call(ctx, gateway.NewCall(b.opts.Actions, EntrySpawnObject, calldata...))
	o.TxHash, o.Err = tx.TransactionHash, err
	return b.finish(cmd.header, started, o)
}

func (b *Bridge) handleInteract(ctx context.Context, cmd InteractCmd) error {
	started := b.now()
	o := Outcome{Kind: KindInteract, Object: cmd.Object}
	obj, err := felt.PackShortString(cmd.Object)
	if err != nil {
		o.Err = err
		return b.finish(cmd.header, started, o)
	}
	tx, err := b.gw.Call(ctx, gateway.NewCall(b.opts.Actions, EntryInteract, obj))
	if err != nil {
		o.Err = err
		return b.finish(cmd.header, started, o)
	}
	o.TxHash = tx.TransactionHash
	b.settle(ctx)
	o.ObjectFacts = b.readFacts(ctx, ModelObject, []felt.Felt{b.opts.Player, obj}, schema.ObjectInterest)
	o.GameFacts = b.readFacts(ctx, ModelGame, []felt.Felt{b.opts.Player}, schema.GameInterest)
	return b.finish(cmd.header, started, o)
}

func (b *Bridge) handleEscape(ctx context.Context, cmd EscapeCmd) error {
	started := b.now()
	o := Outcome{Kind: KindEscape}
	secret, err := felt.PackShortString(cmd.Secret)
	if err != nil {
		o.Err = err
		return b.finish(cmd.header, started, o)
	}
	tx, err := b.gw.Call(ctx, gateway.NewCall(b.opts.Actions, EntryEscape, secret))
	if err != nil {
		o.Err = err
		return b.finish(cmd.header, started, o)
	}
	o.TxHash = tx.TransactionHash
	b.settle(ctx)
	o.GameFacts = b.readFacts(ctx, ModelGame, []felt.Felt{b.opts.Player}, schema.GameInterest)
	return b.finish(cmd.header, started, o)
}

// handleRefresh fails when the read fails: with no transaction there is
// nothing else to report.
func (b *Bridge) handleRefresh(ctx context.Context, cmd RefreshCmd) error {
	started := b.now()
	o := Outcome{Kind: KindRefresh}
	ty, err := b.gw.ReadRecord(ctx, ModelGame, []felt.Felt{b.opts.Player})
	if err != nil {
		o.Err = err
	} else {
		o.GameFacts = schema.DecodeFacts(ty, schema.GameInterest)
	}
	return b.finish(cmd.header, started, o)
}

// readFacts is the secondary read after a successful call. A failed read
// yields no facts; the call itself still counts as done.
func (b *Bridge) readFacts(ctx context.Context, model string, keys []felt.Felt, in schema.Interest) []schema.Fact {
	ty, err := b.gw.ReadRecord(ctx, model, keys)
	if err != nil {
		b.logger.Printf("read_record model=%s err=%v", model, err)
		return nil
	}
	return schema.DecodeFacts(ty, in)
}

// settle gives the node time to apply the transaction before reading back.
func (b *Bridge) settle(ctx context.Context) {
	if b.opts.SettleDelay <= 0 {
		return
	}
	t := time.NewTimer(b.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (b *Bridge) finish(h header, started time.Time, o Outcome) error {
	o.OK = o.Err == nil
	b.record(h, o.Kind, started, o)
	h.complete(o)
	return o.Err
}

func (b *Bridge) record(h header, kind Kind, started time.Time, o Outcome) {
	if b.opts.Recorder == nil {
		return
	}
	b.opts.Recorder.RecordDispatch(newRecord(h, kind, started, b.now(), o))
}
