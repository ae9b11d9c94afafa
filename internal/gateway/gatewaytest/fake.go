// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/gateway"
	"escaperoom.ai/internal/protocol"
	"escaperoom.ai/internal/schema"
)

// Fake records calls in arrival order and answers reads from a record table.
// Errors can be scripted per entrypoint. Gate, when set, blocks every Call
// until a value is received from it; ReadGate does the same for ReadRecord.
type Fake struct {
	mu      sync.Mutex
	calls   []gateway.Call
	reads   []Read
	records map[string]schema.Ty
	callErr map[felt.Felt]error
	readErr error
	panics  int
	txSeq   uint64

	Gate     chan struct{}
	ReadGate chan struct{}
	Called   chan gateway.Call
}

type Read struct {
	Model string
	Keys  []felt.Felt
}

func New() *Fake {
	return &Fake{
		records: map[string]schema.Ty{},
		callErr: map[felt.Felt]error{},
	}
}

func recordKey(model string, keys []felt.Felt) string {
	k := model
	for _, f := range keys {
		k += "/" + f.Hex()
	}
	return k
}

func (f *Fake) SetRecord(model string, keys []felt.Felt, ty schema.Ty) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[recordKey(model, keys)] = ty
}

// FailEntrypoint makes every call to entrypoint fail with err.
func (f *Fake) FailEntrypoint(entrypoint string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.callErr, felt.Selector(entrypoint))
		return
	}
	f.callErr[felt.Selector(entrypoint)] = err
}

func (f *Fake) FailReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// PanicReads makes the next n ReadRecord calls panic.
func (f *Fake) PanicReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics = n
}

func (f *Fake) Calls() []gateway.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Call(nil), f.calls...)
}

func (f *Fake) Reads() []Read {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Read(nil), f.reads...)
}

func (f *Fake) Call(ctx context.Context, call gateway.Call) (gateway.TxOutcome, error) {
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return gateway.TxOutcome{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.callErr[call.Selector]
	f.txSeq++
	seq := f.txSeq
	f.mu.Unlock()

	if f.Called != nil {
		f.Called <- call
	}
	if err != nil {
		return gateway.TxOutcome{}, &gateway.RemoteError{Op: protocol.MethodExecute, Code: protocol.ErrExecution, Message: err.Error(), Err: err}
	}
	return gateway.TxOutcome{TransactionHash: felt.FromUint64(seq)}, nil
}

func (f *Fake) ReadRecord(ctx context.Context, model string, keys []felt.Felt) (schema.Ty, error) {
	if f.ReadGate != nil {
		select {
		case <-f.ReadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, Read{Model: model, Keys: append([]felt.Felt(nil), keys...)})
	if f.panics > 0 {
		f.panics--
		panic("gatewaytest: scripted read panic")
	}
	if f.readErr != nil {
		return nil, &gateway.RemoteError{Op: protocol.MethodReadRecord, Message: f.readErr.Error(), Err: f.readErr}
	}
	ty, ok := f.records[recordKey(model, keys)]
	if !ok {
		return nil, &gateway.RemoteError{Op: protocol.MethodReadRecord, Code: protocol.ErrNotFound, Message: "record not found"}
	}
	return ty, nil
}
