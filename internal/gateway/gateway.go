// Package gateway is the client side of a remote world node: submit contract
// calls and read model records. Timeout and reconnect policy live here and
// nowhere else.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/protocol"
	"escaperoom.ai/internal/schema"
)

var (
	ErrNotFound     = errors.New("gateway: record not found")
	ErrNotConnected = errors.New("gateway: not connected")
	ErrClosed       = errors.New("gateway: closed")
)

// Gateway is the capability surface the bridge consumes.
type Gateway interface {
	// Call submits one contract invocation. Success confirms submission, not finality.
	Call(ctx context.Context, call Call) (TxOutcome, error)
	// ReadRecord resolves the record of model for the given key tuple.
	ReadRecord(ctx context.Context, model string, keys []felt.Felt) (schema.Ty, error)
}

type Call struct {
	To       felt.Felt
	Selector felt.Felt
	Calldata []felt.Felt
}

// NewCall builds a call to entrypoint on contract to.
func NewCall(to felt.Felt, entrypoint string, calldata ...felt.Felt) Call {
	return Call{To: to, Selector: felt.Selector(entrypoint), Calldata: calldata}
}

type TxOutcome struct {
	TransactionHash felt.Felt
}

// RemoteError is any failure reported by, or on the way to, the node.
type RemoteError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *RemoteError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Code == protocol.ErrNotFound {
		return ErrNotFound
	}
	return nil
}

func remoteErr(op string, err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}
