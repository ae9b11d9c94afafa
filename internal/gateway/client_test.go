package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/protocol"
	"escaperoom.ai/internal/schema"
)

var testAccount = func() Account {
	a, err := NewAccount(felt.FromUint64(0xabc), felt.MustShortString("KATANA"), "s3cret")
	if err != nil {
		panic(err)
	}
	return a
}()

// scriptedNode answers each request with reply(req). A nil response drops
// the connection instead.
type scriptedNode struct {
	reply func(req protocol.Request) *protocol.Response
	conns atomic.Int64
}

func (n *scriptedNode) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	n.conns.Add(1)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := protocol.ParseRequest(msg)
		if err != nil {
			return
		}
		resp := n.reply(req)
		if resp == nil {
			return
		}
		b, _ := json.Marshal(resp)
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func startScripted(t *testing.T, reply func(protocol.Request) *protocol.Response) (*scriptedNode, *Client) {
	t.Helper()
	n := &scriptedNode{reply: reply}
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Account:        testAccount,
		RequestTimeout: 500 * time.Millisecond,
		MinBackoff:     10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.Start()
	t.Cleanup(func() { _ = c.Close() })
	return n, c
}

func okResp(t *testing.T, id string, v any) *protocol.Response {
	resp, err := protocol.OKResponse(id, v)
	if err != nil {
		t.Errorf("OKResponse: %v", err)
	}
	return &resp
}

func TestClient_CallSignsRequest(t *testing.T) {
	gotc := make(chan protocol.ExecuteParams, 1)
	_, c := startScripted(t, func(req protocol.Request) *protocol.Response {
		var p protocol.ExecuteParams
		_ = json.Unmarshal(req.Params, &p)
		gotc <- p
		return okResp(t, req.ID, protocol.ExecuteResult{TransactionHash: felt.FromUint64(42)})
	})

	out, err := c.Call(context.Background(), NewCall(felt.FromUint64(7), "interact", felt.MustShortString("Door")))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out.TransactionHash != felt.FromUint64(42) {
		t.Fatalf("tx hash %s", out.TransactionHash.Hex())
	}
	got := <-gotc
	if got.Account != testAccount.Address || got.Nonce == "" {
		t.Fatalf("params %+v", got)
	}
	if !protocol.VerifyHMAC([]byte("s3cret"), protocol.Canonical(got), got.Signature) {
		t.Fatalf("signature does not verify")
	}
}

func TestClient_RemoteErrorCarriesCode(t *testing.T) {
	_, c := startScripted(t, func(req protocol.Request) *protocol.Response {
		resp := protocol.ErrorResponse(req.ID, protocol.CodeApplication, protocol.ErrNotFound, "no such record")
		return &resp
	})
	_, err := c.ReadRecord(context.Background(), "Game", []felt.Felt{felt.FromUint64(1)})
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != protocol.ErrNotFound || re.Op != protocol.MethodReadRecord {
		t.Fatalf("expected not found RemoteError, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("E_NOT_FOUND should unwrap to ErrNotFound")
	}
}

func TestClient_ReadRecordRejectsMalformedRecord(t *testing.T) {
	_, c := startScripted(t, func(req protocol.Request) *protocol.Response {
		return okResp(t, req.ID, protocol.ReadRecordResult{Record: json.RawMessage(`{"kind":"teapot"}`)})
	})
	_, err := c.ReadRecord(context.Background(), "Game", nil)
	var re *RemoteError
	if !errors.As(err, &re) || re.Message != "bad record" {
		t.Fatalf("expected bad record, got %v", err)
	}
}

func TestClient_ReadRecordDecodes(t *testing.T) {
	rec, err := schema.Encode(schema.Struct{Name: "Game", Children: []schema.Member{
		{Name: "turns_remaining", Ty: schema.U64Value(4)},
	}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, c := startScripted(t, func(req protocol.Request) *protocol.Response {
		return okResp(t, req.ID, protocol.ReadRecordResult{Record: rec})
	})
	ty, err := c.ReadRecord(context.Background(), "Game", nil)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if f := schema.DecodeFacts(ty, schema.GameInterest); len(f) != 1 || f[0] != schema.TurnsFact(4) {
		t.Fatalf("facts %+v", f)
	}
}

func TestClient_TimesOutSilentNode(t *testing.T) {
	block := make(chan struct{})
	_, c := startScripted(t, func(req protocol.Request) *protocol.Response {
		<-block
		return nil
	})
	t.Cleanup(func() { close(block) })
	start := time.Now()
	_, err := c.Call(context.Background(), NewCall(felt.FromUint64(7), "escape"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if d := time.Since(start); d > 3*time.Second {
		t.Fatalf("timeout took %s", d)
	}
	if st := c.Status(); st.Pending != 0 {
		t.Fatalf("pending request leaked: %+v", st)
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	var calls atomic.Int64
	n, c := startScripted(t, func(req protocol.Request) *protocol.Response {
		if calls.Add(1) == 1 {
			return nil
		}
		return okResp(t, req.ID, protocol.ExecuteResult{TransactionHash: felt.FromUint64(1)})
	})

	_, err := c.Call(context.Background(), NewCall(felt.FromUint64(7), "escape"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("first call: expected ErrNotConnected, got %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		_, err = c.Call(context.Background(), NewCall(felt.FromUint64(7), "escape"))
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("call after reconnect: %v", err)
	}
	if n.conns.Load() < 2 || c.Status().Connects < 2 {
		t.Fatalf("expected a second connection, node=%d client=%+v", n.conns.Load(), c.Status())
	}
}

func TestClient_CloseFailsWaiters(t *testing.T) {
	c, err := NewClient(ClientConfig{URL: "ws://127.0.0.1:1/unreachable", Account: testAccount, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.Start()
	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadRecord(context.Background(), "Game", nil)
		errc <- err
	}()
	time.Sleep(50 * time.Millisecond)
	_ = c.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("waiter not released by Close")
	}
}

func TestNewClient_Validates(t *testing.T) {
	if _, err := NewClient(ClientConfig{Account: testAccount}); err == nil {
		t.Fatalf("empty url accepted")
	}
	if _, err := NewClient(ClientConfig{URL: "ws://x"}); err == nil {
		t.Fatalf("missing account accepted")
	}
	if _, err := NewAccount(felt.Zero, felt.Zero, "x"); err == nil {
		t.Fatalf("zero address accepted")
	}
	if _, err := NewAccount(felt.FromUint64(1), felt.Zero, "  "); err == nil {
		t.Fatalf("blank secret accepted")
	}
}
