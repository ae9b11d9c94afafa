package devnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/protocol"
	"escaperoom.ai/internal/schema"
)

type Config struct {
	World   *World
	ChainID felt.Felt
	// Actions is the only contract address calls may target.
	Actions felt.Felt
	// Accounts maps account address to its signing secret.
	Accounts     map[felt.Felt]string
	Latency      time.Duration
	ReplayWindow time.Duration
	Logger       *log.Logger
}

type Server struct {
	world    *World
	chainID  felt.Felt
	actions  felt.Felt
	accounts map[felt.Felt][]byte
	latency  time.Duration
	guard    *replayGuard
	log      *log.Logger
	now      func() time.Time

	upgrader websocket.Upgrader

	conns    atomic.Int64
	requests atomic.Uint64
}

// skew bounds how far a request timestamp may drift from the node clock.
const skew = 5 * time.Minute

func NewServer(cfg Config) (*Server, error) {
	if cfg.World == nil {
		return nil, fmt.Errorf("nil world")
	}
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	accounts := make(map[felt.Felt][]byte, len(cfg.Accounts))
	for addr, secret := range cfg.Accounts {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return nil, fmt.Errorf("account %s: empty secret", addr.Hex())
		}
		accounts[addr] = []byte(secret)
	}
	return &Server{
		world:    cfg.World,
		chainID:  cfg.ChainID,
		actions:  cfg.Actions,
		accounts: accounts,
		latency:  cfg.Latency,
		guard:    newReplayGuard(cfg.ReplayWindow),
		log:      cfg.Logger,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev node
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":          true,
			"connections": s.conns.Load(),
			"requests":    s.requests.Load(),
		})
	})
	r.Get("/v1/ws", s.handleWS)
	return r
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.conns.Add(1)
	defer s.conns.Add(-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan []byte, 64)

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop. Requests are served concurrently; responses carry the id.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				s.log.Printf("ws read err=%v", err)
			}
			return
		}
		s.requests.Add(1)
		go func(msg []byte) {
			resp := s.Handle(ctx, msg)
			b, err := json.Marshal(resp)
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}(msg)
	}
}

// Handle serves one JSON-RPC frame.
func (s *Server) Handle(ctx context.Context, raw []byte) protocol.Response {
	req, err := protocol.ParseRequest(raw)
	if err != nil {
		return protocol.ErrorResponse(req.ID, protocol.CodeParseError, protocol.ErrBadRequest, "bad jsonrpc request")
	}
	if err := protocol.Validate(protocol.SchemaRequest, raw); err != nil {
		return protocol.ErrorResponse(req.ID, protocol.CodeInvalidRequest, protocol.ErrBadRequest, err.Error())
	}

	switch req.Method {
	case protocol.MethodExecute:
		var p protocol.ExecuteParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return protocol.ErrorResponse(req.ID, protocol.CodeInvalidParams, protocol.ErrBadRequest, err.Error())
		}
		if code, msg := s.authorize(p); code != "" {
			return protocol.ErrorResponse(req.ID, protocol.CodeApplication, code, msg)
		}
		s.delay(ctx)
		return s.execute(req.ID, p)

	case protocol.MethodReadRecord:
		var p protocol.ReadRecordParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return protocol.ErrorResponse(req.ID, protocol.CodeInvalidParams, protocol.ErrBadRequest, err.Error())
		}
		s.delay(ctx)
		return s.readRecord(req.ID, p)

	default:
		return protocol.ErrorResponse(req.ID, protocol.CodeMethodNotFound, protocol.ErrBadRequest, "method not found")
	}
}

// authorize checks account, chain, clock, signature and nonce, in that order.
func (s *Server) authorize(p protocol.ExecuteParams) (code, msg string) {
	secret, ok := s.accounts[p.Account]
	if !ok {
		return protocol.ErrBadSignature, "unknown account"
	}
	if p.ChainID != s.chainID {
		return protocol.ErrBadSignature, "chain id mismatch"
	}
	now := s.now()
	if d := now.UnixMilli() - p.TS; d > skew.Milliseconds() || d < -skew.Milliseconds() {
		return protocol.ErrBadSignature, "ts outside window"
	}
	if !protocol.VerifyHMAC(secret, protocol.Canonical(p), p.Signature) {
		return protocol.ErrBadSignature, "bad signature"
	}
	if !s.guard.allow(p.Account.Hex(), p.Nonce, now) {
		return protocol.ErrReplay, "nonce already used"
	}
	return "", ""
}

func (s *Server) execute(id string, p protocol.ExecuteParams) protocol.Response {
	var tx felt.Felt
	for i, c := range p.Calls {
		if c.To != s.actions {
			return protocol.ErrorResponse(id, protocol.CodeApplication, protocol.ErrExecution, fmt.Sprintf("call %d: no contract at %s", i, c.To.Hex()))
		}
		h, err := s.world.Execute(p.Account, c.Selector, c.Calldata)
		if err != nil {
			code := protocol.ErrExecution
			if errors.Is(err, ErrUnknownEntrypoint) {
				code = protocol.ErrUnknownEntry
			}
			s.log.Printf("execute account=%s call=%d err=%v", p.Account.Hex(), i, err)
			return protocol.ErrorResponse(id, protocol.CodeApplication, code, err.Error())
		}
		tx = h
	}
	resp, err := protocol.OKResponse(id, protocol.ExecuteResult{TransactionHash: tx})
	if err != nil {
		return protocol.ErrorResponse(id, protocol.CodeInternal, protocol.ErrInternal, err.Error())
	}
	return resp
}

func (s *Server) readRecord(id string, p protocol.ReadRecordParams) protocol.Response {
	ty, err := s.world.Record(p.Model, p.Keys)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return protocol.ErrorResponse(id, protocol.CodeApplication, protocol.ErrNotFound, err.Error())
		}
		return protocol.ErrorResponse(id, protocol.CodeInternal, protocol.ErrInternal, err.Error())
	}
	rec, err := schema.Encode(ty)
	if err != nil {
		return protocol.ErrorResponse(id, protocol.CodeInternal, protocol.ErrInternal, err.Error())
	}
	resp, err := protocol.OKResponse(id, protocol.ReadRecordResult{Record: rec})
	if err != nil {
		return protocol.ErrorResponse(id, protocol.CodeInternal, protocol.ErrInternal, err.Error())
	}
	return resp
}

func (s *Server) delay(ctx context.Context) {
	if s.latency <= 0 {
		return
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
