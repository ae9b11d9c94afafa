package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/protocol"
	"escaperoom.ai/internal/schema"
)

type ClientConfig struct {
	URL            string
	Account        Account
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	MinBackoff     time.Duration
	MaxBackoff     time.Duration
	Logger         *log.Logger
}

func (c *ClientConfig) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
}

// Status is a point-in-time view of the node session.
type Status struct {
	URL         string
	Connected   bool
	LastError   string
	Pending     int
	Connects    uint64
	ConnectedAt time.Time
}

type reply struct {
	resp protocol.Response
	err  error
}

// Client is a websocket JSON-RPC Gateway. One background goroutine owns the
// connection: it dials with capped exponential backoff, reads responses and
// routes them to waiting requests by id.
type Client struct {
	cfg ClientConfig

	mu          sync.RWMutex
	conn        *websocket.Conn
	ready       chan struct{}
	lastErr     string
	connects    uint64
	connectedAt time.Time
	pending     map[string]chan reply

	writeMu sync.Mutex

	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	now func() time.Time
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("empty node url")
	}
	if cfg.Account.Address.IsZero() {
		return nil, fmt.Errorf("missing account")
	}
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		ready:   make(chan struct{}),
		pending: map[string]chan reply{},
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		now:     time.Now,
	}, nil
}

func (c *Client) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

// Close stops the session goroutine and fails every pending request.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.dropConn(ErrClosed)
		c.startOnce.Do(func() { close(c.done) })
		<-c.done
	})
	return nil
}

func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		URL:         c.cfg.URL,
		Connected:   c.conn != nil,
		LastError:   c.lastErr,
		Pending:     len(c.pending),
		Connects:    c.connects,
		ConnectedAt: c.connectedAt,
	}
}

func (c *Client) Call(ctx context.Context, call Call) (TxOutcome, error) {
	p := protocol.ExecuteParams{
		Nonce: uuid.NewString(),
		TS:    c.now().UnixMilli(),
		Calls: []protocol.CallMsg{{To: call.To, Selector: call.Selector, Calldata: call.Calldata}},
	}
	if p.Calls[0].Calldata == nil {
		p.Calls[0].Calldata = []felt.Felt{}
	}
	c.cfg.Account.Sign(&p)

	raw, err := c.roundTrip(ctx, protocol.MethodExecute, p)
	if err != nil {
		return TxOutcome{}, remoteErr(protocol.MethodExecute, err)
	}
	var res protocol.ExecuteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return TxOutcome{}, &RemoteError{Op: protocol.MethodExecute, Message: "bad result", Err: err}
	}
	return TxOutcome{TransactionHash: res.TransactionHash}, nil
}

func (c *Client) ReadRecord(ctx context.Context, model string, keys []felt.Felt) (schema.Ty, error) {
	if keys == nil {
		keys = []felt.Felt{}
	}
	raw, err := c.roundTrip(ctx, protocol.MethodReadRecord, protocol.ReadRecordParams{Model: model, Keys: keys})
	if err != nil {
		return nil, remoteErr(protocol.MethodReadRecord, err)
	}
	var res protocol.ReadRecordResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &RemoteError{Op: protocol.MethodReadRecord, Message: "bad result", Err: err}
	}
	if err := protocol.Validate(protocol.SchemaRecord, res.Record); err != nil {
		return nil, &RemoteError{Op: protocol.MethodReadRecord, Message: "bad record", Err: err}
	}
	ty, err := schema.Decode(res.Record)
	if err != nil {
		return nil, &RemoteError{Op: protocol.MethodReadRecord, Message: "bad record", Err: err}
	}
	return ty, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	id := uuid.NewString()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	conn, err := c.waitConnected(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan reply, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(c.now().Add(5 * time.Second))
	err = conn.WriteMessage(websocket.TextMessage, b)
	c.writeMu.Unlock()
	if err != nil {
		c.dropConn(err)
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, &RemoteError{Op: method, Code: r.resp.Error.Reason, Message: r.resp.Error.Message}
		}
		return r.resp.Result, nil
	}
}

func (c *Client) waitConnected(ctx context.Context) (*websocket.Conn, error) {
	for {
		c.mu.RLock()
		conn, ready := c.conn, c.ready
		c.mu.RUnlock()
		if conn != nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
		case <-c.ctx.Done():
			return nil, ErrClosed
		case <-ready:
		}
	}
}

func (c *Client) run() {
	defer close(c.done)

	for {
		conn, err := c.dial()
		if err != nil {
			// Only cancellation ends the dial retries.
			c.dropConn(ErrClosed)
			return
		}
		c.attach(conn)
		if c.ctx.Err() != nil {
			c.dropConn(ErrClosed)
			return
		}
		err = c.readLoop(conn)
		c.dropConn(err)
		if c.ctx.Err() != nil {
			return
		}
		c.cfg.Logger.Printf("node connection lost url=%s err=%v", c.cfg.URL, err)
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	b := retry.NewExponential(c.cfg.MinBackoff)
	b = retry.WithCappedDuration(c.cfg.MaxBackoff, b)
	b = retry.WithJitterPercent(10, b)

	var conn *websocket.Conn
	err := retry.Do(c.ctx, b, func(ctx context.Context) error {
		d := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
		cn, resp, err := d.DialContext(ctx, c.cfg.URL, http.Header{})
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			c.mu.Lock()
			c.lastErr = err.Error()
			c.mu.Unlock()
			return retry.RetryableError(err)
		}
		conn = cn
		return nil
	})
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.lastErr = ""
	c.connects++
	c.connectedAt = c.now()
	close(c.ready)
	c.mu.Unlock()
	c.cfg.Logger.Printf("node connected url=%s", c.cfg.URL)
}

// dropConn closes the current connection, fails pending requests and re-arms ready.
func (c *Client) dropConn(cause error) {
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.conn = nil
		c.ready = make(chan struct{})
	}
	if cause != nil && cause != ErrClosed {
		c.lastErr = cause.Error()
	}
	pending := c.pending
	c.pending = map[string]chan reply{}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, ch := range pending {
		select {
		case ch <- reply{err: fmt.Errorf("%w: %v", ErrNotConnected, cause)}:
		default:
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		if c.ctx.Err() != nil {
			return ErrClosed
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var resp protocol.Response
		if err := json.Unmarshal(msg, &resp); err != nil || resp.ID == "" {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}
		ch <- reply{resp: resp}
	}
}
