package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// DefaultTimeout bounds commands sent without a caller deadline.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned for commands on a closed client.
var ErrClosed = errors.New("client is closed")

// Client sends commands to one CDP endpoint and dispatches its events.
type Client struct {
	conn    Conn
	writeMu sync.Mutex
	msgID   atomic.Int64

	pending sync.Map // map[int64]chan *Response

	listenMu  sync.RWMutex
	listeners map[string]map[int64]func(Event)
	listenID  int64

	closed   atomic.Bool
	closedCh chan struct{}
	closeErr error
	closeMu  sync.Mutex

	// done is closed when readLoop exits
	done chan struct{}
}

// NewClient starts reading from conn and returns the client.
func NewClient(conn Conn) *Client {
	c := &Client{
		conn:      conn,
		listeners: make(map[string]map[int64]func(Event)),
		closedCh:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial opens a WebSocket to wsURL and wraps it in a Client.
func Dial(ctx context.Context, wsURL string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CDP endpoint: %w", err)
	}
	// Large pages return big innerText payloads.
	conn.SetReadLimit(64 << 20)
	return NewClient(conn), nil
}

// SendContext sends a command and waits for its response or ctx.
// A context without a deadline is bounded by DefaultTimeout.
func (c *Client) SendContext(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, c.closedError()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	id := c.msgID.Add(1)
	data, err := json.Marshal(Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Register before writing so a fast reply is not dropped.
	respCh := make(chan *Response, 1)
	c.pending.Store(id, respCh)
	defer c.pending.Delete(id)

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s timed out: %w", method, ctx.Err())
	case <-c.closedCh:
		return nil, fmt.Errorf("%s: %w", method, c.closedError())
	}
}

// Call sends a command and decodes its result into out. A nil out
// discards the result.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	result, err := c.SendContext(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", method, err)
	}
	return nil
}

// Subscribe registers handler for events named method and returns a func
// that removes it. Handlers run on the read goroutine and must not block.
func (c *Client) Subscribe(method string, handler func(Event)) (unsubscribe func()) {
	c.listenMu.Lock()
	c.listenID++
	id := c.listenID
	if c.listeners[method] == nil {
		c.listeners[method] = make(map[int64]func(Event))
	}
	c.listeners[method][id] = handler
	c.listenMu.Unlock()

	return func() {
		c.listenMu.Lock()
		delete(c.listeners[method], id)
		c.listenMu.Unlock()
	}
}

// Close closes the connection and waits for the read loop to exit.
// Calling Close more than once is safe.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.closedCh)

	c.closeMu.Lock()
	err := c.conn.Close(websocket.StatusNormalClosure, "client closing")
	c.closeMu.Unlock()

	<-c.done
	return err
}

// Err returns the read error that closed the client, if any.
func (c *Client) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

// closedError is ErrClosed, annotated with the read error when the
// connection dropped rather than being closed by Close.
func (c *Client) closedError() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return ErrClosed
}

func (c *Client) readLoop() {
	defer close(c.done)

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if !c.closed.Swap(true) {
				c.closeMu.Lock()
				c.closeErr = err
				c.closeMu.Unlock()
				close(c.closedCh)
			}
			return
		}

		resp, evt, err := parseMessage(data)
		if err != nil {
			continue
		}
		if resp != nil {
			c.dispatchResponse(resp)
		} else if evt != nil {
			c.dispatchEvent(*evt)
		}
	}
}

func (c *Client) dispatchResponse(resp *Response) {
	ch, ok := c.pending.Load(resp.ID)
	if !ok {
		return
	}
	select {
	case ch.(chan *Response) <- resp:
	default:
	}
}

func (c *Client) dispatchEvent(evt Event) {
	c.listenMu.RLock()
	handlers := make([]func(Event), 0, len(c.listeners[evt.Method]))
	for _, h := range c.listeners[evt.Method] {
		handlers = append(handlers, h)
	}
	c.listenMu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
