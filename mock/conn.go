package mock

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/bodaay/venice/protocol"
)

// Conn is a scripted broker connection. Unset funcs return empty responses.
type Conn struct {
	FetchFunc    func(ctx context.Context, req *protocol.FetchRequest) (*protocol.FetchResponse, error)
	MetadataFunc func(ctx context.Context, req *protocol.MetadataRequest) (*protocol.MetadataResponse, error)
	OffsetsFunc  func(ctx context.Context, req *protocol.OffsetsRequest) (*protocol.OffsetsResponse, error)
	CloseFunc    func() error

	mu      sync.Mutex
	fetches []protocol.FetchRequest
	closed  int
}

// FetchContext records the request and calls FetchFunc.
func (c *Conn) FetchContext(ctx context.Context, req *protocol.FetchRequest) (*protocol.FetchResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	c.mu.Lock()
	c.fetches = append(c.fetches, *req)
	c.mu.Unlock()
	if c.FetchFunc == nil {
		return &protocol.FetchResponse{Topic: req.Topic, Partition: req.Partition}, nil
	}
	return c.FetchFunc(ctx, req)
}

// MetadataContext calls MetadataFunc.
func (c *Conn) MetadataContext(ctx context.Context, req *protocol.MetadataRequest) (*protocol.MetadataResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if c.MetadataFunc == nil {
		return &protocol.MetadataResponse{}, nil
	}
	return c.MetadataFunc(ctx, req)
}

// OffsetsContext calls OffsetsFunc.
func (c *Conn) OffsetsContext(ctx context.Context, req *protocol.OffsetsRequest) (*protocol.OffsetsResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if c.OffsetsFunc == nil {
		return &protocol.OffsetsResponse{Offsets: []int64{0}}, nil
	}
	return c.OffsetsFunc(ctx, req)
}

// Close counts the call and calls CloseFunc.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	if c.CloseFunc == nil {
		return nil
	}
	return c.CloseFunc()
}

// Fetches returns the fetch requests received so far.
func (c *Conn) Fetches() []protocol.FetchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.FetchRequest(nil), c.fetches...)
}

// Closed returns how many times Close was called.
func (c *Conn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dial records one call to Dialer.Dial.
type Dial struct {
	ClientID string
	Addr     string
}

// Dialer hands out connections by address. Addresses without a connection fail to dial.
type Dialer struct {
	DialFunc func(ctx context.Context, clientID, addr string) (protocol.Conn, error)

	mu    sync.Mutex
	conns map[string]*Conn
	dials []Dial
}

// NewDialer returns a dialer with no reachable brokers.
func NewDialer() *Dialer {
	return &Dialer{conns: make(map[string]*Conn)}
}

// Set makes addr reachable through conn. A nil conn makes it unreachable.
func (d *Dialer) Set(addr string, conn *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conn == nil {
		delete(d.conns, addr)
		return
	}
	d.conns[addr] = conn
}

// Dial records the call and returns the connection set for addr.
func (d *Dialer) Dial(ctx context.Context, clientID, addr string) (protocol.Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, Dial{ClientID: clientID, Addr: addr})
	conn, ok := d.conns[addr]
	d.mu.Unlock()
	if d.DialFunc != nil {
		return d.DialFunc(ctx, clientID, addr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("mock: dial %s: connection refused", addr)
	}
	return conn, nil
}

// Dials returns the dial calls made so far.
func (d *Dialer) Dials() []Dial {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Dial(nil), d.dials...)
}

// DialsTo returns the dial calls made to addr with clientID.
func (d *Dialer) DialsTo(clientID, addr string) int {
	n := 0
	for _, dial := range d.Dials() {
		if dial.ClientID == clientID && dial.Addr == addr {
			n++
		}
	}
	return n
}

var (
	_ protocol.Conn   = (*Conn)(nil)
	_ protocol.Dialer = (*Dialer)(nil)
)
