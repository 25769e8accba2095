package celeryconn

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DriverMemory is the driver label of the in-memory connector
const DriverMemory = "memory"

// MemoryConnector is an in-process connector.
// Handles built from the same host, port and vhost share one store, the way
// clients of the same server would. This is ideal for testing and development.
type MemoryConnector struct {
	protocol

	mu     sync.Mutex
	stores map[string]*memoryData
}

// NewMemoryConnector creates a new in-memory connector
func NewMemoryConnector(opts ...Option) *MemoryConnector {
	return &MemoryConnector{
		protocol: newProtocol(DriverMemory, opts),
		stores:   make(map[string]*memoryData),
	}
}

// NewConn returns an unconnected handle on the store addressed by details
func (c *MemoryConnector) NewConn(details Details) (*MemoryConn, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	name := details.Addr() + "/" + details.VHost

	c.mu.Lock()
	data, exists := c.stores[name]
	if !exists {
		data = newMemoryData()
		c.stores[name] = data
	}
	c.mu.Unlock()

	return &MemoryConn{data: data, now: time.Now}, nil
}

// Connect returns a connected handle on the store addressed by details
func (c *MemoryConnector) Connect(ctx context.Context, details Details) (Conn, error) {
	conn, err := c.NewConn(details)
	if err != nil {
		return nil, err
	}
	return c.EnsureConnected(ctx, conn)
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

type memoryData struct {
	mu      sync.Mutex
	queues  map[string][][]byte // destination -> payloads, oldest first
	records map[string]memoryRecord
}

func newMemoryData() *memoryData {
	return &memoryData{
		queues:  make(map[string][][]byte),
		records: make(map[string]memoryRecord),
	}
}

// MemoryConn is a handle on an in-memory store. It is safe for concurrent use.
type MemoryConn struct {
	data      *memoryData
	now       func() time.Time
	connected atomic.Bool
	closed    atomic.Bool
}

// MemoryOption is a function that configures a standalone memory handle
type MemoryOption func(*MemoryConn)

// WithClock sets the clock used to evaluate expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryConn) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryConn returns an unconnected handle on a private in-memory store
func NewMemoryConn(opts ...MemoryOption) *MemoryConn {
	c := &MemoryConn{
		data: newMemoryData(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConnected implements Conn
func (c *MemoryConn) IsConnected(ctx context.Context) bool {
	return c.connected.Load()
}

// Connect implements Conn
func (c *MemoryConn) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.connected.Store(true)
	return nil
}

// Close implements Conn. The underlying store keeps its data.
func (c *MemoryConn) Close() error {
	c.closed.Store(true)
	c.connected.Store(false)
	return nil
}

func (c *MemoryConn) lock() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.data.mu.Lock()
	return nil
}

// Insert appends payload to the destination queue
func (c *MemoryConn) Insert(ctx context.Context, destination string, payload []byte) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.data.mu.Unlock()

	c.data.queues[destination] = append(c.data.queues[destination], slices.Clone(payload))
	return nil
}

// Messages returns a copy of the payloads queued in destination, oldest first
func (c *MemoryConn) Messages(destination string) [][]byte {
	c.data.mu.Lock()
	defer c.data.mu.Unlock()

	out := make([][]byte, 0, len(c.data.queues[destination]))
	for _, p := range c.data.queues[destination] {
		out = append(out, slices.Clone(p))
	}
	return out
}

// Pop removes and returns the oldest payload queued in destination, or ErrNotFound
func (c *MemoryConn) Pop(ctx context.Context, destination string) ([]byte, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.data.mu.Unlock()

	queue := c.data.queues[destination]
	if len(queue) == 0 {
		return nil, ErrNotFound
	}
	c.data.queues[destination] = queue[1:]
	return queue[0], nil
}

// Put implements Store. It clears any expiry on key.
func (c *MemoryConn) Put(ctx context.Context, key string, payload []byte) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.data.mu.Unlock()

	c.data.records[key] = memoryRecord{data: slices.Clone(payload)}
	return nil
}

// record returns the live record under key, evicting it when expired.
// Must be called with the store lock held.
func (c *MemoryConn) record(key string) (memoryRecord, bool) {
	rec, exists := c.data.records[key]
	if !exists {
		return memoryRecord{}, false
	}
	if !rec.expiresAt.IsZero() && !c.now().Before(rec.expiresAt) {
		delete(c.data.records, key)
		return memoryRecord{}, false
	}
	return rec, true
}

// Get implements Store
func (c *MemoryConn) Get(ctx context.Context, key string) ([]byte, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.data.mu.Unlock()

	rec, ok := c.record(key)
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(rec.data), nil
}

// Exists implements Store
func (c *MemoryConn) Exists(ctx context.Context, key string) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.data.mu.Unlock()

	_, ok := c.record(key)
	return ok, nil
}

// Delete implements Store
func (c *MemoryConn) Delete(ctx context.Context, key string) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.data.mu.Unlock()

	_, ok := c.record(key)
	delete(c.data.records, key)
	return ok, nil
}

// Take implements Taker
func (c *MemoryConn) Take(ctx context.Context, key string) ([]byte, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.data.mu.Unlock()

	rec, ok := c.record(key)
	if !ok {
		return nil, ErrNotFound
	}
	delete(c.data.records, key)
	return rec.data, nil
}

// Expire implements Expirer. Expiring a missing key is a no-op.
func (c *MemoryConn) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.data.mu.Unlock()

	rec, ok := c.record(key)
	if !ok {
		return nil
	}
	rec.expiresAt = c.now().Add(ttl)
	c.data.records[key] = rec
	return nil
}
