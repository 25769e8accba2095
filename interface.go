package celeryconn

import (
	"context"
	"time"
)

// Connector defines the contract that every backend driver implements.
// Callers publish task envelopes and retrieve results through it without
// knowing which concrete store (Redis, MongoDB, in-memory, ...) is in use.
type Connector interface {
	// Connect builds a connection handle from the given details and performs
	// the store handshake
	Connect(ctx context.Context, details Details) (Conn, error)

	// EnsureConnected returns conn unchanged if it is already connected,
	// otherwise it performs the handshake once
	EnsureConnected(ctx context.Context, conn Conn) (Conn, error)

	// Publish wraps body in an envelope and inserts it into the destination
	// named by routing.Exchange
	Publish(ctx context.Context, conn Conn, routing Routing, body any, props Properties, headers Headers) error

	// FetchResult returns the result stored for taskID, or nil without an
	// error when no result is available yet. When remove is true the record
	// is consumed.
	FetchResult(ctx context.Context, conn Conn, taskID string, expire time.Duration, remove bool) (*Result, error)

	// FinalizeResult removes the result stored for taskID and reports whether
	// a record was present
	FinalizeResult(ctx context.Context, conn Conn, taskID string) (bool, error)

	// ResultKey returns the store key under which the result of taskID lives
	ResultKey(taskID string) string
}

// Store defines the primitive operations a backend store offers.
type Store interface {
	// Insert appends payload to the destination (queue, list or collection)
	Insert(ctx context.Context, destination string, payload []byte) error

	// Put writes payload under key, replacing any previous value
	Put(ctx context.Context, key string, payload []byte) error

	// Get returns the value under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether a value is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key and reports whether something was removed
	Delete(ctx context.Context, key string) (bool, error)
}

// Conn is an opaque handle to a session with a backend store.
// Its lifecycle belongs to the caller: connectors never close it.
type Conn interface {
	Store

	// IsConnected reports whether the handshake has completed
	IsConnected(ctx context.Context) bool

	// Connect performs the handshake with the store
	Connect(ctx context.Context) error

	// Close releases any resources held by the handle
	Close() error
}

// Taker is implemented by stores with an atomic get-and-remove primitive.
type Taker interface {
	// Take returns and removes the value under key, or ErrNotFound
	Take(ctx context.Context, key string) ([]byte, error)
}

// Expirer is implemented by stores with native per-key expiry.
type Expirer interface {
	// Expire sets the time to live of key
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Backend is a Connector that can also write results and probe for them.
// Every connector in this package implements it.
type Backend interface {
	Connector

	// StoreResult writes result under the result key of taskID
	StoreResult(ctx context.Context, conn Conn, taskID string, result any) error

	// ResultReady reports whether a result is stored for taskID without consuming it
	ResultReady(ctx context.Context, conn Conn, taskID string) (bool, error)
}

var (
	_ Backend = (*MemoryConnector)(nil)
	_ Backend = (*RedisConnector)(nil)
	_ Backend = (*MongoConnector)(nil)

	_ Conn = (*MemoryConn)(nil)
	_ Conn = (*RedisConn)(nil)
	_ Conn = (*MongoConn)(nil)
)
