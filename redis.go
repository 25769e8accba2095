package celeryconn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DriverRedis is the driver label of the Redis connector
const DriverRedis = "redis"

// RedisConnector is a Redis-based connector.
// Tasks are pushed onto a list named after the exchange, the way Celery's
// Redis transport lays them out, and results are plain string keys.
type RedisConnector struct {
	protocol
	redisOpts []RedisOption
}

// NewRedisConnector creates a new Redis connector
func NewRedisConnector(opts ...Option) *RedisConnector {
	return &RedisConnector{protocol: newProtocol(DriverRedis, opts)}
}

// WithConnOptions sets options applied to every handle built by Connect
func (c *RedisConnector) WithConnOptions(opts ...RedisOption) *RedisConnector {
	c.redisOpts = append(c.redisOpts, opts...)
	return c
}

// Connect builds a Redis handle from details and pings the server
func (c *RedisConnector) Connect(ctx context.Context, details Details) (Conn, error) {
	conn, err := NewRedisConn(details, c.redisOpts...)
	if err != nil {
		return nil, err
	}
	return c.EnsureConnected(ctx, conn)
}

// RedisConn is a handle on a Redis server. It is safe for concurrent use.
type RedisConn struct {
	client    *redis.Client
	txConsume bool
	connected atomic.Bool
	closed    atomic.Bool
}

// RedisOption is a function that configures a Redis handle
type RedisOption func(*RedisConn)

// WithTxConsume consumes results with a MULTI/EXEC transaction of GET and DEL
// instead of GETDEL, for servers older than Redis 6.2
func WithTxConsume() RedisOption {
	return func(c *RedisConn) {
		c.txConsume = true
	}
}

// NewRedisConn creates an unconnected handle from details.
// VHost selects the database number and defaults to 0.
func NewRedisConn(details Details, opts ...RedisOption) (*RedisConn, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	db := 0
	if details.VHost != "" {
		n, err := strconv.Atoi(details.VHost)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: redis vhost must be a database number, got %q", ErrConfiguration, details.VHost)
		}
		db = n
	}

	client := redis.NewClient(&redis.Options{
		Addr:     details.Addr(),
		Username: details.Username,
		Password: details.Password,
		DB:       db,
	})

	return NewRedisConnWithClient(client, opts...), nil
}

// NewRedisConnWithClient creates an unconnected handle on an existing Redis client
func NewRedisConnWithClient(client *redis.Client, opts ...RedisOption) *RedisConn {
	c := &RedisConn{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client returns the underlying Redis client
func (c *RedisConn) Client() *redis.Client {
	return c.client
}

// IsConnected implements Conn
func (c *RedisConn) IsConnected(ctx context.Context) bool {
	return c.connected.Load()
}

// Connect implements Conn by pinging the server
func (c *RedisConn) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: failed to ping redis: %w", ErrConnection, err)
	}
	c.connected.Store(true)
	return nil
}

// Close implements Conn
func (c *RedisConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)
	return c.client.Close()
}

// Insert pushes payload onto the list named destination (LPUSH adds to the head)
func (c *RedisConn) Insert(ctx context.Context, destination string, payload []byte) error {
	if err := c.client.LPush(ctx, destination, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", destination, err)
	}
	return nil
}

// Put implements Store
func (c *RedisConn) Put(ctx context.Context, key string, payload []byte) error {
	return c.client.Set(ctx, key, payload, 0).Err()
}

// Get implements Store
func (c *RedisConn) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

// Exists implements Store
func (c *RedisConn) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete implements Store
func (c *RedisConn) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Take implements Taker with GETDEL, or GET and DEL inside MULTI/EXEC
func (c *RedisConn) Take(ctx context.Context, key string) ([]byte, error) {
	if !c.txConsume {
		data, err := c.client.GetDel(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return data, err
	}

	var get *redis.StringCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return get.Bytes()
}

// Expire implements Expirer
func (c *RedisConn) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// Pop removes and returns the oldest payload queued in destination, or ErrNotFound.
// Payloads pushed by Insert are consumed in FIFO order.
func (c *RedisConn) Pop(ctx context.Context, destination string) ([]byte, error) {
	data, err := c.client.RPop(ctx, destination).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

// BPop blocks up to timeout for a payload queued in destination
func (c *RedisConn) BPop(ctx context.Context, destination string, timeout time.Duration) ([]byte, error) {
	// BRPOP returns [key, value]
	result, err := c.client.BRPop(ctx, timeout, destination).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}
	return []byte(result[1]), nil
}
