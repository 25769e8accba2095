package celeryconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConnector_SharesStorePerAddress(t *testing.T) {
	c := NewMemoryConnector()
	ctx := t.Context()

	producer, err := c.Connect(ctx, Details{Host: "localhost", Port: 6379})
	require.NoError(t, err)
	poller, err := c.Connect(ctx, Details{Host: "localhost", Port: 6379})
	require.NoError(t, err)
	other, err := c.Connect(ctx, Details{Host: "localhost", Port: 6379, VHost: "1"})
	require.NoError(t, err)

	require.NoError(t, c.StoreResult(ctx, producer, "abc123", map[string]any{"status": "SUCCESS"}))

	res, err := c.FetchResult(ctx, other, "abc123", 0, false)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = c.FetchResult(ctx, poller, "abc123", 0, true)
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestMemoryConnector_InvalidDetails(t *testing.T) {
	_, err := NewMemoryConnector().Connect(t.Context(), Details{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestMemoryConn_Queue(t *testing.T) {
	conn := NewMemoryConn()
	ctx := t.Context()

	require.NoError(t, conn.Insert(ctx, "celery", []byte("one")))
	require.NoError(t, conn.Insert(ctx, "celery", []byte("two")))
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, conn.Messages("celery"))

	data, err := conn.Pop(ctx, "celery")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	data, err = conn.Pop(ctx, "celery")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	_, err = conn.Pop(ctx, "celery")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, conn.Messages("celery"))
}

func TestMemoryConn_Expire(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	conn := NewMemoryConn(WithClock(func() time.Time { return now }))
	c := NewMemoryConnector()
	ctx := t.Context()

	require.NoError(t, c.StoreResult(ctx, conn, "abc123", map[string]any{"status": "SUCCESS"}))

	res, err := c.FetchResult(ctx, conn, "abc123", time.Minute, false)
	require.NoError(t, err)
	require.NotNil(t, res)

	now = now.Add(59 * time.Second)
	ready, err := c.ResultReady(ctx, conn, "abc123")
	require.NoError(t, err)
	assert.True(t, ready)

	now = now.Add(time.Second)
	res, err = c.FetchResult(ctx, conn, "abc123", 0, false)
	require.NoError(t, err)
	assert.Nil(t, res)

	removed, err := c.FinalizeResult(ctx, conn, "abc123")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryConn_PutClearsExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	conn := NewMemoryConn(WithClock(func() time.Time { return now }))
	ctx := t.Context()

	require.NoError(t, conn.Put(ctx, "k", []byte("v1")))
	require.NoError(t, conn.Expire(ctx, "k", time.Second))
	require.NoError(t, conn.Put(ctx, "k", []byte("v2")))

	now = now.Add(time.Hour)
	data, err := conn.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	require.NoError(t, conn.Expire(ctx, "missing", time.Second))
}

func TestMemoryConn_Closed(t *testing.T) {
	conn := NewMemoryConn()
	ctx := t.Context()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Close())

	assert.False(t, conn.IsConnected(ctx))
	require.ErrorIs(t, conn.Connect(ctx), ErrConnClosed)
	require.ErrorIs(t, conn.Insert(ctx, "celery", nil), ErrConnClosed)

	err := NewMemoryConnector().Publish(ctx, conn, Routing{Exchange: "celery"}, nil, Properties{}, Headers{"id": "x"})
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, ErrConnClosed)
}

func TestMemoryConn_ReturnsCopies(t *testing.T) {
	conn := NewMemoryConn()
	ctx := t.Context()

	payload := []byte("value")
	require.NoError(t, conn.Put(ctx, "k", payload))
	payload[0] = 'X'

	data, err := conn.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)

	data[0] = 'Y'
	again, err := conn.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), again)
}
