package celeryconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_ContentType(t *testing.T) {
	assert.Equal(t, "application/json", JSON().ContentType())
	assert.Equal(t, "application/cbor", mustCBOR(t).ContentType())
}

func TestCBOR_NestedMapsUseStringKeys(t *testing.T) {
	s := mustCBOR(t)
	data, err := s.Marshal(map[string]any{"status": "SUCCESS", "result": map[string]any{"sum": 3}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, s.Unmarshal(data, &out))
	nested, ok := out["result"].(map[string]any)
	require.True(t, ok, "nested map has type %T", out["result"])
	assert.EqualValues(t, 3, nested["sum"])
}

func TestCBOR_Connector(t *testing.T) {
	s := mustCBOR(t)
	c := NewMemoryConnector(WithSerializer(s))
	conn := NewMemoryConn()
	ctx := t.Context()

	require.NoError(t, c.Publish(ctx, conn, Routing{Exchange: "celery"}, []byte{1, 2, 3}, Properties{}, Headers{"id": "abc123"}))

	data, err := conn.Pop(ctx, "celery")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, s.Unmarshal(data, &env))
	assert.Equal(t, "application/cbor", env.ContentType)
	assert.Equal(t, "abc123", env.Properties.DeliveryTag)
	assert.Equal(t, []byte{1, 2, 3}, env.Body)

	require.NoError(t, c.StoreResult(ctx, conn, "abc123", NewTaskResult("abc123", StatusSuccess, 42)))

	res, err := c.FetchResult(ctx, conn, "abc123", 0, true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StatusSuccess, res.Status())

	var tr TaskResult
	require.NoError(t, res.Decode(&tr))
	assert.Equal(t, "abc123", tr.TaskID)
	assert.EqualValues(t, 42, tr.Result)
}
