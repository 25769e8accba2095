package celeryconn

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvelope_Scenario(t *testing.T) {
	routing := Routing{Exchange: "celery", RoutingKey: "celery"}
	body := map[string]any{"x": 1}
	headers := Headers{"id": "abc123"}

	env, err := BuildEnvelope("application/json", routing, body, Properties{}, headers)
	require.NoError(t, err)

	assert.Equal(t, "application/json", env.ContentType)
	assert.Equal(t, ContentEncodingBinary, env.ContentEncoding)
	assert.Equal(t, DeliveryModePersistent, env.Properties.DeliveryMode)
	assert.Equal(t, "abc123", env.Properties.DeliveryTag)
	assert.Equal(t, "abc123", env.Properties.ReplyTo)
	assert.Equal(t, DeliveryInfo{Priority: 0, RoutingKey: "celery", Exchange: "celery"}, env.Properties.DeliveryInfo)
	assert.Equal(t, headers, env.Headers)
	assert.Equal(t, body, env.Body)
}

func TestBuildEnvelope_IdentifiersAgree(t *testing.T) {
	for i := 0; i < 20; i++ {
		headers := NewHeaders("tasks.add")
		env, err := BuildEnvelope("application/json", Routing{Exchange: "celery"}, nil, Properties{}, headers)
		require.NoError(t, err)

		assert.Equal(t, headers.ID(), env.Properties.ReplyTo)
		assert.Equal(t, headers.ID(), env.Properties.DeliveryTag)
		assert.Equal(t, headers.ID(), env.Headers.ID())
	}
}

func TestBuildEnvelope_DeliveryMode(t *testing.T) {
	tests := []struct {
		name     string
		props    Properties
		expected int
	}{
		{name: "unset defaults to persistent", props: Properties{}, expected: 2},
		{name: "transient", props: Properties{DeliveryMode: DeliveryMode(1)}, expected: 1},
		{name: "persistent", props: Properties{DeliveryMode: DeliveryMode(2)}, expected: 2},
		{name: "explicit zero is kept", props: Properties{DeliveryMode: DeliveryMode(0)}, expected: 0},
		{name: "caller chosen value is kept", props: Properties{DeliveryMode: DeliveryMode(7)}, expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := BuildEnvelope("application/json", Routing{Exchange: "celery"}, nil, tt.props, Headers{"id": "t"})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, env.Properties.DeliveryMode)
		})
	}
}

func TestBuildEnvelope_Priority(t *testing.T) {
	env, err := BuildEnvelope("application/json", Routing{Exchange: "celery"}, nil, Properties{Priority: 9}, Headers{"id": "t"})
	require.NoError(t, err)
	assert.Equal(t, 9, env.Properties.DeliveryInfo.Priority)
}

func TestBuildEnvelope_MissingID(t *testing.T) {
	tests := []struct {
		name    string
		headers Headers
	}{
		{name: "nil headers", headers: nil},
		{name: "no id", headers: Headers{"task": "tasks.add"}},
		{name: "empty id", headers: Headers{"id": ""}},
		{name: "non-string id", headers: Headers{"id": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildEnvelope("application/json", Routing{Exchange: "celery"}, nil, Properties{}, tt.headers)
			require.ErrorIs(t, err, ErrMissingTaskID)
		})
	}
}

func TestBuildEnvelope_CopiesHeaders(t *testing.T) {
	headers := Headers{"id": "abc123", "lang": "go"}
	env, err := BuildEnvelope("application/json", Routing{Exchange: "celery"}, nil, Properties{}, headers)
	require.NoError(t, err)

	headers["lang"] = "py"
	headers["extra"] = true

	assert.Equal(t, "go", env.Headers["lang"])
	assert.NotContains(t, env.Headers, "extra")
}

func TestBuildEnvelope_Deterministic(t *testing.T) {
	serializers := map[string]Serializer{"json": JSON(), "cbor": mustCBOR(t)}

	for name, s := range serializers {
		t.Run(name, func(t *testing.T) {
			build := func() []byte {
				env, err := BuildEnvelope(s.ContentType(),
					Routing{Exchange: "celery", RoutingKey: "default"},
					map[string]any{"args": []any{1, 2}, "kwargs": map[string]any{"b": 2, "a": 1}},
					Properties{Priority: 3},
					Headers{"id": "abc123", "task": "tasks.add", "retries": 0, "eta": nil},
				)
				require.NoError(t, err)
				data, err := s.Marshal(env)
				require.NoError(t, err)
				return data
			}

			first := build()
			for i := 0; i < 10; i++ {
				require.Equal(t, first, build())
			}
		})
	}
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := BuildEnvelope("application/json",
		Routing{Exchange: "celery", RoutingKey: "rk"},
		map[string]any{"x": 1},
		Properties{},
		Headers{"id": "abc123", "task": "tasks.add"},
	)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "application/json", wire["content-type"])
	assert.Equal(t, "binary", wire["content-encoding"])
	assert.Equal(t, map[string]any{"x": float64(1)}, wire["body"])
	assert.Equal(t, map[string]any{"id": "abc123", "task": "tasks.add"}, wire["headers"])
	assert.Equal(t, map[string]any{
		"reply_to": "abc123",
		"delivery_info": map[string]any{
			"priority":    float64(0),
			"routing_key": "rk",
			"exchange":    "celery",
		},
		"delivery_mode": float64(2),
		"delivery_tag":  "abc123",
	}, wire["properties"])
}

func TestNewHeaders(t *testing.T) {
	h := NewHeaders("tasks.add")

	assert.Equal(t, "tasks.add", h["task"])
	_, err := uuid.Parse(h.ID())
	require.NoError(t, err)
	assert.NotEqual(t, h.ID(), NewHeaders("tasks.add").ID())
}

func mustCBOR(t *testing.T) Serializer {
	t.Helper()
	s, err := CBOR()
	require.NoError(t, err)
	return s
}
