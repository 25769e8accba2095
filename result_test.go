package celeryconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultKey(t *testing.T) {
	assert.Equal(t, "celery-task-meta-abc123", ResultKey(DefaultResultPrefix, "abc123"))
	assert.Equal(t, "results:abc123", ResultKey("results:", "abc123"))

	c := NewMemoryConnector()
	assert.Equal(t, "celery-task-meta-abc123", c.ResultKey("abc123"))

	c = NewMemoryConnector(WithResultPrefix("app-"))
	assert.Equal(t, "app-abc123", c.ResultKey("abc123"))
}

func TestResultKey_Injective(t *testing.T) {
	ids := []string{
		"abc123", "abc1234", "ABC123", "abc12", "a", "",
		"d9a4bce8-5b9a-4b53-bd0e-8f2f5c0d2d41",
		"d9a4bce8-5b9a-4b53-bd0e-8f2f5c0d2d42",
		"celery-task-meta-abc123",
	}
	for i := 0; i < 50; i++ {
		ids = append(ids, NewHeaders("t").ID())
	}

	seen := make(map[string]string)
	for _, id := range ids {
		key := ResultKey(DefaultResultPrefix, id)
		if other, dup := seen[key]; dup {
			t.Fatalf("ids %q and %q share key %q", id, other, key)
		}
		seen[key] = id
		assert.Equal(t, key, ResultKey(DefaultResultPrefix, id), "key must be stable")
	}
}

func TestResult_Accessors(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		status string
		ready  bool
	}{
		{name: "success", record: map[string]any{"status": "SUCCESS", "result": 42.0}, status: StatusSuccess, ready: true},
		{name: "failure", record: map[string]any{"status": "FAILURE"}, status: StatusFailure, ready: true},
		{name: "revoked", record: map[string]any{"status": "REVOKED"}, status: StatusRevoked, ready: true},
		{name: "started", record: map[string]any{"status": "STARTED"}, status: StatusStarted, ready: false},
		{name: "no status", record: map[string]any{}, status: "", ready: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{CompleteResult: tt.record}
			assert.Equal(t, tt.status, r.Status())
			assert.Equal(t, tt.ready, r.Ready())
			assert.Equal(t, tt.record["result"], r.Value())
		})
	}
}

func TestResult_Decode(t *testing.T) {
	r := &Result{Body: []byte(`{"task_id":"abc123","status":"SUCCESS","result":42,"traceback":null,"children":[]}`)}

	var tr TaskResult
	require.NoError(t, r.Decode(&tr))
	assert.Equal(t, "abc123", tr.TaskID)
	assert.Equal(t, StatusSuccess, tr.Status)
	assert.Equal(t, float64(42), tr.Result)
}

func TestNewTaskResult(t *testing.T) {
	tr := NewTaskResult("abc123", StatusSuccess, 42)

	assert.Equal(t, "abc123", tr.TaskID)
	assert.Equal(t, StatusSuccess, tr.Status)
	assert.Equal(t, 42, tr.Result)
	assert.NotNil(t, tr.Children)
	assert.NotEmpty(t, tr.DateDone)
}
