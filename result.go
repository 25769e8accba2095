package celeryconn

import "time"

// DefaultResultPrefix is the key prefix Celery uses for result records
const DefaultResultPrefix = "celery-task-meta-"

// Task states as written by Celery workers
const (
	StatusPending = "PENDING"
	StatusStarted = "STARTED"
	StatusRetry   = "RETRY"
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
	StatusRevoked = "REVOKED"
)

// ResultKey returns the store key for the result of taskID under prefix.
// For a fixed prefix distinct task ids always map to distinct keys.
func ResultKey(prefix, taskID string) string {
	return prefix + taskID
}

// Result is a result record read from a store.
type Result struct {
	// Body is the canonical serialized form of CompleteResult
	Body []byte

	// CompleteResult is the decoded record
	CompleteResult map[string]any

	serializer Serializer
}

// Status returns the "status" field of the record, or "" when missing
func (r *Result) Status() string {
	s, _ := r.CompleteResult["status"].(string)
	return s
}

// Value returns the "result" field of the record
func (r *Result) Value() any {
	return r.CompleteResult["result"]
}

// Ready reports whether the record describes a finished task
func (r *Result) Ready() bool {
	switch r.Status() {
	case StatusSuccess, StatusFailure, StatusRevoked:
		return true
	}
	return false
}

// Decode unmarshals Body into v using the serializer the record was read with
func (r *Result) Decode(v any) error {
	s := r.serializer
	if s == nil {
		s = JSON()
	}
	return s.Unmarshal(r.Body, v)
}

// TaskResult is the result document written by Celery workers.
type TaskResult struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Result    any    `json:"result"`
	Traceback any    `json:"traceback"`
	Children  []any  `json:"children"`
	DateDone  string `json:"date_done,omitempty"`
}

// NewTaskResult returns a finished task result stamped with the current UTC time
func NewTaskResult(taskID, status string, result any) *TaskResult {
	return &TaskResult{
		TaskID:   taskID,
		Status:   status,
		Result:   result,
		Children: []any{},
		DateDone: time.Now().UTC().Format("2006-01-02T15:04:05.999999"),
	}
}
