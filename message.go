package celeryconn

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

const (
	// DeliveryModeTransient asks the broker not to write the message to disk
	DeliveryModeTransient = 1

	// DeliveryModePersistent allows the broker to write the message to disk
	DeliveryModePersistent = 2

	// ContentEncodingBinary is the only content encoding emitted in envelopes
	ContentEncodingBinary = "binary"
)

// Routing addresses a published task.
type Routing struct {
	// Exchange is the logical destination name (queue, list or collection)
	Exchange string

	// RoutingKey is carried in delivery_info for brokers that route on it
	RoutingKey string
}

// Properties holds AMQP-style message properties supplied by the caller.
type Properties struct {
	// DeliveryMode is used verbatim when set, DeliveryModePersistent otherwise
	DeliveryMode *int

	// Priority is copied into delivery_info
	Priority int
}

// DeliveryMode returns a pointer to mode, for use in Properties
func DeliveryMode(mode int) *int {
	return &mode
}

// Headers are the caller-supplied task headers. They must carry the task id under "id".
type Headers map[string]any

// NewHeaders returns headers for the named task with a freshly generated id
func NewHeaders(task string) Headers {
	return Headers{
		"id":   uuid.NewString(),
		"task": task,
	}
}

// ID returns the task identifier carried in the headers, or "" when absent
func (h Headers) ID() string {
	id, _ := h["id"].(string)
	return id
}

// Envelope is the canonical message published to a store.
type Envelope struct {
	ContentType     string             `json:"content-type"`
	ContentEncoding string             `json:"content-encoding"`
	Properties      EnvelopeProperties `json:"properties"`
	Headers         Headers            `json:"headers"`
	Body            any                `json:"body"`
}

// EnvelopeProperties are the resolved delivery properties of an envelope.
type EnvelopeProperties struct {
	ReplyTo      string       `json:"reply_to"`
	DeliveryInfo DeliveryInfo `json:"delivery_info"`
	DeliveryMode int          `json:"delivery_mode"`
	DeliveryTag  string       `json:"delivery_tag"`
}

// DeliveryInfo carries routing metadata.
type DeliveryInfo struct {
	Priority   int    `json:"priority"`
	RoutingKey string `json:"routing_key"`
	Exchange   string `json:"exchange"`
}

// BuildEnvelope wraps body into an envelope. It has no hidden state: identical
// inputs always produce identical envelopes. The headers are copied so later
// changes by the caller do not leak into the envelope.
func BuildEnvelope(contentType string, routing Routing, body any, props Properties, headers Headers) (Envelope, error) {
	taskID := headers.ID()
	if taskID == "" {
		return Envelope{}, fmt.Errorf("%w: headers must contain a non-empty string id", ErrMissingTaskID)
	}

	return Envelope{
		ContentType:     contentType,
		ContentEncoding: ContentEncodingBinary,
		Properties: EnvelopeProperties{
			ReplyTo: taskID,
			DeliveryInfo: DeliveryInfo{
				Priority:   props.Priority,
				RoutingKey: routing.RoutingKey,
				Exchange:   routing.Exchange,
			},
			DeliveryMode: resolveDeliveryMode(props),
			DeliveryTag:  taskID,
		},
		Headers: maps.Clone(headers),
		Body:    body,
	}, nil
}

// resolveDeliveryMode returns the explicit delivery mode, or persistent.
// See https://docs.celeryq.dev/en/stable/userguide/optimizing.html#using-transient-queues
func resolveDeliveryMode(props Properties) int {
	if props.DeliveryMode != nil {
		return *props.DeliveryMode
	}
	return DeliveryModePersistent
}
