// Package celeryconn publishes Celery task envelopes to pluggable backend
// stores and reads task results back from them.
//
// Every driver (MemoryConnector, RedisConnector, MongoConnector) shares the
// same envelope format, result key scheme and consume-on-read semantics; only
// the primitive store operations differ.
package celeryconn

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// protocol implements the store-independent part of the Connector contract.
// Drivers embed it and add their own Connect.
type protocol struct {
	driver string
	config Config
}

func newProtocol(driver string, opts []Option) protocol {
	return protocol{
		driver: driver,
		config: newConfig(opts),
	}
}

// Config returns the configuration the connector was built with
func (p protocol) Config() Config {
	return p.config
}

// ResultKey returns the store key for the result of taskID
func (p protocol) ResultKey(taskID string) string {
	return ResultKey(p.config.ResultPrefix, taskID)
}

// EnsureConnected returns conn unchanged if it is already connected,
// otherwise it performs the handshake.
func (p protocol) EnsureConnected(ctx context.Context, conn Conn) (Conn, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection handle", ErrConnection)
	}
	if conn.IsConnected(ctx) {
		return conn, nil
	}
	if err := conn.Connect(ctx); err != nil {
		if errors.Is(err, ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return conn, nil
}

// Publish wraps body in an envelope and inserts it into routing.Exchange.
func (p protocol) Publish(ctx context.Context, conn Conn, routing Routing, body any, props Properties, headers Headers) (err error) {
	start := time.Now()
	defer func() { p.config.Metrics.observePublish(p.driver, err, start) }()

	conn, err = p.EnsureConnected(ctx, conn)
	if err != nil {
		return err
	}

	if routing.Exchange == "" {
		return fmt.Errorf("%w: exchange is required", ErrPublish)
	}

	env, err := BuildEnvelope(p.config.Serializer.ContentType(), routing, body, props, headers)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	data, err := p.config.Serializer.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: failed to serialize envelope: %w", ErrPublish, err)
	}

	if err := conn.Insert(ctx, routing.Exchange, data); err != nil {
		p.config.Logger.Warnw("failed to publish task",
			"driver", p.driver, "task_id", env.Properties.DeliveryTag, "exchange", routing.Exchange, "error", err)
		return fmt.Errorf("%w: failed to insert into %s: %w", ErrPublish, routing.Exchange, err)
	}

	p.config.Logger.Debugw("published task",
		"driver", p.driver,
		"task_id", env.Properties.DeliveryTag,
		"exchange", routing.Exchange,
		"routing_key", routing.RoutingKey,
		"delivery_mode", env.Properties.DeliveryMode,
	)
	return nil
}

// FetchResult returns the result stored for taskID. A nil result with a nil
// error means no result is available yet. When remove is true the record is
// consumed: with a store that implements Taker the read and the removal are a
// single atomic operation, so concurrent pollers receive the record at most once.
// A positive expire refreshes the time to live of a retained record on stores
// that implement Expirer and is ignored by the others.
func (p protocol) FetchResult(ctx context.Context, conn Conn, taskID string, expire time.Duration, remove bool) (*Result, error) {
	start := time.Now()
	if taskID == "" {
		p.config.Metrics.observeFetch(p.driver, OutcomeError, start)
		return nil, ErrMissingTaskID
	}

	conn, err := p.EnsureConnected(ctx, conn)
	if err != nil {
		p.config.Metrics.observeFetch(p.driver, OutcomeError, start)
		return nil, err
	}

	key := p.ResultKey(taskID)
	taker, atomic := conn.(Taker)

	var data []byte
	if remove && atomic {
		data, err = taker.Take(ctx, key)
	} else {
		data, err = conn.Get(ctx, key)
	}
	if errors.Is(err, ErrNotFound) || (err == nil && len(data) == 0) {
		p.config.Metrics.observeFetch(p.driver, OutcomeAbsent, start)
		p.config.Logger.Debugw("result not ready", "driver", p.driver, "task_id", taskID, "key", key)
		return nil, nil
	}
	if err != nil {
		p.config.Metrics.observeFetch(p.driver, OutcomeError, start)
		p.config.Logger.Warnw("failed to read result", "driver", p.driver, "key", key, "error", err)
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConnection, key, err)
	}

	result, err := p.decodeResult(data)
	if err != nil {
		p.config.Metrics.observeFetch(p.driver, OutcomeError, start)
		return nil, fmt.Errorf("%w: %s: %w", ErrResultDecode, key, err)
	}

	switch {
	case remove && !atomic:
		if _, err := p.FinalizeResult(ctx, conn, taskID); err != nil {
			p.config.Metrics.observeFetch(p.driver, OutcomeError, start)
			return nil, err
		}
	case !remove && expire > 0:
		if expirer, ok := conn.(Expirer); ok {
			if err := expirer.Expire(ctx, key, expire); err != nil {
				p.config.Metrics.observeFetch(p.driver, OutcomeError, start)
				return nil, fmt.Errorf("%w: failed to set expiry on %s: %w", ErrConnection, key, err)
			}
		}
	}

	p.config.Metrics.observeFetch(p.driver, OutcomeFound, start)
	p.config.Logger.Debugw("fetched result",
		"driver", p.driver, "task_id", taskID, "key", key, "removed", remove, "status", result.Status())
	return result, nil
}

func (p protocol) decodeResult(data []byte) (*Result, error) {
	var complete map[string]any
	if err := p.config.Serializer.Unmarshal(data, &complete); err != nil {
		return nil, err
	}
	if complete == nil {
		return nil, errors.New("record is not a map")
	}

	body, err := p.config.Serializer.Marshal(complete)
	if err != nil {
		return nil, err
	}

	return &Result{
		Body:           body,
		CompleteResult: complete,
		serializer:     p.config.Serializer,
	}, nil
}

// FinalizeResult removes the result of taskID and reports whether it existed.
// Removing an already absent result is not an error. The store's delete
// reports how many records it removed, so of several concurrent callers at
// most one sees true.
func (p protocol) FinalizeResult(ctx context.Context, conn Conn, taskID string) (bool, error) {
	start := time.Now()
	if taskID == "" {
		p.config.Metrics.observeFinalize(p.driver, OutcomeError, start)
		return false, ErrMissingTaskID
	}

	conn, err := p.EnsureConnected(ctx, conn)
	if err != nil {
		p.config.Metrics.observeFinalize(p.driver, OutcomeError, start)
		return false, err
	}

	key := p.ResultKey(taskID)
	removed, err := conn.Delete(ctx, key)
	if err != nil {
		p.config.Metrics.observeFinalize(p.driver, OutcomeError, start)
		return false, fmt.Errorf("%w: failed to delete %s: %w", ErrConnection, key, err)
	}

	outcome := OutcomeAbsent
	if removed {
		outcome = OutcomeRemoved
	}
	p.config.Metrics.observeFinalize(p.driver, outcome, start)
	p.config.Logger.Debugw("finalized result", "driver", p.driver, "task_id", taskID, "removed", removed)
	return removed, nil
}

// ResultReady reports whether a result is stored for taskID without consuming it.
func (p protocol) ResultReady(ctx context.Context, conn Conn, taskID string) (bool, error) {
	if taskID == "" {
		return false, ErrMissingTaskID
	}

	conn, err := p.EnsureConnected(ctx, conn)
	if err != nil {
		return false, err
	}

	key := p.ResultKey(taskID)
	ok, err := conn.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check %s: %w", ErrConnection, key, err)
	}
	return ok, nil
}

// StoreResult serializes result and writes it under the result key of taskID,
// the way a worker records a finished task.
func (p protocol) StoreResult(ctx context.Context, conn Conn, taskID string, result any) error {
	if taskID == "" {
		return ErrMissingTaskID
	}

	conn, err := p.EnsureConnected(ctx, conn)
	if err != nil {
		return err
	}

	data, err := p.config.Serializer.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	key := p.ResultKey(taskID)
	if err := conn.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: failed to store %s: %w", ErrConnection, key, err)
	}

	p.config.Logger.Debugw("stored result", "driver", p.driver, "task_id", taskID, "key", key)
	return nil
}
