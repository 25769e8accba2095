package celeryconn

import "go.uber.org/zap"

// Config holds the configuration of a connector. It is fixed at construction.
type Config struct {
	// ResultPrefix is prepended to task ids to form result keys.
	// Changing it orphans results stored under the previous prefix.
	ResultPrefix string

	// Serializer encodes envelopes and results
	Serializer Serializer

	// Logger receives debug and warning events
	Logger *zap.SugaredLogger

	// Metrics records operation counters, nil disables them
	Metrics *Metrics
}

// DefaultConfig returns a Config with Celery-compatible defaults
func DefaultConfig() Config {
	return Config{
		ResultPrefix: DefaultResultPrefix,
		Serializer:   JSON(),
		Logger:       zap.NewNop().Sugar(),
	}
}

// Option is a function that modifies a Config
type Option func(*Config)

// WithResultPrefix sets the result key prefix
func WithResultPrefix(prefix string) Option {
	return func(c *Config) {
		if prefix != "" {
			c.ResultPrefix = prefix
		}
	}
}

// WithSerializer sets the serializer used for envelopes and results
func WithSerializer(s Serializer) Option {
	return func(c *Config) {
		if s != nil {
			c.Serializer = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func newConfig(opts []Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}
