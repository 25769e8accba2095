// Command celeryctl publishes Celery tasks and inspects their results from the
// command line, using any backend driver of the celeryconn package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/openframebox/celeryconn"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "celeryctl",
		Usage:     "Publish Celery tasks and fetch their results",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "publish",
				Usage:  "Publish a task and print its id",
				Flags:  publishFlags(),
				Action: withSession(publish),
			},
			{
				Name:      "result",
				Usage:     "Print the result of a task, or PENDING when it is not available yet",
				ArgsUsage: "TASK_ID",
				Flags:     resultFlags(),
				Action:    withSession(result),
			},
			{
				Name:      "ready",
				Usage:     "Print whether a result is stored for a task without consuming it",
				ArgsUsage: "TASK_ID",
				Action:    withSession(ready),
			},
			{
				Name:      "forget",
				Usage:     "Remove the result of a task and print whether it existed",
				ArgsUsage: "TASK_ID",
				Action:    withSession(forget),
			},
		},
	}
}

// session bundles what every command needs to talk to the backend
type session struct {
	backend celeryconn.Backend
	conn    celeryconn.Conn
	log     *zap.SugaredLogger
	out     io.Writer
}

type action func(ctx context.Context, c *cli.Context, s *session) error

// withSession builds the config, logger, backend and connection before
// running fn, and releases them afterwards
func withSession(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := buildConfig(c)
		if err != nil {
			return err
		}

		logger := newLogger(cfg)
		defer func() { _ = logger.Sync() }()
		sugar := logger.Sugar()

		backend, err := newBackend(cfg, sugar)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := backend.Connect(ctx, cfg.Details)
		if err != nil {
			return fmt.Errorf("failed to connect to %s backend at %s: %w", cfg.Driver, cfg.Details.Addr(), err)
		}
		defer func() {
			if err := conn.Close(); err != nil {
				sugar.Warnw("failed to close connection", "error", err)
			}
		}()

		return fn(ctx, c, &session{backend: backend, conn: conn, log: sugar, out: c.App.Writer})
	}
}

// newBackend creates the connector selected by cfg.Driver
func newBackend(cfg *Config, log *zap.SugaredLogger) (celeryconn.Backend, error) {
	s, err := cfg.serializer()
	if err != nil {
		return nil, err
	}

	opts := []celeryconn.Option{
		celeryconn.WithLogger(log),
		celeryconn.WithResultPrefix(cfg.ResultPrefix),
		celeryconn.WithSerializer(s),
	}

	switch cfg.Driver {
	case celeryconn.DriverRedis:
		return celeryconn.NewRedisConnector(opts...), nil
	case celeryconn.DriverMongo:
		return celeryconn.NewMongoConnector(opts...), nil
	case celeryconn.DriverMemory:
		return celeryconn.NewMemoryConnector(opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", celeryconn.ErrConfiguration, cfg.Driver)
	}
}

func publish(ctx context.Context, c *cli.Context, s *session) error {
	var args []any
	if err := json.Unmarshal([]byte(c.String("args")), &args); err != nil {
		return fmt.Errorf("invalid --args: %w", err)
	}
	var kwargs map[string]any
	if err := json.Unmarshal([]byte(c.String("kwargs")), &kwargs); err != nil {
		return fmt.Errorf("invalid --kwargs: %w", err)
	}

	task := c.String("task")
	headers := celeryconn.NewHeaders(task)
	if id := c.String("id"); id != "" {
		headers["id"] = id
	}

	body := map[string]any{
		"id":     headers.ID(),
		"task":   task,
		"args":   args,
		"kwargs": kwargs,
	}

	props := celeryconn.Properties{Priority: c.Int("priority")}
	if c.Bool("transient") {
		props.DeliveryMode = celeryconn.DeliveryMode(celeryconn.DeliveryModeTransient)
	}

	routing := celeryconn.Routing{Exchange: c.String("exchange"), RoutingKey: c.String("routing-key")}
	if err := s.backend.Publish(ctx, s.conn, routing, body, props, headers); err != nil {
		return err
	}

	s.log.Infow("published task", "task", task, "task_id", headers.ID(), "exchange", routing.Exchange)
	_, err := fmt.Fprintln(s.out, headers.ID())
	return err
}

func taskIDArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("%w: TASK_ID argument is required", celeryconn.ErrMissingTaskID)
	}
	return id, nil
}

func result(ctx context.Context, c *cli.Context, s *session) error {
	id, err := taskIDArg(c)
	if err != nil {
		return err
	}

	res, err := s.backend.FetchResult(ctx, s.conn, id, c.Duration("expire"), !c.Bool("keep"))
	if err != nil {
		return err
	}
	if res == nil {
		_, err = fmt.Fprintln(s.out, celeryconn.StatusPending)
		return err
	}

	// Results are always printed as JSON, whatever the store serializer
	out, err := json.Marshal(res.CompleteResult)
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	_, err = fmt.Fprintln(s.out, string(out))
	return err
}

func ready(ctx context.Context, c *cli.Context, s *session) error {
	id, err := taskIDArg(c)
	if err != nil {
		return err
	}

	ok, err := s.backend.ResultReady(ctx, s.conn, id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, ok)
	return err
}

func forget(ctx context.Context, c *cli.Context, s *session) error {
	id, err := taskIDArg(c)
	if err != nil {
		return err
	}

	removed, err := s.backend.FinalizeResult(ctx, s.conn, id)
	if err != nil {
		return err
	}
	if !removed {
		s.log.Debugw("no result to forget", "task_id", id)
	}
	_, err = fmt.Fprintln(s.out, removed)
	return err
}
