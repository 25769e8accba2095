package main

import (
	"github.com/urfave/cli/v2"

	"github.com/openframebox/celeryconn"
)

const envPrefix = "CELERYCTL_"

// globalFlags returns the flags shared by every celeryctl command
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML file supplying defaults for any flag not given",
			EnvVars: []string{envPrefix + "CONFIG"},
		},
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "The backend driver (redis, mongodb or memory)",
			EnvVars: []string{envPrefix + "DRIVER"},
			Value:   celeryconn.DriverRedis,
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "The backend host",
			EnvVars: []string{envPrefix + "HOST"},
			Value:   "localhost",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "The backend port",
			EnvVars: []string{envPrefix + "PORT"},
			Value:   6379,
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "The backend username",
			EnvVars: []string{envPrefix + "USERNAME"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "The backend password",
			EnvVars: []string{envPrefix + "PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "vhost",
			Usage:   "The logical namespace (Redis database number or MongoDB database)",
			EnvVars: []string{envPrefix + "VHOST"},
		},
		&cli.StringFlag{
			Name:    "collection",
			Usage:   "The destination collection (MongoDB only)",
			EnvVars: []string{envPrefix + "COLLECTION"},
		},
		&cli.StringFlag{
			Name:    "result-prefix",
			Usage:   "The prefix of result keys",
			EnvVars: []string{envPrefix + "RESULT_PREFIX"},
			Value:   celeryconn.DefaultResultPrefix,
		},
		&cli.StringFlag{
			Name:    "serializer",
			Usage:   "The serializer for envelopes and results (json or cbor)",
			EnvVars: []string{envPrefix + "SERIALIZER"},
			Value:   "json",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{envPrefix + "VERBOSE"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "The log format (console or json)",
			EnvVars: []string{envPrefix + "LOG_FORMAT"},
			Value:   "console",
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "Write logs to this file with rotation instead of stderr",
			EnvVars: []string{envPrefix + "LOG_FILE"},
		},
	}
}

func publishFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "task",
			Aliases:  []string{"t"},
			Usage:    "The registered name of the task",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "The task id. A random UUID is used when empty",
		},
		&cli.StringFlag{
			Name:    "exchange",
			Aliases: []string{"e"},
			Usage:   "The destination exchange",
			Value:   "celery",
		},
		&cli.StringFlag{
			Name:  "routing-key",
			Usage: "The routing key",
			Value: "celery",
		},
		&cli.StringFlag{
			Name:  "args",
			Usage: "The positional arguments as a JSON array",
			Value: "[]",
		},
		&cli.StringFlag{
			Name:  "kwargs",
			Usage: "The keyword arguments as a JSON object",
			Value: "{}",
		},
		&cli.BoolFlag{
			Name:  "transient",
			Usage: "Publish with delivery mode 1 (not persisted)",
		},
		&cli.IntFlag{
			Name:  "priority",
			Usage: "The message priority",
		},
	}
}

func resultFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "keep",
			Usage: "Leave the result in the store instead of consuming it",
		},
		&cli.DurationFlag{
			Name:  "expire",
			Usage: "With --keep, refresh the time to live of the result on stores that support it",
		},
	}
}
