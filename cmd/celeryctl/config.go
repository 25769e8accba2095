package main

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/openframebox/celeryconn"
)

// Config holds all configuration for celeryctl
type Config struct {
	// Application settings
	Verbose   bool
	LogFormat string
	LogFile   string

	// Backend settings
	Driver       string
	Details      celeryconn.Details
	ResultPrefix string
	Serializer   string
}

// fileKeys maps flag names to keys of the YAML config file
var fileKeys = map[string]string{
	"driver":        "driver",
	"host":          "host",
	"port":          "port",
	"username":      "username",
	"password":      "password",
	"vhost":         "vhost",
	"collection":    "collection",
	"result-prefix": "result_prefix",
	"serializer":    "serializer",
	"verbose":       "log.verbose",
	"log-format":    "log.format",
	"log-file":      "log.file",
}

// loadFile reads the YAML config file at path. An empty path yields an empty config.
func loadFile(path string) (*viper.Viper, error) {
	v := viper.New()
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return v, nil
}

// source resolves a setting from the command line first, then the config file,
// then the flag default
type source struct {
	c *cli.Context
	v *viper.Viper
}

func (s source) fromFile(name string) bool {
	return !s.c.IsSet(name) && s.v.IsSet(fileKeys[name])
}

func (s source) String(name string) string {
	if s.fromFile(name) {
		return s.v.GetString(fileKeys[name])
	}
	return s.c.String(name)
}

func (s source) Int(name string) int {
	if s.fromFile(name) {
		return s.v.GetInt(fileKeys[name])
	}
	return s.c.Int(name)
}

func (s source) Bool(name string) bool {
	if s.fromFile(name) {
		return s.v.GetBool(fileKeys[name])
	}
	return s.c.Bool(name)
}

// buildConfig builds a Config from CLI flags and the optional config file
func buildConfig(c *cli.Context) (*Config, error) {
	v, err := loadFile(c.String("config"))
	if err != nil {
		return nil, err
	}
	s := source{c: c, v: v}

	cfg := &Config{
		Verbose:   s.Bool("verbose"),
		LogFormat: s.String("log-format"),
		LogFile:   s.String("log-file"),
		Driver:    s.String("driver"),
		Details: celeryconn.Details{
			Host:       s.String("host"),
			Port:       s.Int("port"),
			Username:   s.String("username"),
			Password:   s.String("password"),
			VHost:      s.String("vhost"),
			Collection: s.String("collection"),
		},
		ResultPrefix: s.String("result-prefix"),
		Serializer:   s.String("serializer"),
	}

	switch cfg.Driver {
	case celeryconn.DriverRedis, celeryconn.DriverMongo, celeryconn.DriverMemory:
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", celeryconn.ErrConfiguration, cfg.Driver)
	}

	return cfg, nil
}

// serializer returns the configured serializer
func (c *Config) serializer() (celeryconn.Serializer, error) {
	switch c.Serializer {
	case "", "json":
		return celeryconn.JSON(), nil
	case "cbor":
		return celeryconn.CBOR()
	default:
		return nil, fmt.Errorf("%w: unknown serializer %q", celeryconn.ErrConfiguration, c.Serializer)
	}
}
