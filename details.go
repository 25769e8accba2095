package celeryconn

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Details describe how to reach a backend store.
type Details struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// VHost is the logical namespace: the database index for Redis,
	// the database name for MongoDB
	VHost string `mapstructure:"vhost" yaml:"vhost"`

	// Collection is the destination collection for document stores
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// Validate checks the fields every driver needs. All problems are reported at once.
func (d Details) Validate() error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if d.Port <= 0 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", d.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Addr returns host:port
func (d Details) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// HasCredentials reports whether both username and password are set
func (d Details) HasCredentials() bool {
	return d.Username != "" && d.Password != ""
}
