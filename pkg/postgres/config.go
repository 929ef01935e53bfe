package postgres

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds PostgreSQL connection settings.
type ClientConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// WithDSN sets the libpq connection string.
func WithDSN(dsn string) ClientOption {
	return func(c *ClientConfig) {
		c.DSN = dsn
	}
}

// WithMaxConnections sets max open and idle connections.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		if maxOpen > 0 {
			c.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			c.MaxIdleConns = maxIdle
		}
	}
}

// WithConnLifetime sets max lifetime and idle time of pooled connections.
func WithConnLifetime(lifetime, idle time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
		if idle > 0 {
			c.ConnMaxIdleTime = idle
		}
	}
}
