// File: client/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"fmt"
	"time"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/protocol"
)

// Supported values of Config.Network.
const (
	NetworkTCP = "tcp"
	NetworkWS  = "ws"
)

// Config holds session parameters.
type Config struct {
	Host        string        // server host name or address
	Port        string        // server port or service name
	Network     string        // "tcp" (default) or "ws"
	WSPath      string        // WebSocket path when Network is "ws"
	MaxClients  int           // exclusive bound of valid client ids
	RecordSize  int           // fixed wire size of every record, id included
	RetryDelay  time.Duration // pause between failed send attempts
	DialTimeout time.Duration // per connection attempt, 0 = unbounded
	IOTimeout   time.Duration // per send/recv call, 0 = unbounded
}

// DefaultConfig returns sensible defaults matching the reference server.
func DefaultConfig() *Config {
	return &Config{
		Host:        "localhost",
		Port:        "9999",
		Network:     NetworkTCP,
		MaxClients:  16,
		RecordSize:  64,
		RetryDelay:  10 * time.Millisecond,
		DialTimeout: 5 * time.Second,
	}
}

// validate checks the configuration. needTarget is false when the caller
// supplies its own transport.
func (c *Config) validate(needTarget bool) error {
	if c.MaxClients <= 0 {
		return fmt.Errorf("%w: max clients must be positive, got %d", api.ErrInvalidConfig, c.MaxClients)
	}
	if _, err := protocol.NewCodec(c.RecordSize); err != nil {
		return err
	}
	if c.RetryDelay < 0 || c.DialTimeout < 0 || c.IOTimeout < 0 {
		return fmt.Errorf("%w: negative duration", api.ErrInvalidConfig)
	}
	if !needTarget {
		return nil
	}
	if c.Host == "" || c.Port == "" {
		return fmt.Errorf("%w: server host and port are required", api.ErrInvalidConfig)
	}
	switch c.Network {
	case "", NetworkTCP, NetworkWS:
	default:
		return fmt.Errorf("%w: unknown network %q", api.ErrInvalidConfig, c.Network)
	}
	return nil
}
