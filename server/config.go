// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"time"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Addr            string        // TCP bind address, e.g. "localhost:9999"
	AdminAddr       string        // admin HTTP bind address, empty = disabled
	RecordSize      int           // fixed wire size of every record, id included
	MaxClients      int           // exclusive bound of assigned client ids
	IdleTimeout     time.Duration // max wait for a client's next record, 0 = none
	ShutdownTimeout time.Duration // graceful shutdown budget used by the CLI
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "localhost:9999",
		RecordSize:      64,
		MaxClients:      16,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := protocol.NewCodec(c.RecordSize); err != nil {
		return err
	}
	if c.MaxClients < 2 {
		return fmt.Errorf("%w: max clients must be at least 2, got %d", api.ErrInvalidConfig, c.MaxClients)
	}
	if c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: negative duration", api.ErrInvalidConfig)
	}
	return nil
}
