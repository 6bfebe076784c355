package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for internal consistency. Secrets are
// not required here since they may arrive through the environment.
func (c *Config) Validate() error {
	switch strings.TrimSpace(c.Storage.Backend) {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.RPC.ListenAddress) == "" {
		return fmt.Errorf("rpc: ListenAddress required")
	}
	if c.RPC.MaxConnections < 0 {
		return fmt.Errorf("rpc: MaxConnections must not be negative")
	}
	if c.RPC.CommitRatePerMinute < 0 || c.RPC.CommitBurst < 0 {
		return fmt.Errorf("rpc: commit rate limits must not be negative")
	}
	if c.RPC.CommitRatePerMinute > 0 && c.RPC.CommitBurst == 0 {
		return fmt.Errorf("rpc: CommitBurst must be positive when a commit rate is set")
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	custody, err := c.CustodyAddress()
	if err != nil {
		return err
	}
	shares, err := c.Shares()
	if err != nil {
		return err
	}
	for _, share := range shares {
		if share.Recipient == custody {
			return fmt.Errorf("fees: share %q pays the custody account", share.Name)
		}
	}
	allocations, err := c.Allocations()
	if err != nil {
		return err
	}
	for _, alloc := range allocations {
		if alloc.Address == custody {
			return fmt.Errorf("genesis: cannot allocate to the custody account")
		}
	}
	return nil
}
