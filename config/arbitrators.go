package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"escrowchain/crypto"
)

// ArbitratorEntry is one member of the configured arbitrator pool.
type ArbitratorEntry struct {
	Address crypto.Address
	Label   string
	Active  bool
}

type arbitratorFile struct {
	Arbitrators []struct {
		Address string `yaml:"address"`
		Label   string `yaml:"label"`
		Active  *bool  `yaml:"active"`
	} `yaml:"arbitrators"`
}

const maxLabelLength = 64

// LoadArbitratorPool reads the YAML pool file. Labels are NFC-normalised so
// visually identical names compare equal; entries default to active.
func LoadArbitratorPool(path string) ([]ArbitratorEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arbitrator pool: %w", err)
	}
	var file arbitratorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse arbitrator pool: %w", err)
	}
	out := make([]ArbitratorEntry, 0, len(file.Arbitrators))
	seen := make(map[crypto.Address]struct{}, len(file.Arbitrators))
	for i, raw := range file.Arbitrators {
		addr, err := crypto.ParseAddress(raw.Address)
		if err != nil {
			return nil, fmt.Errorf("arbitrators[%d]: %w", i, err)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("arbitrators[%d]: zero address", i)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("arbitrators[%d]: duplicate address %s", i, addr)
		}
		seen[addr] = struct{}{}
		label := norm.NFC.String(strings.TrimSpace(raw.Label))
		if len([]rune(label)) > maxLabelLength {
			return nil, fmt.Errorf("arbitrators[%d]: label longer than %d characters", i, maxLabelLength)
		}
		active := true
		if raw.Active != nil {
			active = *raw.Active
		}
		out = append(out, ArbitratorEntry{Address: addr, Label: label, Active: active})
	}
	return out, nil
}
