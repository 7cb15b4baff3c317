package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shardflow/flownode/core/primitives"
)

// GenesisConfig carries the parameters a fresh chain is bootstrapped with:
// the shard grid's group count, the starting PoW difficulty, and the
// genesis timestamp — supplied externally via a companion YAML file the
// same way the teacher's LedgerConfig.GenesisBlock is populated from its
// own config file rather than hardcoded.
type GenesisConfig struct {
	GroupCount       uint32 `yaml:"groupCount"`
	InitialTarget    uint32 `yaml:"initialTarget"`
	GenesisTimestamp int64  `yaml:"genesisTimestamp"`
}

// Target decodes InitialTarget's compact uint32 encoding.
func (g GenesisConfig) Target() primitives.Target {
	return primitives.TargetFromUint32(g.InitialTarget)
}

// LoadGenesis reads path as YAML into a GenesisConfig.
func LoadGenesis(path string) (*GenesisConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read genesis file %s: %w", path, err)
	}
	var g GenesisConfig
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("config: parse genesis file %s: %w", path, err)
	}
	if g.GroupCount == 0 {
		return nil, fmt.Errorf("config: genesis file %s: groupCount must be positive", path)
	}
	return &g, nil
}
