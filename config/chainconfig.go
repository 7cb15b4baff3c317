// Package config loads the node's runtime configuration (spec section 6
// "Configuration"), mirroring the teacher's pkg/config.Load: a single
// explicit struct populated by viper from a YAML file with environment
// variable overrides, never read from ambient globals by the rest of the
// module.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Exit codes for the node binary (spec section 6).
const (
	ExitNormal          = 0
	ExitConfigError      = 1
	ExitStorageError     = 2
	ExitStateDivergence  = 3
)

// NetworkConfig holds the node's network-facing endpoints.
type NetworkConfig struct {
	BindAddress       string `mapstructure:"bindAddress"`
	ExternalAddress   string `mapstructure:"externalAddress"`
	CoordinatorAddress string `mapstructure:"coordinatorAddress"`
	RestPort          int    `mapstructure:"restPort"`
	WsPort            int    `mapstructure:"wsPort"`
	MinerAPIPort      int    `mapstructure:"minerApiPort"`
}

// BrokerConfig selects which shards this broker serves within its clique.
type BrokerConfig struct {
	BrokerNum uint32 `mapstructure:"brokerNum"`
	BrokerID  uint32 `mapstructure:"brokerId"`
}

// ConsensusConfig holds the PoW difficulty and confirmation parameters.
type ConsensusConfig struct {
	BlockTargetTime        time.Duration `mapstructure:"blockTargetTime"`
	NumZerosAtLeastInHash  int           `mapstructure:"numZerosAtLeastInHash"`
	BlockConfirmNum        uint64        `mapstructure:"blockConfirmNum"`
}

// MiningConfig holds local-miner parameters.
type MiningConfig struct {
	BatchDelay     time.Duration `mapstructure:"batchDelay"`
	MinerAddresses []string      `mapstructure:"minerAddresses"`
}

// WalletConfig holds the wallet service's own listen port and key storage
// directory.
type WalletConfig struct {
	Port      int    `mapstructure:"port"`
	SecretDir string `mapstructure:"secretDir"`
}

// ChainConfig is the full set of recognized options from spec section 6,
// loaded once by internal/bootstrap.Open, which passes the values its
// constructors need explicitly (for example cfg.Consensus.BlockConfirmNum
// to blockflow.New) rather than reading them from a package-level global.
type ChainConfig struct {
	Network   NetworkConfig   `mapstructure:"network"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Mining    MiningConfig    `mapstructure:"mining"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
}

// Load reads path as YAML into a ChainConfig, allowing any field to be
// overridden by an environment variable of the matching dotted key
// (network.restPort -> NETWORK.RESTPORT), matching the teacher's
// viper.AutomaticEnv()-after-ReadInConfig ordering.
func Load(path string) (*ChainConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	v.AutomaticEnv()

	var cfg ChainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
