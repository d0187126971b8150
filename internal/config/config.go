// Package config loads the layered YAML + environment configuration for an
// Aurum storage node.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/aurumnet/aurum-node/internal/utils"
)

// Config is the unified configuration for an Aurum node. It mirrors the
// YAML files under cmd/node/config.
type Config struct {
	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		Local          bool     `mapstructure:"local" json:"local"`
		RootDir        string   `mapstructure:"root_dir" json:"root_dir"`
	} `mapstructure:"network" json:"network"`

	Payment struct {
		Network            string `mapstructure:"network" json:"network"` // "arbitrum-one" | "custom"
		RPCURL             string `mapstructure:"rpc_url" json:"rpc_url"`
		PaymentTokenAddr   string `mapstructure:"payment_token_addr" json:"payment_token_addr"`
		DataPaymentsAddr   string `mapstructure:"data_payments_addr" json:"data_payments_addr"`
		RewardAddressHex   string `mapstructure:"reward_address" json:"reward_address"`
		QuoteTTLSeconds    uint64 `mapstructure:"quote_ttl_seconds" json:"quote_ttl_seconds"`
		RequestTimeoutSecs int    `mapstructure:"request_timeout_secs" json:"request_timeout_secs"`
	} `mapstructure:"payment" json:"payment"`

	Tunables struct {
		PeriodicReplicationIntervalMaxSecs uint64 `mapstructure:"periodic_replication_interval_max_secs" json:"periodic_replication_interval_max_secs"`
		StoreChallengeIntervalMaxSecs      uint64 `mapstructure:"store_challenge_interval_max_secs" json:"store_challenge_interval_max_secs"`
		UptimeMetricsUpdateIntervalSecs    uint64 `mapstructure:"uptime_metrics_update_interval_secs" json:"uptime_metrics_update_interval_secs"`
		IrrelevantRecordsCleanupSecs       uint64 `mapstructure:"irrelevant_records_cleanup_secs" json:"irrelevant_records_cleanup_secs"`
		CloseGroupSize                     int    `mapstructure:"close_group_size" json:"close_group_size"`
		ChallengeSkipThreshold             int    `mapstructure:"challenge_skip_threshold" json:"challenge_skip_threshold"`
	} `mapstructure:"tunables" json:"tunables"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Default returns a Config populated with the node's built-in defaults,
// matching spec.md's Tunables table.
func Default() Config {
	var c Config
	c.Network.ListenAddr = "/ip4/0.0.0.0/tcp/0"
	c.Network.DiscoveryTag = "aurum-node"
	c.Network.RootDir = "./aurum-data"
	c.Payment.Network = "arbitrum-one"
	c.Payment.QuoteTTLSeconds = 3600
	c.Payment.RequestTimeoutSecs = 30
	c.Tunables.PeriodicReplicationIntervalMaxSecs = 180
	c.Tunables.StoreChallengeIntervalMaxSecs = 7200
	c.Tunables.UptimeMetricsUpdateIntervalSecs = 10
	c.Tunables.IrrelevantRecordsCleanupSecs = 3600
	c.Tunables.CloseGroupSize = 5
	c.Tunables.ChallengeSkipThreshold = 50
	c.Logging.Level = "info"
	return c
}

// Load reads configuration files and merges any environment-specific
// overrides on top of the built-in defaults. The resulting configuration is
// stored in AppConfig and returned.
func Load(env string) (*Config, error) {
	AppConfig = Default()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/node/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the AURUM_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("AURUM_ENV", ""))
}

// RequestTimeout returns the configured request timeout as a
// time.Duration, defaulting to 30s per spec.md §5. cmd/node passes it to
// the node as the per-peer request timeout of its Network handle; the
// payment verifier's RPC calls do not use it.
func (c *Config) RequestTimeout() time.Duration {
	if c.Payment.RequestTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Payment.RequestTimeoutSecs) * time.Second
}
