// Package config provides a reusable loader for ledgercore node
// configuration files and environment variables, grounded on the
// teacher's pkg/config loader (same viper-based shape, generalized
// from network/VM/storage-prune settings to node identity, validator
// keys, consensus parameters, storage path, and logging level).
package config

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"ledgercore/pkg/utils"
)

// Config is the unified configuration for a ledgercore node.
type Config struct {
	Node struct {
		Name           string `mapstructure:"name" json:"name"`
		ServiceKeyHex  string `mapstructure:"service_key_hex" json:"service_key_hex"`
		ListenAddr     string `mapstructure:"listen_addr" json:"listen_addr"`
		HTTPAddr       string `mapstructure:"http_addr" json:"http_addr"`
		MetricsAddr    string `mapstructure:"metrics_addr" json:"metrics_addr"`
	} `mapstructure:"node" json:"node"`

	Validators []ValidatorEntry `mapstructure:"validators" json:"validators"`

	Consensus struct {
		RoundTimeoutMS  uint32 `mapstructure:"round_timeout_ms" json:"round_timeout_ms"`
		MaxTxsPerBlock  uint32 `mapstructure:"max_txs_per_block" json:"max_txs_per_block"`
		StatusTimeoutMS uint32 `mapstructure:"status_timeout_ms" json:"status_timeout_ms"`
	} `mapstructure:"consensus" json:"consensus"`

	Storage struct {
		Engine string `mapstructure:"engine" json:"engine"` // "badger" or "memory"
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// ValidatorEntry is one genesis validator's hex-encoded key pair.
type ValidatorEntry struct {
	ConsensusKeyHex string `mapstructure:"consensus_key_hex" json:"consensus_key_hex"`
	ServiceKeyHex   string `mapstructure:"service_key_hex" json:"service_key_hex"`
}

// ConsensusKeyBytes decodes the entry's hex-encoded consensus public key.
func (v ValidatorEntry) ConsensusKeyBytes() ([]byte, error) {
	return hex.DecodeString(v.ConsensusKeyHex)
}

// ServiceKeyBytes decodes the entry's hex-encoded service public key.
func (v ValidatorEntry) ServiceKeyBytes() ([]byte, error) {
	return hex.DecodeString(v.ServiceKeyHex)
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. env selects an additional file (e.g. "dev", "prod") merged
// over "default"; an empty env loads only the default file.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
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
	if AppConfig.Node.Name == "" {
		AppConfig.Node.Name = uuid.New().String()
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LEDGERCORE_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LEDGERCORE_ENV", ""))
}
