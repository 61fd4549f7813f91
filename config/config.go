package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "REWARDVAULT_"

type Config struct {
	DataDir          string          `toml:"DataDir" yaml:"dataDir" env:"DATA_DIR"`
	Storage          string          `toml:"Storage" yaml:"storage" env:"STORAGE"`
	OperatorKeystore string          `toml:"OperatorKeystorePath" yaml:"operatorKeystore" env:"OPERATOR_KEYSTORE"`
	Custody          string          `toml:"Custody,omitempty" yaml:"custody,omitempty" env:"CUSTODY"`
	Donation         DonationConfig  `toml:"donation" yaml:"donation" envPrefix:"DONATION_"`
	Registry         RegistryConfig  `toml:"registry" yaml:"registry" envPrefix:"REGISTRY_"`
	Gateway          GatewayConfig   `toml:"gateway" yaml:"gateway" envPrefix:"GATEWAY_"`
	Log              LogConfig       `toml:"log" yaml:"log" envPrefix:"LOG_"`
	Telemetry        TelemetryConfig `toml:"telemetry" yaml:"telemetry" envPrefix:"OTEL_"`
}

type DonationConfig struct {
	NativeDenom  string   `toml:"NativeDenom" yaml:"nativeDenom" env:"NATIVE_DENOM"`
	MinThreshold string   `toml:"MinThreshold" yaml:"minThreshold" env:"MIN_THRESHOLD"`
	TotalUnits   uint32   `toml:"TotalUnits" yaml:"totalUnits" env:"TOTAL_UNITS"`
	MetadataURI  string   `toml:"MetadataURI" yaml:"metadataUri" env:"METADATA_URI"`
	Tags         []string `toml:"Tags" yaml:"tags" env:"TAGS" envSeparator:","`
	Digest       string   `toml:"Digest" yaml:"digest" env:"DIGEST"`
	AckMemo      string   `toml:"AckMemo" yaml:"ackMemo" env:"ACK_MEMO"`
}

type RegistryConfig struct {
	Vault     string `toml:"Vault,omitempty" yaml:"vault,omitempty" env:"VAULT"`
	IssueCost string `toml:"IssueCost" yaml:"issueCost" env:"ISSUE_COST"`
}

type GatewayConfig struct {
	ListenAddress string        `toml:"ListenAddress" yaml:"listen" env:"LISTEN"`
	ReadTimeout   time.Duration `toml:"ReadTimeout" yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `toml:"WriteTimeout" yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	RatePerSecond float64       `toml:"RatePerSecond" yaml:"ratePerSecond" env:"RATE_PER_SECOND"`
	Burst         int           `toml:"Burst" yaml:"burst" env:"BURST"`
}

type LogConfig struct {
	Service    string `toml:"Service" yaml:"service" env:"SERVICE"`
	Env        string `toml:"Env" yaml:"env" env:"ENV"`
	Level      string `toml:"Level" yaml:"level" env:"LEVEL"`
	File       string `toml:"File,omitempty" yaml:"file,omitempty" env:"FILE"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays" env:"MAX_AGE_DAYS"`
}

type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint,omitempty" yaml:"endpoint,omitempty" env:"ENDPOINT"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure" env:"INSECURE"`
	Headers     string  `toml:"Headers,omitempty" yaml:"headers,omitempty" env:"HEADERS"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio" env:"SAMPLE_RATIO"`
}

// Default returns the configuration of a local single-campaign deployment.
func Default() *Config {
	return &Config{
		DataDir:          "./rewardvault-data",
		Storage:          "leveldb",
		OperatorKeystore: "operator.keystore",
		Donation: DonationConfig{
			NativeDenom:  "EGLD",
			MinThreshold: "50000000000000000",
			TotalUnits:   1000,
			MetadataURI:  "https://ipfs.io/ipfs/QmP5nJecZ9BbsVmXFs9hZ7ZGvL92AtqNdpnyquP2QF1ypd",
			Tags:         []string{"Beniamin", "Elrond", "FullMoon", "Tolkien", "WarmyDonation"},
			Digest:       "sha256",
			AckMemo:      "Here is your NFT. Multumesc !",
		},
		Registry: RegistryConfig{
			IssueCost: "50000000000000000",
		},
		Gateway: GatewayConfig{
			ListenAddress: ":8080",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			RatePerSecond: 20,
			Burst:         40,
		},
		Log: LogConfig{
			Service:    "rewardvault",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the configuration at path, creating a default file when none
// exists. YAML is used for .yaml and .yml files, TOML
// otherwise. Environment variables prefixed with REWARDVAULT_ override file
// values.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		cfg, err = decodeFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}
	if cfg.Donation.Tags == nil {
		cfg.Donation.Tags = []string{}
	}
	return cfg, nil
}

// resolvePaths anchors relative data and keystore paths at the config
// directory.
func (c *Config) resolvePaths(configPath string) {
	base := filepath.Dir(configPath)
	if c.DataDir != "" && !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(base, c.DataDir)
	}
	if c.OperatorKeystore != "" && !filepath.IsAbs(c.OperatorKeystore) {
		c.OperatorKeystore = filepath.Join(base, c.OperatorKeystore)
	}
}

// createDefault writes the default configuration to path.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := Write(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write persists cfg at path in the format implied by its extension.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return toml.NewEncoder(f).Encode(cfg)
	}
}
