// Package config loads the node's runtime configuration from a TOML file
// and wires up structured logging, the way the node's process entrypoint
// does it in cmd/mempoolnode.
package config

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Mempool collects the [Mempool] table of tunables, mirroring
// mempool.Config but expressed in plain types a TOML decoder can fill in
// directly (durations as seconds).
type Mempool struct {
	MaxTxBlob             uint64 `toml:"max_tx_blob"`
	CoinbaseReservedSize  uint64 `toml:"coinbase_reserved_size"`
	MaxAliasPerBlock      int    `toml:"max_alias_per_block"`
	NormalTTLSeconds      int64  `toml:"normal_ttl_seconds"`
	KeptByBlockTTLSeconds int64  `toml:"kept_by_block_ttl_seconds"`
	ReaperIntervalSeconds int64  `toml:"reaper_interval_seconds"`
	StorageDir            string `toml:"storage_dir"`
	MinFee                uint64 `toml:"min_fee"`
}

// Logger collects the [Logger] table.
type Logger struct {
	Level      string `toml:"level"`
	OutputFile string `toml:"output_file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Chain collects the [Chain] table: where the reference blockchain
// collaborator store keeps its leveldb files.
type Chain struct {
	StoreDir string `toml:"store_dir"`
}

// Config is the top-level decoded TOML document.
type Config struct {
	Mempool Mempool `toml:"Mempool"`
	Logger  Logger  `toml:"Logger"`
	Chain   Chain   `toml:"Chain"`
}

var (
	once   sync.Once
	active *Config
)

// Default returns the configuration used when no file is loaded.
func Default() *Config {
	return &Config{
		Mempool: Mempool{
			MaxTxBlob:             64 * 1024,
			CoinbaseReservedSize:  600,
			MaxAliasPerBlock:      1,
			NormalTTLSeconds:      86400,
			KeptByBlockTTLSeconds: 7 * 86400,
			ReaperIntervalSeconds: 60,
			StorageDir:            "./data/pool",
			MinFee:                1000,
		},
		Logger: Logger{
			Level:      "info",
			OutputFile: "",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Chain: Chain{
			StoreDir: "./data/chain",
		},
	}
}

// Load decodes path into a Config layered over Default(), then installs it
// as the process-wide active configuration and configures logrus
// accordingly. Call once at process startup.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: decoding %s", path)
		}
	}

	once.Do(func() {
		active = cfg
		configureLogging(cfg.Logger)
	})

	return cfg, nil
}

// Get returns the process-wide active configuration, or Default() if Load
// was never called.
func Get() *Config {
	if active == nil {
		return Default()
	}

	return active
}

// NormalTTL returns the [Mempool] TTL as a time.Duration.
func (m Mempool) NormalTTL() time.Duration {
	return time.Duration(m.NormalTTLSeconds) * time.Second
}

// KeptByBlockTTL returns the [Mempool] kept-by-block TTL as a
// time.Duration.
func (m Mempool) KeptByBlockTTL() time.Duration {
	return time.Duration(m.KeptByBlockTTLSeconds) * time.Second
}

// ReaperInterval returns the [Mempool] reaper interval as a
// time.Duration.
func (m Mempool) ReaperInterval() time.Duration {
	return time.Duration(m.ReaperIntervalSeconds) * time.Second
}

// configureLogging installs a prefixed text formatter on stdout, or a
// rotating file sink via lumberjack when OutputFile is set.
func configureLogging(cfg Logger) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&prefixed.TextFormatter{
		ForceFormatting: true,
		FullTimestamp:   true,
	})

	var out io.Writer = os.Stdout

	if cfg.OutputFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}

	logger.SetOutput(out)
}
