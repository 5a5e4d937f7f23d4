package mempool

import "time"

// Tunables exposed as compile-time-parity constants (spec §6). They are
// compiled in as defaults and may be overridden per Mempool instance via
// Config, so tests can vary them without touching global state.
const (
	// DefaultMaxTxBlob is the rejection threshold for non-kept-by-block
	// transactions.
	DefaultMaxTxBlob = 64 * 1024
	// DefaultCoinbaseReservedSize is the bytes subtracted from the
	// per-block size budget for the coinbase.
	DefaultCoinbaseReservedSize = 600
	// DefaultMaxAliasPerBlock caps fresh-alias registrations per block.
	DefaultMaxAliasPerBlock = 1
	// DefaultNormalTTL is the Reaper threshold for ordinary transactions.
	DefaultNormalTTL = 86400 * time.Second
	// DefaultKeptByBlockTTL is the Reaper threshold for kept-by-block
	// transactions.
	DefaultKeptByBlockTTL = 7 * 86400 * time.Second
	// DefaultReaperInterval is the minimum bound on how often the Reaper
	// is allowed to scan.
	DefaultReaperInterval = 60 * time.Second
)

// Config collects the mempool's tunables. A zero Config is not valid;
// use DefaultConfig() and override selectively.
type Config struct {
	MaxTxBlob            uint64
	CoinbaseReservedSize uint64
	MaxAliasPerBlock     int
	NormalTTL            time.Duration
	KeptByBlockTTL       time.Duration
	ReaperInterval       time.Duration

	// StorageDir records the directory pool.bin lives in. Init and Deinit
	// take that directory as an argument and do not read this field.
	StorageDir string
}

// DefaultConfig returns the tunables used when the runtime configuration
// omits the [Mempool] table.
func DefaultConfig() Config {
	return Config{
		MaxTxBlob:            DefaultMaxTxBlob,
		CoinbaseReservedSize: DefaultCoinbaseReservedSize,
		MaxAliasPerBlock:     DefaultMaxAliasPerBlock,
		NormalTTL:            DefaultNormalTTL,
		KeptByBlockTTL:       DefaultKeptByBlockTTL,
		ReaperInterval:       DefaultReaperInterval,
	}
}
