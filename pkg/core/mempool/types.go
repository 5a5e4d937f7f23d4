package mempool

import (
	"time"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

// BlockID is a 32-byte block identifier. The all-zero value is the
// null-id sentinel meaning "never verified here" / "no recorded failure".
type BlockID [32]byte

// NullBlockID is the sentinel null block id.
var NullBlockID = BlockID{}

// IsNull reports whether id is the null-id sentinel.
func (id BlockID) IsNull() bool { return id == NullBlockID }

// PoolEntry is the record the mempool keeps for one resident transaction
// (spec §3).
type PoolEntry struct {
	ID       transactions.TxID
	Tx       *transactions.Transaction
	BlobSize uint64
	Fee      uint64

	// KeptByBlock is set when the transaction arrived bundled inside a
	// block being applied, which relaxes admission rules.
	KeptByBlock bool

	// MaxUsedBlockHeight/MaxUsedBlockID cache the tip against which
	// check_tx_inputs last succeeded. NullBlockID means "never verified
	// here".
	MaxUsedBlockHeight uint64
	MaxUsedBlockID     BlockID

	// LastFailedHeight/LastFailedID are the negative cache: the tip at
	// which the most recent check_tx_inputs rejection occurred.
	// NullBlockID means "no recorded failure".
	LastFailedHeight uint64
	LastFailedID     BlockID

	ReceiveTime time.Time
}

// age returns how long the entry has been resident as of now.
func (e *PoolEntry) age(now time.Time) time.Duration {
	return now.Sub(e.ReceiveTime)
}

// VerificationContext reports the outcome of an AddTx call (spec §4.4).
// Exactly one of AddedToPool/VerificationFailed is true.
type VerificationContext struct {
	AddedToPool            bool
	VerificationFailed     bool
	VerificationImpossible bool
	ShouldBeRelayed        bool

	// Err carries the rejection reason when VerificationFailed is true.
	Err error
}
