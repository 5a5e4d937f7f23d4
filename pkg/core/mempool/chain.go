package mempool

import "github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"

// RuntimeConfig is the subset of chain-wide runtime tunables the mempool
// consults (spec §6, get_core_runtime_config).
type RuntimeConfig struct {
	TxPoolMinFee uint64
}

// ChainContext is the non-owning handle to "the blockchain" (spec §6). It
// is consulted while the pool mutex is held, so implementations must be
// reentrant with respect to the mempool lock and must never call back into
// the mempool.
type ChainContext interface {
	// CheckTxInputs verifies ring signatures and input references. On
	// success it returns the maximum height/block-id referenced by the
	// transaction's inputs.
	CheckTxInputs(tx *transactions.Transaction) (ok bool, maxUsedHeight uint64, maxUsedID BlockID)

	// BlockIDByHeight performs a deterministic chain lookup.
	BlockIDByHeight(height uint64) BlockID

	// CurrentHeight returns the current chain height. Monotonically
	// non-decreasing except across a reorg.
	CurrentHeight() uint64

	// GetBlockReward evaluates the consensus reward curve. It fails when
	// size exceeds the permitted ceiling.
	GetBlockReward(medianSize, size, alreadyGeneratedCoins, height, posDiff uint64) (ok bool, reward uint64)

	// HasTxKeyImagesAsSpent reports whether any input key image of tx is
	// already spent on-chain.
	HasTxKeyImagesAsSpent(tx *transactions.Transaction) bool

	// GetAliasInfo reports whether name is registered on-chain.
	GetAliasInfo(name string) bool

	// ValidateCancelOrder reports whether the cancel targets a live
	// order.
	ValidateCancelOrder(targetOrderID [32]byte) bool

	// GetCoreRuntimeConfig returns the runtime-tunable fee floor and
	// related parameters.
	GetCoreRuntimeConfig() RuntimeConfig
}
