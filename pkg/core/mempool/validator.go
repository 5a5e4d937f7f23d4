package mempool

import (
	"errors"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

// ErrCancelOrderInPool is returned when a non-kept-by-block transaction's
// cancel-offer targets an order already claimed by a resident transaction.
var ErrCancelOrderInPool = errors.New("mempool: cancel-offer target already claimed in pool")

// Validator holds the stateless admission checks and the ready-to-go
// re-validation protocol (spec §4.3). It carries no mutable state of its
// own; all mutation happens on the PoolEntry the caller passes in, under
// the pool lock the Mempool already holds.
type Validator struct {
	chain ChainContext
}

func newValidator(chain ChainContext) *Validator {
	return &Validator{chain: chain}
}

// checkSize enforces MAX_TX_BLOB on non-kept-by-block transactions.
func (v *Validator) checkSize(blobSize uint64, keptByBlock bool, maxTxBlob uint64) error {
	if !keptByBlock && blobSize > maxTxBlob {
		return ErrTooLarge
	}

	return nil
}

// checkInputTypes requires every input to be the recognized key-image
// variant.
func (v *Validator) checkInputTypes(tx *transactions.Transaction) error {
	if tx.HasUnsupportedInput() {
		return ErrUnsupportedInput
	}

	return nil
}

// checkAmounts computes in/out and rejects non-positive fees.
func (v *Validator) checkAmounts(tx *transactions.Transaction) (in, out uint64, err error) {
	in = tx.InputsAmount()
	out = tx.OutputsAmount()

	if out >= in {
		return in, out, ErrNegativeOrZeroFee
	}

	return in, out, nil
}

// checkAliasAvailability enforces spec §4.3 step 4's on-chain half: an
// alias already registered on the blockchain always rejects, regardless of
// keptByBlock. The pool-local half (an alias already claimed by a resident
// transaction) is checkPoolConflicts' job.
func (v *Validator) checkAliasAvailability(tx *transactions.Transaction) error {
	name, isUpdate, ok := tx.AliasName()
	if !ok || isUpdate {
		return nil
	}

	if v.chain.GetAliasInfo(name) {
		return ErrAliasInBlockchain
	}

	return nil
}

// checkPoolConflicts enforces spec §4.3 steps 4 (pool-local half) and 5:
// an alias already claimed by a resident transaction, or a key image
// already held by one, both skipped for kept-by-block transactions. A
// cancel-offer target already claimed by a resident transaction is also
// rejected for non-kept-by-block transactions.
// idx.HasConflict gates the common conflict-free case with a single pass
// over both indexes; only a genuine conflict pays for the second pass that
// attributes it to the right sentinel error.
func (v *Validator) checkPoolConflicts(tx *transactions.Transaction, keptByBlock bool, idx *ConflictIndexes) error {
	if target, ok := tx.CancelOfferTarget(); ok && !keptByBlock && idx.HasCancelOrder(target) {
		return ErrCancelOrderInPool
	}

	if !idx.HasConflict(tx, keptByBlock) {
		return nil
	}

	for _, ki := range tx.KeyImages() {
		if idx.HasKeyImage(ki) {
			return ErrDoubleSpendInPool
		}
	}

	if name, isUpdate, ok := tx.AliasName(); ok && !isUpdate && idx.HasAlias(name) {
		return ErrAliasInPool
	}

	return nil
}

// checkCancelOrderCarveOut implements spec §4.3.1: a cancel-offer
// transaction is admitted below the fee floor iff it carries exactly one
// cancel-offer targeting a currently-live order not already claimed in the
// pool.
func (v *Validator) checkCancelOrderCarveOut(tx *transactions.Transaction, idx *ConflictIndexes) bool {
	target, ok := tx.CancelOfferTarget()
	if !ok {
		return false
	}

	if idx.HasCancelOrder(target) {
		return false
	}

	return v.chain.ValidateCancelOrder(target)
}

// checkFeeFloor enforces spec §4.3 step 6, skipped for kept-by-block
// transactions.
func (v *Validator) checkFeeFloor(tx *transactions.Transaction, fee uint64, keptByBlock bool, idx *ConflictIndexes) error {
	if keptByBlock {
		return nil
	}

	minFee := v.chain.GetCoreRuntimeConfig().TxPoolMinFee
	if fee >= minFee {
		return nil
	}

	if v.checkCancelOrderCarveOut(tx, idx) {
		return nil
	}

	return ErrFeeTooLow
}

// checkInputsAgainstChain implements spec §4.3 step 7. On success it
// returns the cached (maxUsedHeight, maxUsedID). On failure with
// keptByBlock=true, the caller still admits the entry with
// verificationImpossible=true and a null max-used id; on failure with
// keptByBlock=false, it returns ErrInputsInvalid.
func (v *Validator) checkInputsAgainstChain(tx *transactions.Transaction, keptByBlock bool) (maxHeight uint64, maxID BlockID, verificationImpossible bool, err error) {
	ok, height, id := v.chain.CheckTxInputs(tx)
	if ok {
		return height, id, false, nil
	}

	if keptByBlock {
		return 0, NullBlockID, true, nil
	}

	return 0, NullBlockID, false, ErrInputsInvalid
}

// readyToGo implements spec §4.3.2: the re-validation protocol invoked by
// TemplateBuilder for each candidate entry. It may mutate e's negative
// cache and verification cache fields; the caller must already hold the
// pool lock.
func (v *Validator) readyToGo(e *PoolEntry) bool {
	height := v.chain.CurrentHeight()

	if e.MaxUsedBlockID.IsNull() {
		if !e.LastFailedID.IsNull() && height > e.LastFailedHeight && v.chain.BlockIDByHeight(e.LastFailedHeight) == e.LastFailedID {
			return false
		}

		ok, maxHeight, maxID := v.chain.CheckTxInputs(e.Tx)
		if !ok {
			v.recordFailure(e, height)
			return false
		}

		e.MaxUsedBlockHeight = maxHeight
		e.MaxUsedBlockID = maxID
	} else {
		if e.MaxUsedBlockHeight >= height {
			return false
		}

		if v.chain.BlockIDByHeight(e.MaxUsedBlockHeight) != e.MaxUsedBlockID {
			if !e.LastFailedID.IsNull() && v.chain.BlockIDByHeight(e.LastFailedHeight) == e.LastFailedID {
				return false
			}

			ok, maxHeight, maxID := v.chain.CheckTxInputs(e.Tx)
			if !ok {
				v.recordFailure(e, height)
				return false
			}

			e.MaxUsedBlockHeight = maxHeight
			e.MaxUsedBlockID = maxID
		}
	}

	return !v.chain.HasTxKeyImagesAsSpent(e.Tx)
}

func (v *Validator) recordFailure(e *PoolEntry, height uint64) {
	e.LastFailedHeight = height - 1
	e.LastFailedID = v.chain.BlockIDByHeight(height - 1)
}
