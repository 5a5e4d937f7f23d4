package mempool

import (
	"errors"
	"math/bits"
	"sort"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

// ErrRewardCurveMisconfigured is returned when the blockchain collaborator
// cannot compute a reward even for an empty block, which means the chain
// itself is misconfigured (spec §4.6 step 3).
var ErrRewardCurveMisconfigured = errors.New("mempool: block reward curve rejected an empty block")

// Template is the result of BuildTemplate: an ordered list of tx ids to
// include in a block, plus totals.
type Template struct {
	TxIDs     []transactions.TxID
	TotalSize uint64
	TotalFee  uint64
}

// candidate is one entry walked during template assembly.
type candidate struct {
	entry    *PoolEntry
	excluded bool
}

// feePerByteGreater reports whether a/sizeA ranks strictly above b/sizeB
// under fee-per-byte ordering, computed as fee_a*size_b vs fee_b*size_a in
// full 128-bit arithmetic to avoid truncation (spec §4.6 step 2, §9 open
// question: the tie-break must be preserved exactly).
func feePerByteGreater(feeA, sizeA, feeB, sizeB uint64) bool {
	aHi, aLo := bits.Mul64(feeA, sizeB)
	bHi, bLo := bits.Mul64(feeB, sizeA)

	if aHi != bHi {
		return aHi > bHi
	}

	return aLo > bLo
}

// BuildTemplate selects a fee-maximizing, non-conflicting subset of the
// pool that fits the block reward curve (spec §4.6). It is
// monotonic-prefix greedy: deterministic, linear, and robust to size
// overflow where naive greedy would emit an over-ceiling block.
func (m *Mempool) BuildTemplate(medianSize, alreadyGeneratedCoins, height, posDiff uint64) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]*candidate, 0, m.store.Count())
	_ = m.store.Iter(func(e *PoolEntry) error {
		candidates = append(candidates, &candidate{entry: e})
		return nil
	})

	sortCandidatesByFeePerByte(candidates)

	baseOK, baseReward := m.chain.GetBlockReward(medianSize, m.cfg.CoinbaseReservedSize, alreadyGeneratedCoins, height, posDiff)
	if !baseOK {
		return nil, ErrRewardCurveMisconfigured
	}

	var currentSize, currentFee uint64

	var aliasCount, bestPrefix int

	var bestSize, bestFee uint64

	bestMoney := baseReward
	usedKeyImages := make(map[[32]byte]struct{})

	for i, c := range candidates {
		e := c.entry

		if _, isUpdate, ok := e.Tx.AliasName(); ok && !isUpdate {
			if aliasCount >= m.cfg.MaxAliasPerBlock {
				c.excluded = true
				continue
			}
		}

		if !m.validator.readyToGo(e) || keyImagesConflict(e.Tx, usedKeyImages) {
			c.excluded = true
			continue
		}

		mergeKeyImages(e.Tx, usedKeyImages)
		currentSize += e.BlobSize
		currentFee += e.Fee

		if _, isUpdate, ok := e.Tx.AliasName(); ok && !isUpdate {
			aliasCount++
		}

		rewardOK, currentReward := m.chain.GetBlockReward(medianSize, currentSize+m.cfg.CoinbaseReservedSize, alreadyGeneratedCoins, height, posDiff)
		if !rewardOK {
			break
		}

		if currentReward+currentFee > bestMoney {
			bestMoney = currentReward + currentFee
			bestPrefix = i + 1
			bestSize = currentSize
			bestFee = currentFee
		}
	}

	ids := make([]transactions.TxID, 0, bestPrefix)
	for i := 0; i < bestPrefix; i++ {
		if !candidates[i].excluded {
			ids = append(ids, candidates[i].entry.ID)
		}
	}

	return &Template{TxIDs: ids, TotalSize: bestSize, TotalFee: bestFee}, nil
}

func sortCandidatesByFeePerByte(candidates []*candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		return feePerByteGreater(a.Fee, a.BlobSize, b.Fee, b.BlobSize)
	})
}

func keyImagesConflict(tx *transactions.Transaction, used map[[32]byte]struct{}) bool {
	for _, ki := range tx.KeyImages() {
		if _, ok := used[ki]; ok {
			return true
		}
	}

	return false
}

func mergeKeyImages(tx *transactions.Transaction, used map[[32]byte]struct{}) {
	for _, ki := range tx.KeyImages() {
		used[ki] = struct{}{}
	}
}
