package mempool

import (
	"sync"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

// fakeChain is an in-memory stand-in for the blockchain collaborator,
// giving tests full control over reorgs, spent key images and the reward
// curve without touching a real store.
type fakeChain struct {
	mu sync.Mutex

	height      uint64
	blockIDs    map[uint64]BlockID
	spentKeys   map[[32]byte]struct{}
	aliases     map[string]bool
	liveOrders  map[[32]byte]bool
	minFee      uint64
	inputsOK    bool
	rewardFails bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		blockIDs:   make(map[uint64]BlockID),
		spentKeys:  make(map[[32]byte]struct{}),
		aliases:    make(map[string]bool),
		liveOrders: make(map[[32]byte]bool),
		minFee:     1000,
		inputsOK:   true,
	}
}

func (c *fakeChain) setBlockID(height uint64, id BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockIDs[height] = id
}

func (c *fakeChain) setHeight(h uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = h
}

func (c *fakeChain) spend(ki [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spentKeys[ki] = struct{}{}
}

func (c *fakeChain) setInputsOK(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputsOK = ok
}

func (c *fakeChain) CheckTxInputs(tx *transactions.Transaction) (bool, uint64, BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inputsOK {
		return false, 0, NullBlockID
	}

	for _, ki := range tx.KeyImages() {
		if _, spent := c.spentKeys[ki]; spent {
			return false, 0, NullBlockID
		}
	}

	return true, c.height, c.blockIDs[c.height]
}

func (c *fakeChain) BlockIDByHeight(height uint64) BlockID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockIDs[height]
}

func (c *fakeChain) CurrentHeight() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *fakeChain) GetBlockReward(medianSize, size, alreadyGeneratedCoins, height, posDiff uint64) (bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rewardFails || size > medianSize*2 {
		return false, 0
	}

	return true, 1_000_000
}

func (c *fakeChain) HasTxKeyImagesAsSpent(tx *transactions.Transaction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ki := range tx.KeyImages() {
		if _, spent := c.spentKeys[ki]; spent {
			return true
		}
	}

	return false
}

func (c *fakeChain) GetAliasInfo(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aliases[name]
}

func (c *fakeChain) ValidateCancelOrder(targetOrderID [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveOrders[targetOrderID]
}

func (c *fakeChain) GetCoreRuntimeConfig() RuntimeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RuntimeConfig{TxPoolMinFee: c.minFee}
}

// newTx builds a minimal valid transaction: one input of amount in, one
// output of amount out, spending a key image derived from seed.
func newTx(seed byte, in, out uint64) *transactions.Transaction {
	ki := transactions.NewKeyImageFromSeed([]byte{seed})

	return &transactions.Transaction{
		Inputs: []transactions.Input{
			{Type: transactions.InputToKey, KeyImage: ki, Amount: in},
		},
		Outputs: []transactions.Output{
			{Amount: out},
		},
	}
}
