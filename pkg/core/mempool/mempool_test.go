package mempool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxTxBlob = 1024
	return cfg
}

func TestAddTxAccepted(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.AddedToPool)
	assert.False(t, vc.VerificationFailed)
	assert.True(t, vc.ShouldBeRelayed)
	assert.Equal(t, 1, m.Count())
}

func TestAddTxRejectsDoubleSpendInPool(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	txA := newTx(1, 5000, 4000)
	_, err := m.AddTx(txA, false)
	require.NoError(t, err)

	txB := newTx(1, 6000, 4500)
	vc, err := m.AddTx(txB, false)
	require.NoError(t, err)

	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrDoubleSpendInPool, vc.Err)
	assert.Equal(t, 1, m.Count())
}

func TestAddTxAllowsSecondDoubleSpendWhenKeptByBlock(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	txA := newTx(1, 5000, 4000)
	_, err := m.AddTx(txA, true)
	require.NoError(t, err)

	txB := newTx(1, 6000, 4500)
	vc, err := m.AddTx(txB, true)
	require.NoError(t, err)

	assert.True(t, vc.AddedToPool)
	assert.Equal(t, 2, m.Count())
}

func TestAddTxRejectsZeroOrNegativeFee(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	tx := newTx(1, 1000, 1000)

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrNegativeOrZeroFee, vc.Err)
}

func TestAddTxRejectsOversizeWhenNotKeptByBlock(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	m := New(chain, cfg)

	tx := newTx(1, 5000, 4000)
	for i := 0; i < 200; i++ {
		tx.Outputs = append(tx.Outputs, transactions.Output{Amount: 1})
	}
	tx.Outputs[0].Amount = 4000 - uint64(len(tx.Outputs)-1)

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrTooLarge, vc.Err)
}

// aliasNameOfLength pads a tx's serialized size to an exact byte count by
// way of the alias name, which contributes one byte per rune plus a fixed
// 9-byte header (length prefix + isUpdate flag) to Marshal's output.
func aliasNameOfLength(n int) string {
	return strings.Repeat("a", n)
}

func TestAddTxAdmitsAtExactBlobSizeBoundary(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	cfg.MaxTxBlob = 100
	m := New(chain, cfg)

	tx := newTx(1, 5000, 4000)
	tx.Extra.Alias = &transactions.AliasRegistration{Name: aliasNameOfLength(24)}
	require.Equal(t, cfg.MaxTxBlob, tx.BlobSize())

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.AddedToPool)
}

func TestAddTxRejectsOneByteOverBlobSizeBoundary(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	cfg.MaxTxBlob = 100
	m := New(chain, cfg)

	tx := newTx(1, 5000, 4000)
	tx.Extra.Alias = &transactions.AliasRegistration{Name: aliasNameOfLength(25)}
	require.Equal(t, cfg.MaxTxBlob+1, tx.BlobSize())

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrTooLarge, vc.Err)
}

func TestAddTxAdmitsAtExactFeeFloor(t *testing.T) {
	chain := newFakeChain()
	chain.minFee = 1000

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000) // fee == min_pool_fee exactly
	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.AddedToPool)
}

func TestAddTxRejectsOneBelowFeeFloor(t *testing.T) {
	chain := newFakeChain()
	chain.minFee = 1000

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4001) // fee == min_pool_fee - 1
	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrFeeTooLow, vc.Err)
}

func TestAddTxCancelOfferCarveOutAdmitsOneBelowFeeFloor(t *testing.T) {
	chain := newFakeChain()
	chain.minFee = 1000

	var target [32]byte
	target[0] = 0xEE
	chain.liveOrders[target] = true

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4001) // fee == min_pool_fee - 1, carved out by the cancel-offer
	tx.Attachments.CancelOffer = &transactions.CancelOffer{TargetOrderID: target}

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.AddedToPool)
}

func TestAddTxRejectsBelowFeeFloor(t *testing.T) {
	chain := newFakeChain()
	chain.minFee = 10_000

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4900)

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrFeeTooLow, vc.Err)
}

func TestAddTxCancelOfferCarveOutBypassesFeeFloor(t *testing.T) {
	chain := newFakeChain()
	chain.minFee = 10_000

	var target [32]byte
	target[0] = 0xAB
	chain.liveOrders[target] = true

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4900)
	tx.Attachments.CancelOffer = &transactions.CancelOffer{TargetOrderID: target}

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.AddedToPool)
}

func TestAddTxRejectsDuplicateCancelOfferTarget(t *testing.T) {
	chain := newFakeChain()

	var target [32]byte
	target[0] = 0xCD
	chain.liveOrders[target] = true

	m := New(chain, testConfig())

	txA := newTx(1, 5000, 4000)
	txA.Attachments.CancelOffer = &transactions.CancelOffer{TargetOrderID: target}
	_, err := m.AddTx(txA, false)
	require.NoError(t, err)

	txB := newTx(2, 5000, 4000)
	txB.Attachments.CancelOffer = &transactions.CancelOffer{TargetOrderID: target}
	vc, err := m.AddTx(txB, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
}

func TestAddTxRejectsAliasAlreadyOnChain(t *testing.T) {
	chain := newFakeChain()
	chain.aliases["alice"] = true

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)
	tx.Extra.Alias = &transactions.AliasRegistration{Name: "alice"}

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrAliasInBlockchain, vc.Err)
}

func TestAddTxRejectsAliasAlreadyInPool(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	txA := newTx(1, 5000, 4000)
	txA.Extra.Alias = &transactions.AliasRegistration{Name: "alice"}
	_, err := m.AddTx(txA, false)
	require.NoError(t, err)

	txB := newTx(2, 5000, 4000)
	txB.Extra.Alias = &transactions.AliasRegistration{Name: "alice"}
	vc, err := m.AddTx(txB, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrAliasInPool, vc.Err)
}

func TestAddTxKeptByBlockAdmitsDespiteInvalidInputs(t *testing.T) {
	chain := newFakeChain()
	chain.inputsOK = false

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)

	vc, err := m.AddTx(tx, true)
	require.NoError(t, err)
	assert.True(t, vc.AddedToPool)
	assert.True(t, vc.VerificationImpossible)
	assert.False(t, vc.ShouldBeRelayed)
}

func TestAddTxRejectsInvalidInputsWhenNotKeptByBlock(t *testing.T) {
	chain := newFakeChain()
	chain.inputsOK = false

	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrInputsInvalid, vc.Err)
}

func TestAddTxRejectsAlreadyInPool(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)
	_, err := m.AddTx(tx, false)
	require.NoError(t, err)

	vc, err := m.AddTx(tx, false)
	require.NoError(t, err)
	assert.True(t, vc.VerificationFailed)
	assert.Equal(t, ErrAlreadyInPool, vc.Err)
}

func TestTakeTxRemovesEntry(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)
	_, err := m.AddTx(tx, false)
	require.NoError(t, err)

	id := tx.CalculateHash()
	entry, found, err := m.TakeTx(id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, 0, m.Count())
	assert.False(t, m.Contains(id))
}

func TestVersionIncrementsOnMutation(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	v0 := m.Version()

	tx := newTx(1, 5000, 4000)
	_, err := m.AddTx(tx, false)
	require.NoError(t, err)

	assert.Greater(t, m.Version(), v0)
}

func TestPurgeEmptiesPoolAndIndexes(t *testing.T) {
	chain := newFakeChain()
	m := New(chain, testConfig())

	tx := newTx(1, 5000, 4000)
	tx.Extra.Alias = &transactions.AliasRegistration{Name: "alice"}
	_, err := m.AddTx(tx, false)
	require.NoError(t, err)

	m.Purge()

	assert.Equal(t, 0, m.Count())
	assert.False(t, m.index.HasAlias("alice"))
}
