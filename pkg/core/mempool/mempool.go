// Package mempool implements the transaction memory pool of a UTXO-style
// node: admission control, conflict tracking, the ready-to-go
// re-validation protocol, block-template assembly and on-disk
// persistence.
package mempool

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

var log = logger.WithFields(logger.Fields{"prefix": "mempool"})

// Mempool is the staging area between peer-to-peer transaction receipt and
// block inclusion. A single mutex guards PoolStore, ConflictIndexes and
// the version counter as one unit, since cross-index invariants must hold
// atomically (spec §5).
type Mempool struct {
	mu sync.Mutex

	store     *PoolStore
	index     *ConflictIndexes
	validator *Validator
	chain     ChainContext
	cfg       Config

	// version increments on every admission, take, eviction or purge, so
	// remote peers can cheaply decide whether to re-fetch the pool's
	// transaction id list.
	version uint64

	reaper *Reaper
}

// New constructs an empty mempool bound to chain. chain must outlive the
// mempool; the mempool never takes ownership of it.
func New(chain ChainContext, cfg Config) *Mempool {
	m := &Mempool{
		store:     newPoolStore(),
		index:     newConflictIndexes(),
		validator: newValidator(chain),
		chain:     chain,
		cfg:       cfg,
	}

	m.reaper = newReaper(m)

	log.WithField("max_tx_blob", cfg.MaxTxBlob).
		WithField("normal_ttl", cfg.NormalTTL).
		WithField("kept_by_block_ttl", cfg.KeptByBlockTTL).
		Info("mempool created")

	return m
}

// Lock acquires the pool mutex, allowing a caller to bracket a multi-step
// read sequence across several otherwise-locking calls. Unlock must always
// be called on every exit path.
func (m *Mempool) Lock() { m.mu.Lock() }

// Unlock releases the pool mutex acquired by Lock.
func (m *Mempool) Unlock() { m.mu.Unlock() }

// Run starts the Reaper's idle-tick goroutine. Stop with Close.
func (m *Mempool) Run() {
	m.reaper.Run()
}

// Close stops background goroutines owned by the mempool.
func (m *Mempool) Close() {
	m.reaper.Stop()
}

// AddTx runs the Validator and, on success, updates PoolStore and
// ConflictIndexes atomically (spec §4.4). Exactly one of
// VerificationContext.AddedToPool/VerificationFailed is true on return.
func (m *Mempool) AddTx(tx *transactions.Transaction, keptByBlock bool) (VerificationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := tx.CalculateHash()
	entryLog := log.WithField("txid", toHex(id[:])).WithField("kept_by_block", keptByBlock)

	if m.store.Contains(id) {
		entryLog.Info("rejected: already in pool")
		return VerificationContext{VerificationFailed: true, Err: ErrAlreadyInPool}, nil
	}

	if len(tx.Inputs) == 0 {
		entryLog.Info("rejected: coinbase-shaped transaction")
		return VerificationContext{VerificationFailed: true, Err: ErrCoinbaseNotAllowed}, nil
	}

	blobSize := tx.BlobSize()

	if err := m.validator.checkSize(blobSize, keptByBlock, m.cfg.MaxTxBlob); err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	if err := m.validator.checkInputTypes(tx); err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	in, out, err := m.validator.checkAmounts(tx)
	if err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	fee := in - out

	if err := m.validator.checkAliasAvailability(tx); err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	if err := m.validator.checkPoolConflicts(tx, keptByBlock, m.index); err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	if err := m.validator.checkFeeFloor(tx, fee, keptByBlock, m.index); err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	maxHeight, maxID, verificationImpossible, err := m.validator.checkInputsAgainstChain(tx, keptByBlock)
	if err != nil {
		entryLog.WithError(err).Info("rejected")
		return VerificationContext{VerificationFailed: true, Err: err}, nil
	}

	entry := &PoolEntry{
		ID:                 id,
		Tx:                 tx,
		BlobSize:           blobSize,
		Fee:                fee,
		KeptByBlock:        keptByBlock,
		MaxUsedBlockHeight: maxHeight,
		MaxUsedBlockID:     maxID,
		LastFailedID:       NullBlockID,
		ReceiveTime:        time.Now(),
	}

	if err := m.index.Link(id, tx, keptByBlock); err != nil {
		entryLog.WithError(err).Error("internal invariant violation while linking")
		return VerificationContext{VerificationFailed: true, Err: err}, err
	}

	m.store.Insert(entry)
	m.version++

	vc := VerificationContext{
		AddedToPool:            true,
		VerificationImpossible: verificationImpossible,
		ShouldBeRelayed:        !verificationImpossible && fee > 0,
	}

	entryLog.WithField("fee", fee).
		WithField("blob_size", blobSize).
		WithField("verification_impossible", verificationImpossible).
		Info("added to pool")

	return vc, nil
}

// TakeTx removes and returns the entry for id, e.g. because the
// transaction was just confirmed on chain. The boolean return reports
// whether id was resident.
func (m *Mempool) TakeTx(id transactions.TxID) (*PoolEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.store.Get(id)
	if !ok {
		return nil, false, nil
	}

	if err := m.index.Unlink(id, entry.Tx); err != nil {
		log.WithField("txid", toHex(id[:])).WithError(err).Error("internal invariant violation while unlinking")
		return nil, false, err
	}

	m.store.Remove(id)
	m.version++

	return entry, true, nil
}

// Contains reports whether id is currently resident.
func (m *Mempool) Contains(id transactions.TxID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Contains(id)
}

// HasKeyImages reports whether any input key image of tx is already held
// by a resident pool transaction. This checks the pool's own index, not
// the blockchain collaborator's spent set.
func (m *Mempool) HasKeyImages(tx *transactions.Transaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ki := range tx.KeyImages() {
		if m.index.HasKeyImage(ki) {
			return true
		}
	}

	return false
}

// Count returns the number of resident transactions.
func (m *Mempool) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Count()
}

// Version returns the monotonically increasing counter bumped on every
// admission, take, eviction or purge.
func (m *Mempool) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.version
}

// Snapshot returns a copy of every resident transaction, for RPC/P2P
// front-ends.
func (m *Mempool) Snapshot() []*transactions.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*transactions.Transaction, 0, m.store.Count())
	_ = m.store.Iter(func(e *PoolEntry) error {
		out = append(out, e.Tx)
		return nil
	})

	return out
}

// Ids returns the ids of every resident transaction.
func (m *Mempool) Ids() []transactions.TxID {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]transactions.TxID, 0, m.store.Count())
	_ = m.store.Iter(func(e *PoolEntry) error {
		out = append(out, e.ID)
		return nil
	})

	return out
}

// Purge empties the pool and all of its indexes, e.g. on reorg or
// shutdown.
func (m *Mempool) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Clear()
	m.index = newConflictIndexes()
	m.version++

	log.Info("pool purged")
}

// OnBlockchainInc and OnBlockchainDec are hooks reserved for future
// reorg-driven re-validation. The current protocol re-validates lazily via
// readyToGo, so these are intentionally no-ops (spec §9 open questions).
func (m *Mempool) OnBlockchainInc(newHeight uint64, topBlockID BlockID) {}
func (m *Mempool) OnBlockchainDec(newHeight uint64, topBlockID BlockID) {}

func toHex(b []byte) string {
	const hexDigits = "0123456789abcdef"

	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0f])
	}

	if len(out) > 16 {
		return string(out[:16])
	}

	return string(out)
}
