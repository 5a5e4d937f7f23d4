package mempool

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	pkgerrors "github.com/pkg/errors"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

// poolFileName is the file Persistor reads/writes within the configured
// folder (spec §6).
const poolFileName = "pool.bin"

// poolFileVersion is bumped whenever the on-disk layout changes. A
// mismatch is a soft failure: log and start empty, never a crash.
const poolFileVersion = 1

// persistedEntry is the gob-friendly mirror of PoolEntry. Tx is stored as
// its canonical Marshal bytes rather than the struct itself: KeyImage
// wraps a go-ristretto Point whose coordinates are unexported, so gob
// would silently drop them and restore a zero point.
type persistedEntry struct {
	ID                  transactions.TxID
	TxBytes             []byte
	BlobSize            uint64
	Fee                 uint64
	KeptByBlock         bool
	MaxUsedBlockHeight  uint64
	MaxUsedBlockID      BlockID
	LastFailedHeight    uint64
	LastFailedID        BlockID
	ReceiveTimeUnixNano int64
}

// persistedState is the full archive written to pool.bin: PoolStore plus
// all indexes (the indexes are fully rebuildable from the entries, so only
// the entries are serialized; Init rebuilds ConflictIndexes by replaying
// Link for each one).
type persistedState struct {
	Version int
	Entries []persistedEntry
}

// Init loads pool.bin from configFolder into the mempool, if present.
// A missing file is success (empty pool). A read or decode failure or a
// version mismatch is logged but not fatal; the pool starts empty (spec
// §4.7, §6). An entry whose transaction bytes do not parse, or that fails
// to relink into the indexes, is logged and dropped; the other entries are
// still restored.
func (m *Mempool) Init(configFolder string) error {
	path := filepath.Join(configFolder, poolFileName)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.WithField("path", path).Info("no pool state file, starting empty")
		return nil
	}

	if err != nil {
		log.WithField("path", path).WithError(err).Warn("failed to read pool state file, starting empty")
		return nil
	}

	decompressed, err := snappy.Decode(nil, raw)
	if err != nil {
		log.WithField("path", path).WithError(err).Warn("failed to decompress pool state file, starting empty")
		return nil
	}

	var state persistedState
	if err := gob.NewDecoder(bytes.NewReader(decompressed)).Decode(&state); err != nil {
		log.WithField("path", path).WithError(err).Warn("failed to decode pool state file, starting empty")
		return nil
	}

	if state.Version != poolFileVersion {
		log.WithField("path", path).
			WithField("found_version", state.Version).
			WithField("expected_version", poolFileVersion).
			Warn("pool state file version mismatch, starting empty")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	store := newPoolStore()
	index := newConflictIndexes()

	for i := range state.Entries {
		pe := &state.Entries[i]

		tx, err := transactions.Unmarshal(pe.TxBytes)
		if err != nil {
			log.WithField("txid", toHex(pe.ID[:])).WithError(err).Warn("dropping entry with unparseable transaction bytes")
			continue
		}

		entry := &PoolEntry{
			ID:                 pe.ID,
			Tx:                 tx,
			BlobSize:           pe.BlobSize,
			Fee:                pe.Fee,
			KeptByBlock:        pe.KeptByBlock,
			MaxUsedBlockHeight: pe.MaxUsedBlockHeight,
			MaxUsedBlockID:     pe.MaxUsedBlockID,
			LastFailedHeight:   pe.LastFailedHeight,
			LastFailedID:       pe.LastFailedID,
			ReceiveTime:        unixNanoToTime(pe.ReceiveTimeUnixNano),
		}

		if err := index.Link(entry.ID, entry.Tx, entry.KeptByBlock); err != nil {
			log.WithField("txid", toHex(entry.ID[:])).WithError(err).Error("dropping entry that fails to relink on restore")
			continue
		}

		store.Insert(entry)
	}

	m.store = store
	m.index = index
	m.version++

	log.WithField("count", store.Count()).Info("restored pool state")

	return nil
}

// Deinit creates configFolder if absent, then serializes the entire pool
// state atomically to pool.bin. Failure is logged and returned as a
// wrapped error; it is not fatal, and the process may proceed to exit
// regardless (spec §4.7, §7).
func (m *Mempool) Deinit(configFolder string) error {
	if err := os.MkdirAll(configFolder, 0o750); err != nil {
		log.WithField("path", configFolder).WithError(err).Warn("failed to create pool state directory")
		return pkgerrors.Wrap(err, "mempool: creating storage directory")
	}

	m.mu.Lock()
	state := persistedState{Version: poolFileVersion}
	_ = m.store.Iter(func(e *PoolEntry) error {
		state.Entries = append(state.Entries, persistedEntry{
			ID:                  e.ID,
			TxBytes:             e.Tx.Marshal(),
			BlobSize:            e.BlobSize,
			Fee:                 e.Fee,
			KeptByBlock:         e.KeptByBlock,
			MaxUsedBlockHeight:  e.MaxUsedBlockHeight,
			MaxUsedBlockID:      e.MaxUsedBlockID,
			LastFailedHeight:    e.LastFailedHeight,
			LastFailedID:        e.LastFailedID,
			ReceiveTimeUnixNano: e.ReceiveTime.UnixNano(),
		})
		return nil
	})
	m.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		log.WithError(err).Warn("failed to encode pool state, not persisting")
		return pkgerrors.Wrap(err, "mempool: encoding pool state")
	}

	compressed := snappy.Encode(nil, buf.Bytes())
	path := filepath.Join(configFolder, poolFileName)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, compressed, 0o640); err != nil {
		log.WithField("path", tmp).WithError(err).Warn("failed to write pool state file")
		return pkgerrors.Wrap(err, "mempool: writing pool state file")
	}

	if err := os.Rename(tmp, path); err != nil {
		log.WithField("path", path).WithError(err).Warn("failed to finalize pool state file")
		return pkgerrors.Wrap(err, "mempool: finalizing pool state file")
	}

	log.WithField("count", len(state.Entries)).Info("persisted pool state")

	return nil
}

// unixNanoToTime converts a stored nanosecond timestamp back into a
// time.Time, tolerating the zero value of an entry written before this
// field existed.
func unixNanoToTime(nsec int64) time.Time {
	if nsec == 0 {
		return time.Time{}
	}

	return time.Unix(0, nsec)
}
