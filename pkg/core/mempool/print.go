package mempool

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PrintPool is a diagnostic dump of every resident entry, in the short
// summary form used by logs or the full form (tx JSON included) used by an
// interactive admin command.
func (m *Mempool) PrintPool(short bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder

	now := time.Now()

	_ = m.store.Iter(func(e *PoolEntry) error {
		fmt.Fprintf(&b, "id: %x\n", e.ID)

		if !short {
			if raw, err := json.Marshal(e.Tx); err == nil {
				b.Write(raw)
				b.WriteByte('\n')
			}
		}

		fmt.Fprintf(&b, "blob_size: %d\n", e.BlobSize)
		fmt.Fprintf(&b, "fee: %d\n", e.Fee)
		fmt.Fprintf(&b, "kept_by_block: %t\n", e.KeptByBlock)
		fmt.Fprintf(&b, "max_used_block_height: %d\n", e.MaxUsedBlockHeight)
		fmt.Fprintf(&b, "max_used_block_id: %x\n", e.MaxUsedBlockID)
		fmt.Fprintf(&b, "last_failed_height: %d\n", e.LastFailedHeight)
		fmt.Fprintf(&b, "last_failed_id: %x\n", e.LastFailedID)
		fmt.Fprintf(&b, "live_time: %s\n", e.age(now))

		return nil
	})

	return b.String()
}
