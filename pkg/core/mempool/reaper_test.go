package mempool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictExpiredRemovesOnlyStaleEntries(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	cfg.NormalTTL = time.Hour
	cfg.KeptByBlockTTL = 24 * time.Hour

	m := New(chain, cfg)

	fresh := newTx(1, 5000, 4000)
	stale := newTx(2, 5000, 4000)

	_, err := m.AddTx(fresh, false)
	require.NoError(t, err)
	_, err = m.AddTx(stale, false)
	require.NoError(t, err)

	staleID := stale.CalculateHash()
	m.mu.Lock()
	entry, _ := m.store.Get(staleID)
	entry.ReceiveTime = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	removed := m.evictExpired(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Count())
	assert.True(t, m.Contains(fresh.CalculateHash()))
	assert.False(t, m.Contains(staleID))
}

func TestEvictExpiredUsesLongerTTLForKeptByBlock(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	cfg.NormalTTL = time.Hour
	cfg.KeptByBlockTTL = 24 * time.Hour

	m := New(chain, cfg)

	tx := newTx(1, 5000, 4000)
	_, err := m.AddTx(tx, true)
	require.NoError(t, err)

	id := tx.CalculateHash()
	m.mu.Lock()
	entry, _ := m.store.Get(id)
	entry.ReceiveTime = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	removed := m.evictExpired(time.Now())

	assert.Equal(t, 0, removed)
	assert.True(t, m.Contains(id))
}
