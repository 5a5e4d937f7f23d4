package mempool

import "time"

// Reaper evicts transactions that have outlived their per-category TTL
// (spec §4.5). It runs on an idle tick bounded below by
// Config.ReaperInterval.
type Reaper struct {
	pool *Mempool
	stop chan struct{}
	done chan struct{}

	// now is overridable in tests so TTL expiry can be simulated without
	// sleeping.
	now func() time.Time
}

func newReaper(pool *Mempool) *Reaper {
	return &Reaper{
		pool: pool,
		stop: make(chan struct{}),
		now:  time.Now,
	}
}

// Run starts the idle-tick goroutine. Safe to call once per Reaper.
func (r *Reaper) Run() {
	r.done = make(chan struct{})

	interval := r.pool.cfg.ReaperInterval
	if interval <= 0 {
		interval = DefaultReaperInterval
	}

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Tick()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the idle-tick goroutine and waits for it to exit.
func (r *Reaper) Stop() {
	if r.done == nil {
		return
	}

	close(r.stop)
	<-r.done
}

// Tick performs one eviction scan and returns the number of entries
// evicted.
func (r *Reaper) Tick() int {
	return r.pool.evictExpired(r.now())
}

// evictExpired walks every resident entry and removes those older than
// their category's TTL. Eviction unlinks the conflict indexes before
// removing the store entry, per spec §4.5.
func (m *Mempool) evictExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*PoolEntry

	_ = m.store.Iter(func(e *PoolEntry) error {
		age := e.age(now)

		if (!e.KeptByBlock && age > m.cfg.NormalTTL) || (e.KeptByBlock && age > m.cfg.KeptByBlockTTL) {
			expired = append(expired, e)
		}

		return nil
	})

	evicted := 0

	for _, e := range expired {
		if err := m.index.Unlink(e.ID, e.Tx); err != nil {
			log.WithField("txid", toHex(e.ID[:])).WithError(err).Error("internal invariant violation while reaping")
			continue
		}

		m.store.Remove(e.ID)
		evicted++
		log.WithField("txid", toHex(e.ID[:])).WithField("age", now.Sub(e.ReceiveTime)).Info("evicted: outdated")
	}

	if evicted > 0 {
		m.version++
	}

	return evicted
}
