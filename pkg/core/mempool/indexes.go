package mempool

import (
	"fmt"

	"github.com/libcoin-project/libcoin-go/pkg/core/data/transactions"
)

// ConflictIndexes holds the secondary indexes the mempool maintains
// alongside PoolStore: key-image ownership, alias refcounts and the
// cancel-order dedup set (spec §4.1).
type ConflictIndexes struct {
	keyImages    map[[32]byte]map[transactions.TxID]struct{}
	aliases      map[string]int
	cancelOrders map[[32]byte]struct{}
}

func newConflictIndexes() *ConflictIndexes {
	return &ConflictIndexes{
		keyImages:    make(map[[32]byte]map[transactions.TxID]struct{}),
		aliases:      make(map[string]int),
		cancelOrders: make(map[[32]byte]struct{}),
	}
}

// HasConflict reports whether tx would collide with a transaction already
// resident in the pool on either of the two rejection-grade axes:
// key-image reuse or a duplicate fresh alias registration. Kept-by-block
// transactions are exempt from both, matching Link's invariant that only
// kept-by-block entries may share a key image. A cancel-offer target
// already claimed is not checked here; checkPoolConflicts rejects that
// case itself.
func (c *ConflictIndexes) HasConflict(tx *transactions.Transaction, keptByBlock bool) bool {
	if keptByBlock {
		return false
	}

	for _, ki := range tx.KeyImages() {
		if c.HasKeyImage(ki) {
			return true
		}
	}

	if name, isUpdate, ok := tx.AliasName(); ok && !isUpdate && c.HasAlias(name) {
		return true
	}

	return false
}

// Link registers id's key images, alias and cancel-offer target. A
// key-image set may hold more than one id only when every holder is
// kept-by-block; violating that is an internal invariant failure, since
// the Validator must have caught the double-spend first.
func (c *ConflictIndexes) Link(id transactions.TxID, tx *transactions.Transaction, keptByBlock bool) error {
	for _, ki := range tx.KeyImages() {
		holders, ok := c.keyImages[ki]
		if !ok {
			holders = make(map[transactions.TxID]struct{})
			c.keyImages[ki] = holders
		}

		if len(holders) > 0 && !keptByBlock {
			return &InternalInvariantViolation{Msg: fmt.Sprintf("key image %x already held while linking non-kept-by-block tx %x", ki, id)}
		}

		holders[id] = struct{}{}
	}

	if name, isUpdate, ok := tx.AliasName(); ok && !isUpdate {
		c.aliases[name]++
	}

	if target, ok := tx.CancelOfferTarget(); ok {
		c.cancelOrders[target] = struct{}{}
	}

	return nil
}

// Unlink is the exact inverse of Link.
func (c *ConflictIndexes) Unlink(id transactions.TxID, tx *transactions.Transaction) error {
	for _, ki := range tx.KeyImages() {
		holders, ok := c.keyImages[ki]
		if !ok {
			return &InternalInvariantViolation{Msg: fmt.Sprintf("unlink: key image %x has no index entry", ki)}
		}

		if _, held := holders[id]; !held {
			return &InternalInvariantViolation{Msg: fmt.Sprintf("unlink: tx %x not found in key image %x holder set", id, ki)}
		}

		delete(holders, id)

		if len(holders) == 0 {
			delete(c.keyImages, ki)
		}
	}

	if name, isUpdate, ok := tx.AliasName(); ok && !isUpdate {
		count, exists := c.aliases[name]
		if !exists || count <= 0 {
			return &InternalInvariantViolation{Msg: fmt.Sprintf("unlink: alias %q has no index entry", name)}
		}

		if count == 1 {
			delete(c.aliases, name)
		} else {
			c.aliases[name] = count - 1
		}
	}

	if target, ok := tx.CancelOfferTarget(); ok {
		if _, exists := c.cancelOrders[target]; !exists {
			return &InternalInvariantViolation{Msg: fmt.Sprintf("unlink: cancel order %x has no index entry", target)}
		}

		delete(c.cancelOrders, target)
	}

	return nil
}

// HasKeyImage reports whether ki is currently held by any resident
// transaction.
func (c *ConflictIndexes) HasKeyImage(ki [32]byte) bool {
	holders, ok := c.keyImages[ki]
	return ok && len(holders) > 0
}

// HasAlias reports whether name is currently registered by a resident
// transaction.
func (c *ConflictIndexes) HasAlias(name string) bool {
	count, ok := c.aliases[name]
	return ok && count > 0
}

// HasCancelOrder reports whether target is already claimed by a resident
// cancel-offer.
func (c *ConflictIndexes) HasCancelOrder(target [32]byte) bool {
	_, ok := c.cancelOrders[target]
	return ok
}
