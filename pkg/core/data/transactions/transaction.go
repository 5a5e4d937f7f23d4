// Package transactions models the transaction payload the mempool stores.
//
// The mempool never inspects cryptographic material directly: ring
// signatures, stealth addressing and rangeproofs are the blockchain
// collaborator's job (see pkg/core/mempool). What lives here is the small,
// closed set of tagged variants the mempool itself needs to walk: inputs,
// outputs, the alias registration carried in extra, and the cancel-offer
// attachment.
package transactions

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sort"

	"github.com/bwesterb/go-ristretto"
)

// TxID is the 32-byte identity of a transaction.
type TxID [32]byte

// IsNull reports whether id is the all-zero sentinel.
func (id TxID) IsNull() bool { return id == TxID{} }

// KeyImage is a 32-byte identifier derived from a spent input, represented
// as a ristretto curve point the way the teacher's stealth-address code
// represents one-time output keys.
type KeyImage struct {
	point ristretto.Point
}

// NewKeyImageFromSeed derives a key image deterministically from seed bytes
// (stand-in for the real key-image derivation, which belongs to wallet/ring
// signature code outside mempool scope).
func NewKeyImageFromSeed(seed []byte) KeyImage {
	var p ristretto.Point
	p.Derive(seed)
	return KeyImage{point: p}
}

// KeyImageFromBytes reconstructs a key image from its 32-byte wire form.
func KeyImageFromBytes(b [32]byte) KeyImage {
	var p ristretto.Point
	p.SetBytes(&b)
	return KeyImage{point: p}
}

// Bytes returns the 32-byte canonical form, usable as a map key via the
// returned array.
func (k KeyImage) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.point.Bytes())
	return out
}

// InputType enumerates the input variants the mempool recognizes. Only
// InputToKey is a "recognized key-image variant" per the admission rules;
// anything else fails validation with ErrUnsupportedInput.
type InputType uint8

const (
	// InputToKey is a standard key-image-bearing input.
	InputToKey InputType = iota
	// InputUnsupported marks any input variant the validator does not know.
	InputUnsupported
)

// Input is one spent coin reference.
type Input struct {
	Type     InputType
	KeyImage KeyImage
	Amount   uint64
}

// Output is one created coin.
type Output struct {
	Amount uint64
}

// AliasRegistration is the alias entry optionally carried in a
// transaction's extra field. IsUpdate mirrors the original format's
// nonzero-signature convention: a nonzero signature marks an update to an
// existing alias rather than a fresh registration.
type AliasRegistration struct {
	Name     string
	IsUpdate bool
}

// CancelOffer revokes a previously posted trade order.
type CancelOffer struct {
	TargetOrderID [32]byte
}

// Extra carries the optional alias registration.
type Extra struct {
	Alias *AliasRegistration
}

// Attachments carries the optional cancel-offer.
type Attachments struct {
	CancelOffer *CancelOffer
}

// Transaction is the opaque-to-mempool payload. The mempool only ever
// walks it through the accessor methods below.
type Transaction struct {
	Inputs      []Input
	Outputs     []Output
	Extra       Extra
	Attachments Attachments
}

// InputsAmount returns the sum of all input amounts.
func (tx *Transaction) InputsAmount() uint64 {
	var total uint64
	for _, in := range tx.Inputs {
		total += in.Amount
	}
	return total
}

// OutputsAmount returns the sum of all output amounts.
func (tx *Transaction) OutputsAmount() uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Amount
	}
	return total
}

// HasUnsupportedInput reports whether any input is of an unrecognized
// variant.
func (tx *Transaction) HasUnsupportedInput() bool {
	for _, in := range tx.Inputs {
		if in.Type != InputToKey {
			return true
		}
	}
	return false
}

// KeyImages returns the key images consumed by this transaction's inputs.
func (tx *Transaction) KeyImages() [][32]byte {
	out := make([][32]byte, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		out = append(out, in.KeyImage.Bytes())
	}
	return out
}

// AliasName returns the non-empty alias name registered by this
// transaction, if any, and whether it is an update of an existing alias.
func (tx *Transaction) AliasName() (name string, isUpdate bool, ok bool) {
	if tx.Extra.Alias == nil || tx.Extra.Alias.Name == "" {
		return "", false, false
	}
	return tx.Extra.Alias.Name, tx.Extra.Alias.IsUpdate, true
}

// CancelOfferTarget returns the order id targeted by this transaction's
// cancel-offer attachment, if any.
func (tx *Transaction) CancelOfferTarget() (target [32]byte, ok bool) {
	if tx.Attachments.CancelOffer == nil {
		return target, false
	}
	return tx.Attachments.CancelOffer.TargetOrderID, true
}

// Marshal produces the canonical serialized form used for hashing, size
// accounting and on-disk persistence. It is a stand-in for the real wire
// codec (out of scope per spec §1) but is deterministic and round-trips
// through Unmarshal, which is all the mempool needs.
func (tx *Transaction) Marshal() []byte {
	buf := new(bytes.Buffer)

	writeUint64(buf, uint64(len(tx.Inputs)))

	for _, in := range tx.Inputs {
		buf.WriteByte(byte(in.Type))
		b := in.KeyImage.Bytes()
		buf.Write(b[:])
		writeUint64(buf, in.Amount)
	}

	writeUint64(buf, uint64(len(tx.Outputs)))

	for _, out := range tx.Outputs {
		writeUint64(buf, out.Amount)
	}

	if tx.Extra.Alias != nil {
		buf.WriteByte(1)
		writeUint64(buf, uint64(len(tx.Extra.Alias.Name)))
		buf.WriteString(tx.Extra.Alias.Name)

		if tx.Extra.Alias.IsUpdate {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	} else {
		buf.WriteByte(0)
	}

	if tx.Attachments.CancelOffer != nil {
		buf.WriteByte(1)
		buf.Write(tx.Attachments.CancelOffer.TargetOrderID[:])
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// Unmarshal parses a transaction from its canonical Marshal form. It is
// used by the Persistor (pkg/core/mempool) to restore resident
// transactions across a restart, since go-ristretto's Point keeps its
// coordinates unexported and so cannot round-trip through gob directly.
func Unmarshal(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx := &Transaction{}

	numInputs, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	tx.Inputs = make([]Input, 0, numInputs)

	for i := uint64(0); i < numInputs; i++ {
		typeByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		var raw [32]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, err
		}

		amount, err := readUint64(r)
		if err != nil {
			return nil, err
		}

		tx.Inputs = append(tx.Inputs, Input{
			Type:     InputType(typeByte),
			KeyImage: KeyImageFromBytes(raw),
			Amount:   amount,
		})
	}

	numOutputs, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	tx.Outputs = make([]Output, 0, numOutputs)

	for i := uint64(0); i < numOutputs; i++ {
		amount, err := readUint64(r)
		if err != nil {
			return nil, err
		}

		tx.Outputs = append(tx.Outputs, Output{Amount: amount})
	}

	hasAlias, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	if hasAlias == 1 {
		nameLen, err := readUint64(r)
		if err != nil {
			return nil, err
		}

		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, err
		}

		isUpdateByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		tx.Extra.Alias = &AliasRegistration{Name: string(nameBuf), IsUpdate: isUpdateByte == 1}
	}

	hasCancel, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	if hasCancel == 1 {
		var target [32]byte
		if _, err := io.ReadFull(r, target[:]); err != nil {
			return nil, err
		}

		tx.Attachments.CancelOffer = &CancelOffer{TargetOrderID: target}
	}

	return tx, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(tmp[:]), nil
}

// BlobSize returns the byte length of the canonical serialized form.
func (tx *Transaction) BlobSize() uint64 {
	return uint64(len(tx.Marshal()))
}

// CalculateHash computes the transaction id.
func (tx *Transaction) CalculateHash() TxID {
	return sha256.Sum256(tx.Marshal())
}

// SortedKeyImages returns the transaction's key images in a stable,
// deterministic order. Useful for tests that need reproducible output.
func (tx *Transaction) SortedKeyImages() [][32]byte {
	images := tx.KeyImages()
	sort.Slice(images, func(i, j int) bool {
		return bytes.Compare(images[i][:], images[j][:]) < 0
	})
	return images
}
