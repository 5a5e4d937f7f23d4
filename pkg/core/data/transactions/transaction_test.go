package transactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputsAndOutputsAmount(t *testing.T) {
	tx := &Transaction{
		Inputs: []Input{
			{Type: InputToKey, Amount: 100},
			{Type: InputToKey, Amount: 50},
		},
		Outputs: []Output{
			{Amount: 120},
		},
	}

	assert.Equal(t, uint64(150), tx.InputsAmount())
	assert.Equal(t, uint64(120), tx.OutputsAmount())
}

func TestHasUnsupportedInput(t *testing.T) {
	clean := &Transaction{Inputs: []Input{{Type: InputToKey}}}
	assert.False(t, clean.HasUnsupportedInput())

	dirty := &Transaction{Inputs: []Input{{Type: InputToKey}, {Type: InputUnsupported}}}
	assert.True(t, dirty.HasUnsupportedInput())
}

func TestCalculateHashIsDeterministicAndSensitiveToContent(t *testing.T) {
	a := &Transaction{Inputs: []Input{{Type: InputToKey, Amount: 1}}, Outputs: []Output{{Amount: 1}}}
	b := &Transaction{Inputs: []Input{{Type: InputToKey, Amount: 1}}, Outputs: []Output{{Amount: 1}}}
	c := &Transaction{Inputs: []Input{{Type: InputToKey, Amount: 2}}, Outputs: []Output{{Amount: 1}}}

	assert.Equal(t, a.CalculateHash(), b.CalculateHash())
	assert.NotEqual(t, a.CalculateHash(), c.CalculateHash())
}

func TestAliasNameReportsUpdateFlag(t *testing.T) {
	tx := &Transaction{Extra: Extra{Alias: &AliasRegistration{Name: "bob", IsUpdate: true}}}

	name, isUpdate, ok := tx.AliasName()
	assert.True(t, ok)
	assert.True(t, isUpdate)
	assert.Equal(t, "bob", name)

	empty := &Transaction{}
	_, _, ok = empty.AliasName()
	assert.False(t, ok)
}

func TestCancelOfferTarget(t *testing.T) {
	var target [32]byte
	target[0] = 7

	tx := &Transaction{Attachments: Attachments{CancelOffer: &CancelOffer{TargetOrderID: target}}}

	got, ok := tx.CancelOfferTarget()
	assert.True(t, ok)
	assert.Equal(t, target, got)
}

func TestKeyImageFromBytesRoundTrips(t *testing.T) {
	ki := NewKeyImageFromSeed([]byte("seed"))
	b := ki.Bytes()

	restored := KeyImageFromBytes(b)
	assert.Equal(t, b, restored.Bytes())
}

func TestMarshalUnmarshalRoundTrips(t *testing.T) {
	var target [32]byte
	target[0] = 0xAB

	original := &Transaction{
		Inputs: []Input{
			{Type: InputToKey, KeyImage: NewKeyImageFromSeed([]byte("one")), Amount: 111},
			{Type: InputToKey, KeyImage: NewKeyImageFromSeed([]byte("two")), Amount: 222},
		},
		Outputs: []Output{{Amount: 50}, {Amount: 60}},
		Extra:   Extra{Alias: &AliasRegistration{Name: "satoshi", IsUpdate: true}},
		Attachments: Attachments{
			CancelOffer: &CancelOffer{TargetOrderID: target},
		},
	}

	restored, err := Unmarshal(original.Marshal())
	require.NoError(t, err)

	assert.Equal(t, original.CalculateHash(), restored.CalculateHash())
	assert.Equal(t, original.InputsAmount(), restored.InputsAmount())
	assert.Equal(t, original.OutputsAmount(), restored.OutputsAmount())
	assert.Equal(t, original.KeyImages(), restored.KeyImages())

	name, isUpdate, ok := restored.AliasName()
	assert.True(t, ok)
	assert.True(t, isUpdate)
	assert.Equal(t, "satoshi", name)

	target2, ok := restored.CancelOfferTarget()
	assert.True(t, ok)
	assert.Equal(t, target, target2)
}

func TestSortedKeyImagesIsDeterministic(t *testing.T) {
	tx := &Transaction{
		Inputs: []Input{
			{Type: InputToKey, KeyImage: NewKeyImageFromSeed([]byte{3})},
			{Type: InputToKey, KeyImage: NewKeyImageFromSeed([]byte{1})},
			{Type: InputToKey, KeyImage: NewKeyImageFromSeed([]byte{2})},
		},
	}

	first := tx.SortedKeyImages()
	second := tx.SortedKeyImages()
	assert.Equal(t, first, second)
}
