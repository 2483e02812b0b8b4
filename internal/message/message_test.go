package message

import (
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	n := Numeric(3)
	got, err := n.Numeric()
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.True(t, n.IsNumeric())

	_, err = n.Textual()
	var ve *VariantError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindTextual, ve.Expected)
	assert.Equal(t, KindNumeric, ve.Actual)

	s := Textual("hello")
	txt, err := s.Textual()
	require.NoError(t, err)
	assert.Equal(t, "hello", txt)
	_, err = s.Numeric()
	require.ErrorAs(t, err, &ve)
}

func TestZeroValueIsInvalid(t *testing.T) {
	var v Value
	assert.Equal(t, KindInvalid, v.Kind())
	assert.False(t, v.Kind().Valid())
	_, err := v.Numeric()
	assert.Error(t, err)
	_, err = v.Textual()
	assert.Error(t, err)
}

func TestBatchNumericOfNamesTheMessage(t *testing.T) {
	b := Batch{"Double": Textual("oops"), "Speed": Numeric(1.5)}

	v, ok, err := b.NumericOf("Speed")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok, err = b.NumericOf("Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = b.NumericOf("Double")
	assert.True(t, ok)
	var ve *VariantError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Double", ve.Name)
	assert.Contains(t, err.Error(), `"Double"`)
}

func TestBatchCloneIsIndependent(t *testing.T) {
	b := Batch{"A": Numeric(1)}
	c := b.Clone()
	c["B"] = Numeric(2)
	assert.Len(t, b, 1)
	assert.Len(t, Batch(nil).Clone(), 0)
	assert.Equal(t, []string{"A", "B"}, c.Names())
}

func TestEncodeDecode(t *testing.T) {
	at := time.Unix(100, 0)
	for _, v := range []Value{Numeric(-2.25), Textual("status ok"), Textual("")} {
		data, err := Encode("simple", "X", v, at)
		require.NoError(t, err)
		env, got, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, v.Equal(got), "want %s got %s", v, got)
		assert.Equal(t, "X", env.Name)
		assert.Equal(t, "simple", env.Source)
		assert.NotEmpty(t, env.ID)
	}
}

func TestEncodeRejectsInvalidValue(t *testing.T) {
	_, err := Encode("simple", "X", Value{}, time.Now())
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestDecodeRejectsThirdVariant(t *testing.T) {
	data, err := cbor.Marshal(Envelope{Name: "X", Kind: Kind(7)})
	require.NoError(t, err)
	env, _, err := Decode(data)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "X", env.Name)

	_, _, err = Decode([]byte{0xff, 0x00})
	assert.Error(t, err)
}
