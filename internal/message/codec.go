package message

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Envelope is the wire form of one notified value.
type Envelope struct {
	ID     string  `cbor:"id"`
	Name   string  `cbor:"name"`
	Kind   Kind    `cbor:"kind"`
	Double float64 `cbor:"double,omitempty"`
	String string  `cbor:"string,omitempty"`
	Source string  `cbor:"source,omitempty"`
	Time   int64   `cbor:"time"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("message: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("message: CBOR decoder initialization failed: " + err.Error())
	}
}

// NewEnvelope wraps a value for publication by source.
func NewEnvelope(source, name string, v Value, at time.Time) (Envelope, error) {
	if !v.kind.Valid() {
		return Envelope{}, fmt.Errorf("envelope %q: %w", name, ErrUnknownKind)
	}
	return Envelope{
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   v.kind,
		Double: v.num,
		String: v.text,
		Source: source,
		Time:   at.UnixNano(),
	}, nil
}

// Value recovers the payload, rejecting variants outside the closed set.
func (e Envelope) Value() (Value, error) {
	switch e.Kind {
	case KindNumeric:
		return Numeric(e.Double), nil
	case KindTextual:
		return Textual(e.String), nil
	default:
		return Value{}, fmt.Errorf("envelope %q kind %d: %w", e.Name, e.Kind, ErrUnknownKind)
	}
}

// Encode marshals a value into its wire form.
func Encode(source, name string, v Value, at time.Time) ([]byte, error) {
	env, err := NewEnvelope(source, name, v, at)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(env)
}

// Decode parses a wire payload. Payloads with an unknown kind fail with ErrUnknownKind.
func Decode(data []byte) (Envelope, Value, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return Envelope{}, Value{}, fmt.Errorf("decode envelope: %w", err)
	}
	v, err := env.Value()
	if err != nil {
		return env, Value{}, err
	}
	return env, v, nil
}
