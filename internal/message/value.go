package message

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind tags the variant carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumeric
	KindTextual
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindTextual:
		return "textual"
	default:
		return "invalid(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is one of the two variants exchanged with the engine.
func (k Kind) Valid() bool {
	return k == KindNumeric || k == KindTextual
}

var ErrUnknownKind = errors.New("unknown message variant")

// VariantError is returned when a caller asks a Value for a variant it does not hold.
type VariantError struct {
	Name     string
	Expected Kind
	Actual   Kind
}

func (e *VariantError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("unexpected message variant: want %s, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("unexpected message variant for %q: want %s, got %s", e.Name, e.Expected, e.Actual)
}

// Value is an immutable numeric or textual payload. The zero Value is invalid.
type Value struct {
	kind Kind
	num  float64
	text string
}

func Numeric(v float64) Value {
	return Value{kind: KindNumeric, num: v}
}

func Textual(s string) Value {
	return Value{kind: KindTextual, text: s}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNumeric() bool {
	return v.kind == KindNumeric
}

func (v Value) IsTextual() bool {
	return v.kind == KindTextual
}

// Numeric returns the numeric payload or a *VariantError.
func (v Value) Numeric() (float64, error) {
	if v.kind != KindNumeric {
		return 0, &VariantError{Expected: KindNumeric, Actual: v.kind}
	}
	return v.num, nil
}

// Textual returns the textual payload or a *VariantError.
func (v Value) Textual() (string, error) {
	if v.kind != KindTextual {
		return "", &VariantError{Expected: KindTextual, Actual: v.kind}
	}
	return v.text, nil
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumeric:
		return v.num == o.num
	case KindTextual:
		return v.text == o.text
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumeric:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindTextual:
		return strconv.Quote(v.text)
	default:
		return "<invalid>"
	}
}
