package message

import (
	"errors"
	"sort"
)

// Batch maps message names to values. A name appears at most once.
type Batch map[string]Value

// Clone returns an independent copy. A nil batch clones to an empty one.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Names returns the batch keys in sorted order.
func (b Batch) Names() []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NumericOf looks up name and returns its numeric payload. The bool is false
// when the name is absent; a present value of the other variant yields a
// *VariantError naming the message.
func (b Batch) NumericOf(name string) (float64, bool, error) {
	v, ok := b[name]
	if !ok {
		return 0, false, nil
	}
	n, err := v.Numeric()
	if err != nil {
		return 0, true, named(err, name)
	}
	return n, true, nil
}

// TextualOf is the textual counterpart of NumericOf.
func (b Batch) TextualOf(name string) (string, bool, error) {
	v, ok := b[name]
	if !ok {
		return "", false, nil
	}
	s, err := v.Textual()
	if err != nil {
		return "", true, named(err, name)
	}
	return s, true, nil
}

func named(err error, name string) error {
	var ve *VariantError
	if errors.As(err, &ve) {
		cp := *ve
		cp.Name = name
		return &cp
	}
	return err
}
