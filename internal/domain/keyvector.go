package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxKeyCount bounds the number of key/value pairs in a key vector.
const MaxKeyCount = 32

// hex digits per pair in a key vector string
const pairStringLength = 16

type KeyValuePair struct {
	Key   uint32 `json:"key"`
	Value uint32 `json:"value"`
}

type KeyVector []KeyValuePair

type TreeDirection int

const (
	Left TreeDirection = iota
	Right
	Equal
)

func (d TreeDirection) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "equal"
	}
}

// ToString renders the key vector as "%08x%08x" per pair, in the given order.
// Keys are not sorted.
func (kv KeyVector) ToString() (string, error) {
	if len(kv) == 0 {
		return "", errors.Wrap(ErrBadParam, "key vector is empty")
	}
	if len(kv) > MaxKeyCount {
		return "", errors.Wrapf(ErrBadParam, "key vector has %d keys, max is %d", len(kv), MaxKeyCount)
	}

	var sb strings.Builder
	sb.Grow(len(kv) * pairStringLength)
	for _, pair := range kv {
		fmt.Fprintf(&sb, "%08x%08x", pair.Key, pair.Value)
	}
	return sb.String(), nil
}

// Equal compares the raw pairs element by element.
func (kv KeyVector) Equal(other KeyVector) bool {
	if len(kv) != len(other) {
		return false
	}
	for i := range kv {
		if kv[i] != other[i] {
			return false
		}
	}
	return true
}

func (kv KeyVector) Copy() KeyVector {
	if kv == nil {
		return nil
	}
	out := make(KeyVector, len(kv))
	copy(out, kv)
	return out
}

// ParseKeyVectorString recovers the pairs encoded by ToString.
func ParseKeyVectorString(s string) (KeyVector, error) {
	if len(s) == 0 || len(s)%pairStringLength != 0 {
		return nil, errors.Wrapf(ErrBadParam, "key vector string %q has invalid length %d", s, len(s))
	}
	numKeys := len(s) / pairStringLength
	if numKeys > MaxKeyCount {
		return nil, errors.Wrapf(ErrBadParam, "key vector string encodes %d keys, max is %d", numKeys, MaxKeyCount)
	}

	kv := make(KeyVector, 0, numKeys)
	for i := 0; i < len(s); i += pairStringLength {
		key, err := strconv.ParseUint(s[i:i+8], 16, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrBadParam, "parse key at %d: %v", i, err)
		}
		value, err := strconv.ParseUint(s[i+8:i+pairStringLength], 16, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrBadParam, "parse value at %d: %v", i+8, err)
		}
		kv = append(kv, KeyValuePair{Key: uint32(key), Value: uint32(value)})
	}
	return kv, nil
}

// CompareKeyVectorStrings orders two key vector strings for tree navigation.
func CompareKeyVectorStrings(a, b string) TreeDirection {
	switch strings.Compare(a, b) {
	case -1:
		return Left
	case 1:
		return Right
	default:
		return Equal
	}
}
