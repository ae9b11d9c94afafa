package felt

import (
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// MaxShortStringLen is the longest string that packs into one felt.
const MaxShortStringLen = 31

var (
	ErrStringTooLong = errors.New("felt: short string longer than 31 characters")
	ErrInvalidChar   = errors.New("felt: short string must be non-NUL ASCII")
)

// PackShortString writes the ASCII codes of s left to right into a big-endian integer.
// NUL bytes are rejected so that UnpackShortString(PackShortString(s)) == s always holds.
func PackShortString(s string) (Felt, error) {
	if len(s) > MaxShortStringLen {
		return Felt{}, fmt.Errorf("%w: %q", ErrStringTooLong, s)
	}
	var f Felt
	off := len(f.b) - len(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0 || c > 0x7f {
			return Felt{}, fmt.Errorf("%w: %q", ErrInvalidChar, s)
		}
		f.b[off+i] = c
	}
	return f, nil
}

func MustShortString(s string) Felt {
	f, err := PackShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// UnpackShortString is the inverse of PackShortString. Leading zero bytes are padding.
func UnpackShortString(f Felt) (string, error) {
	i := 0
	for i < len(f.b) && f.b[i] == 0 {
		i++
	}
	if len(f.b)-i > MaxShortStringLen {
		return "", ErrStringTooLong
	}
	out := make([]byte, 0, len(f.b)-i)
	for _, c := range f.b[i:] {
		if c == 0 || c > 0x7f {
			return "", ErrInvalidChar
		}
		out = append(out, c)
	}
	return string(out), nil
}

var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the entry point selector for name: keccak256 truncated to 250 bits.
func Selector(name string) Felt {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(name))
	v := new(big.Int).SetBytes(h.Sum(nil))
	v.And(v, selectorMask)
	f, _ := FromBig(v)
	return f
}
