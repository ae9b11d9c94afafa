package felt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	ErrSyntax     = errors.New("felt: invalid syntax")
	ErrOutOfRange = errors.New("felt: value out of field range")
)

// Prime is the field modulus, 2^251 + 17*2^192 + 1.
var Prime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 251)
	p.Add(p, new(big.Int).Lsh(big.NewInt(17), 192))
	return p.Add(p, big.NewInt(1))
}()

// Felt is a field element stored as 32 big-endian bytes. The zero value is 0.
type Felt struct {
	b [32]byte
}

var Zero Felt

func FromUint64(v uint64) Felt {
	var f Felt
	for i := 0; i < 8; i++ {
		f.b[31-i] = byte(v >> (8 * i))
	}
	return f
}

// FromBig converts a non-negative integer below Prime.
func FromBig(v *big.Int) (Felt, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(Prime) >= 0 {
		return Felt{}, ErrOutOfRange
	}
	var f Felt
	v.FillBytes(f.b[:])
	return f, nil
}

func FromHex(s string) (Felt, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" {
		return Felt{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	v, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return Felt{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return FromBig(v)
}

func FromDec(s string) (Felt, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Felt{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return FromBig(v)
}

var decimalRE = regexp.MustCompile(`^[0-9]+$`)

// Parse accepts a decimal string (digits only) or a hex string with or without 0x.
func Parse(s string) (Felt, error) {
	s = strings.TrimSpace(s)
	if decimalRE.MatchString(s) {
		return FromDec(s)
	}
	return FromHex(s)
}

func MustHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Felt) Big() *big.Int { return new(big.Int).SetBytes(f.b[:]) }

func (f Felt) Bytes() [32]byte { return f.b }

func (f Felt) IsZero() bool { return f == Zero }

// Uint64 reports false when the value does not fit.
func (f Felt) Uint64() (uint64, bool) {
	for _, c := range f.b[:24] {
		if c != 0 {
			return 0, false
		}
	}
	var v uint64
	for _, c := range f.b[24:] {
		v = v<<8 | uint64(c)
	}
	return v, true
}

func (f Felt) Hex() string { return "0x" + f.Big().Text(16) }

func (f Felt) String() string { return f.Hex() }

func (f Felt) MarshalJSON() ([]byte, error) { return json.Marshal(f.Hex()) }

func (f *Felt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrSyntax, string(b))
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
