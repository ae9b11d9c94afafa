package schema

import (
	"escaperoom.ai/internal/felt"
)

// Ty is a node of a remote record: a Struct, a Primitive, or an Unknown shape
// the client does not understand.
type Ty interface {
	isTy()
}

type PrimitiveType string

const (
	U8              PrimitiveType = "u8"
	U16             PrimitiveType = "u16"
	U32             PrimitiveType = "u32"
	U64             PrimitiveType = "u64"
	U128            PrimitiveType = "u128"
	U256            PrimitiveType = "u256"
	USize           PrimitiveType = "usize"
	Bool            PrimitiveType = "bool"
	Felt252         PrimitiveType = "felt252"
	ClassHash       PrimitiveType = "class_hash"
	ContractAddress PrimitiveType = "contract_address"
)

var primitiveTypes = map[PrimitiveType]struct{}{
	U8: {}, U16: {}, U32: {}, U64: {}, U128: {}, U256: {}, USize: {},
	Bool: {}, Felt252: {}, ClassHash: {}, ContractAddress: {},
}

func IsKnownPrimitive(t PrimitiveType) bool {
	_, ok := primitiveTypes[t]
	return ok
}

type Struct struct {
	Name     string
	Children []Member
}

type Member struct {
	Name string
	Key  bool
	Ty   Ty
}

// Primitive carries its value as a field element regardless of Type.
type Primitive struct {
	Type  PrimitiveType
	Value felt.Felt
}

// Unknown stands in for any node kind this client does not model (enums, arrays, ...).
type Unknown struct {
	Kind string
}

func (Struct) isTy()    {}
func (Primitive) isTy() {}
func (Unknown) isTy()   {}

// Child returns the first member named name.
func (s Struct) Child(name string) (Member, bool) {
	for _, m := range s.Children {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func U64Value(v uint64) Primitive { return Primitive{Type: U64, Value: felt.FromUint64(v)} }

func BoolValue(v bool) Primitive {
	if v {
		return Primitive{Type: Bool, Value: felt.FromUint64(1)}
	}
	return Primitive{Type: Bool, Value: felt.Zero}
}

func FeltValue(v felt.Felt) Primitive { return Primitive{Type: Felt252, Value: v} }

// AsU64 reports false for non-integer types or values wider than 64 bits.
func (p Primitive) AsU64() (uint64, bool) {
	switch p.Type {
	case U8, U16, U32, U64, USize:
		return p.Value.Uint64()
	default:
		return 0, false
	}
}

// AsBool accepts only 0 and 1.
func (p Primitive) AsBool() (bool, bool) {
	if p.Type != Bool {
		return false, false
	}
	v, ok := p.Value.Uint64()
	if !ok || v > 1 {
		return false, false
	}
	return v == 1, true
}
