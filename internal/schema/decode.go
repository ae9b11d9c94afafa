package schema

import (
	"fmt"

	"escaperoom.ai/internal/felt"
)

type FactKind uint8

const (
	FactTurnsRemaining FactKind = iota + 1
	FactDescription
	FactFinished
)

func (k FactKind) String() string {
	switch k {
	case FactTurnsRemaining:
		return "turns_remaining"
	case FactDescription:
		return "description"
	case FactFinished:
		return "finished"
	default:
		return fmt.Sprintf("fact(%d)", uint8(k))
	}
}

// Fact is one decoded value. Only the field matching Kind is meaningful.
type Fact struct {
	Kind     FactKind
	Turns    uint64
	Text     string
	Finished bool
}

func TurnsFact(n uint64) Fact       { return Fact{Kind: FactTurnsRemaining, Turns: n} }
func DescriptionFact(s string) Fact { return Fact{Kind: FactDescription, Text: s} }
func FinishedFact(b bool) Fact      { return Fact{Kind: FactFinished, Finished: b} }

// Field declares interest in one struct child: the primitive type it must
// have and how to project it. Project returning false skips the field.
type Field struct {
	Type    PrimitiveType
	Project func(Primitive) (Fact, bool)
}

// Interest maps child names to the fields a record kind contributes.
type Interest map[string]Field

var GameInterest = Interest{
	"turns_remaining": {Type: U64, Project: projectTurns},
	"is_finished":     {Type: Bool, Project: projectFinished},
}

var ObjectInterest = Interest{
	"description": {Type: Felt252, Project: projectDescription},
}

func projectTurns(p Primitive) (Fact, bool) {
	v, ok := p.AsU64()
	if !ok {
		return Fact{}, false
	}
	return TurnsFact(v), true
}

func projectFinished(p Primitive) (Fact, bool) {
	v, ok := p.AsBool()
	if !ok {
		return Fact{}, false
	}
	return FinishedFact(v), true
}

func projectDescription(p Primitive) (Fact, bool) {
	s, err := felt.UnpackShortString(p.Value)
	if err != nil {
		return Fact{}, false
	}
	return DescriptionFact(s), true
}

// DecodeFacts projects a record tree onto the interest set. Anything absent,
// of the wrong shape or of the wrong type is skipped, never reported.
// Facts come out in the tree's child order.
func DecodeFacts(t Ty, in Interest) []Fact {
	s, ok := t.(Struct)
	if !ok {
		return nil
	}
	var out []Fact
	for _, m := range s.Children {
		f, ok := in[m.Name]
		if !ok {
			continue
		}
		p, ok := m.Ty.(Primitive)
		if !ok || p.Type != f.Type || f.Project == nil {
			continue
		}
		if fact, ok := f.Project(p); ok {
			out = append(out, fact)
		}
	}
	return out
}
