package schema

import (
	"encoding/json"
	"fmt"

	"escaperoom.ai/internal/felt"
)

const (
	kindStruct    = "struct"
	kindPrimitive = "primitive"
)

// wireTy is the JSON shape of a record tree on the node protocol.
type wireTy struct {
	Type      string        `json:"type"`
	Name      string        `json:"name,omitempty"`
	Children  []wireMember  `json:"children,omitempty"`
	Primitive PrimitiveType `json:"primitive,omitempty"`
	Value     *felt.Felt    `json:"value,omitempty"`
}

type wireMember struct {
	Name string `json:"name"`
	Key  bool   `json:"key,omitempty"`
	Ty   wireTy `json:"ty"`
}

// Encode renders a tree in wire form.
func Encode(t Ty) (json.RawMessage, error) {
	w, err := toWire(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWire(t Ty) (wireTy, error) {
	switch v := t.(type) {
	case Struct:
		out := wireTy{Type: kindStruct, Name: v.Name, Children: make([]wireMember, 0, len(v.Children))}
		for _, m := range v.Children {
			c, err := toWire(m.Ty)
			if err != nil {
				return wireTy{}, fmt.Errorf("%s.%s: %w", v.Name, m.Name, err)
			}
			out.Children = append(out.Children, wireMember{Name: m.Name, Key: m.Key, Ty: c})
		}
		return out, nil
	case Primitive:
		val := v.Value
		return wireTy{Type: kindPrimitive, Primitive: v.Type, Value: &val}, nil
	case Unknown:
		return wireTy{Type: v.Kind}, nil
	default:
		return wireTy{}, fmt.Errorf("unsupported node %T", t)
	}
}

// Decode parses a wire tree. Node kinds and primitive types it does not know
// become Unknown instead of failing; only malformed JSON is an error.
func Decode(b []byte) (Ty, error) {
	var w wireTy
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return fromWire(w), nil
}

func fromWire(w wireTy) Ty {
	switch w.Type {
	case kindStruct:
		s := Struct{Name: w.Name, Children: make([]Member, 0, len(w.Children))}
		for _, m := range w.Children {
			s.Children = append(s.Children, Member{Name: m.Name, Key: m.Key, Ty: fromWire(m.Ty)})
		}
		return s
	case kindPrimitive:
		if !IsKnownPrimitive(w.Primitive) || w.Value == nil {
			return Unknown{Kind: kindPrimitive + ":" + string(w.Primitive)}
		}
		return Primitive{Type: w.Primitive, Value: *w.Value}
	default:
		return Unknown{Kind: w.Type}
	}
}
