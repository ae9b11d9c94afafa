package room

import (
	"fmt"
	"strings"

	"escaperoom.ai/internal/felt"
)

// Object is one interactable thing in the room, named and described by short
// strings so both fit in a single felt.
type Object struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// DefaultCatalog is the room furnished at startup.
var DefaultCatalog = []Object{
	{Name: "Bookcase", Description: "A strange book, 1984"},
	{Name: "Cupboard", Description: "An egyptian cat."},
	{Name: "Door", Description: "Needs a key"},
	{Name: "Table", Description: "Pile of papers."},
	{Name: "Window", Description: "Raining outside..."},
	{Name: "Painting", Description: "An intriguing painting."},
}

// Lookup finds an object by case-insensitive name.
func Lookup(catalog []Object, name string) (Object, bool) {
	for _, o := range catalog {
		if strings.EqualFold(o.Name, name) {
			return o, true
		}
	}
	return Object{}, false
}

// ValidateCatalog checks names are unique and every string packs into a felt.
func ValidateCatalog(catalog []Object) error {
	if len(catalog) == 0 {
		return fmt.Errorf("empty catalog")
	}
	seen := map[string]bool{}
	for i, o := range catalog {
		key := strings.ToLower(o.Name)
		if key == "" {
			return fmt.Errorf("object %d: empty name", i)
		}
		if seen[key] {
			return fmt.Errorf("object %q: duplicate name", o.Name)
		}
		seen[key] = true
		if _, err := felt.PackShortString(o.Name); err != nil {
			return fmt.Errorf("object %q: name: %w", o.Name, err)
		}
		if _, err := felt.PackShortString(o.Description); err != nil {
			return fmt.Errorf("object %q: description: %w", o.Name, err)
		}
	}
	return nil
}

// spawnCalldata lays out [n, names..., n, descriptions...].
func spawnCalldata(objects []Object) ([]felt.Felt, error) {
	n := felt.FromUint64(uint64(len(objects)))
	names := make([]felt.Felt, 0, len(objects))
	descs := make([]felt.Felt, 0, len(objects))
	for _, o := range objects {
		name, err := felt.PackShortString(o.Name)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", o.Name, err)
		}
		desc, err := felt.PackShortString(o.Description)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", o.Name, err)
		}
		names = append(names, name)
		descs = append(descs, desc)
	}
	out := make([]felt.Felt, 0, 2+2*len(objects))
	out = append(out, n)
	out = append(out, names...)
	out = append(out, n)
	out = append(out, descs...)
	return out, nil
}
