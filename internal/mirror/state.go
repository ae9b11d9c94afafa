// Package mirror holds the client's local copy of remote game state. It is
// written only by the frame goroutine, from decoded facts handed back by
// background work.
package mirror

import (
	"sort"

	"escaperoom.ai/internal/schema"
)

// Change reports which parts of the mirror an Apply touched.
type Change struct {
	Turns        bool
	Finished     bool
	Descriptions []string
}

func (c Change) Empty() bool {
	return !c.Turns && !c.Finished && len(c.Descriptions) == 0
}

type State struct {
	turns      uint64
	turnsKnown bool
	finished   bool
	desc       map[string]string
	applied    uint64
}

func New() *State {
	return &State{desc: map[string]string{}}
}

// Apply folds facts into the mirror. Description facts belong to object;
// turn and finished facts are global and ignore it. Facts equal to the
// current value are not reported as changes.
func (s *State) Apply(object string, facts []schema.Fact) Change {
	var ch Change
	for _, f := range facts {
		switch f.Kind {
		case schema.FactTurnsRemaining:
			if !s.turnsKnown || s.turns != f.Turns {
				ch.Turns = true
			}
			s.turns = f.Turns
			s.turnsKnown = true
		case schema.FactFinished:
			if s.finished != f.Finished {
				ch.Finished = true
			}
			s.finished = f.Finished
		case schema.FactDescription:
			if object == "" {
				continue
			}
			if prev, ok := s.desc[object]; !ok || prev != f.Text {
				ch.Descriptions = append(ch.Descriptions, object)
			}
			s.desc[object] = f.Text
		}
	}
	if !ch.Empty() {
		s.applied++
	}
	return ch
}

// TurnsRemaining returns false until a turns fact has been applied.
func (s *State) TurnsRemaining() (uint64, bool) { return s.turns, s.turnsKnown }

func (s *State) Finished() bool { return s.finished }

func (s *State) Description(object string) (string, bool) {
	d, ok := s.desc[object]
	return d, ok
}

// Version counts applies that changed something.
func (s *State) Version() uint64 { return s.applied }

type Snapshot struct {
	Version      uint64            `json:"version"`
	Turns        uint64            `json:"turns_remaining"`
	TurnsKnown   bool              `json:"turns_known"`
	Finished     bool              `json:"finished"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	out := Snapshot{
		Version:    s.applied,
		Turns:      s.turns,
		TurnsKnown: s.turnsKnown,
		Finished:   s.finished,
	}
	if len(s.desc) > 0 {
		out.Descriptions = make(map[string]string, len(s.desc))
		for k, v := range s.desc {
			out.Descriptions[k] = v
		}
	}
	return out
}

// Objects lists objects with a known description, sorted.
func (s *State) Objects() []string {
	out := make([]string, 0, len(s.desc))
	for k := range s.desc {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
