package room

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQuit          = errors.New("room: quit")
	ErrUnknownObject = errors.New("room: unknown object")
	ErrUnknownAction = errors.New("room: unknown action")
)

type Action string

const (
	ActionInteract Action = "interact"
	ActionEscape   Action = "escape"
	ActionInspect  Action = "inspect"
	ActionStatus   Action = "status"
	ActionQuit     Action = "quit"
)

type Input struct {
	Action Action
	Arg    string
}

// ParseInput reads one command line: "interact Door", "escape 1984",
// "inspect Window", "status" or "quit". Secrets keep their case; the rest of
// the line after the action is the argument.
func ParseInput(line string) (Input, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Input{}, fmt.Errorf("%w: empty line", ErrUnknownAction)
	}
	verb, arg, _ := strings.Cut(line, " ")
	in := Input{Action: Action(strings.ToLower(verb)), Arg: strings.TrimSpace(arg)}
	switch in.Action {
	case ActionInteract, ActionEscape, ActionInspect:
		if in.Arg == "" {
			return Input{}, fmt.Errorf("%s needs an argument", in.Action)
		}
	case ActionStatus, ActionQuit:
		in.Arg = ""
	case "exit":
		in.Action = ActionQuit
		in.Arg = ""
	default:
		return Input{}, fmt.Errorf("%w: %q", ErrUnknownAction, verb)
	}
	return in, nil
}

// Handle applies one input on the frame goroutine. ErrQuit asks the frame
// loop to stop; every other error concerns only this input.
func (b *Bridge) Handle(in Input) error {
	switch in.Action {
	case ActionInteract, ActionInspect:
		obj, ok := Lookup(b.opts.Catalog, in.Arg)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownObject, in.Arg)
		}
		if in.Action == ActionInspect {
			return b.Inspect(obj.Name)
		}
		_, err := b.Interact(obj.Name)
		return err
	case ActionEscape:
		_, err := b.Escape(in.Arg)
		return err
	case ActionStatus:
		b.logStatus()
		return nil
	case ActionQuit:
		return ErrQuit
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
}

func (b *Bridge) logStatus() {
	snap := b.mirror.Snapshot()
	turns := "unknown"
	if snap.TurnsKnown {
		turns = fmt.Sprintf("%d", snap.Turns)
	}
	b.logger.Printf("status turns=%s finished=%v known_objects=%d", turns, snap.Finished, len(snap.Descriptions))
	for kind, st := range b.Stats() {
		if st.Enqueued == 0 && st.Rejected == 0 {
			continue
		}
		b.logger.Printf("status channel=%s enqueued=%d rejected=%d dispatched=%d failed=%d depth=%d",
			kind, st.Enqueued, st.Rejected, st.Dispatched, st.Failed, st.Depth)
	}
}
