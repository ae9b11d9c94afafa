package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"escaperoom.ai/internal/gateway/gatewaytest"
)

func TestParseInput(t *testing.T) {
	cases := []struct {
		line    string
		want    Input
		wantErr bool
	}{
		{line: "interact Door", want: Input{Action: ActionInteract, Arg: "Door"}},
		{line: "  INSPECT   window ", want: Input{Action: ActionInspect, Arg: "window"}},
		{line: "escape Secret 1984", want: Input{Action: ActionEscape, Arg: "Secret 1984"}},
		{line: "status extra", want: Input{Action: ActionStatus}},
		{line: "exit", want: Input{Action: ActionQuit}},
		{line: "quit", want: Input{Action: ActionQuit}},
		{line: "", wantErr: true},
		{line: "interact", wantErr: true},
		{line: "dance", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseInput(tc.line)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %+v", tc.line, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %+v want %+v", tc.line, got, tc.want)
		}
	}
}

func TestHandle_ResolvesCatalogNames(t *testing.T) {
	gw := gatewaytest.New()
	b := newTestBridge(t, gw, nil)

	if err := b.Handle(Input{Action: ActionInteract, Arg: "door"}); err != nil {
		t.Fatalf("interact door: %v", err)
	}
	if !b.Pending(KindInteract, "Door") {
		t.Fatalf("interact not keyed by catalog name")
	}
	if err := b.Handle(Input{Action: ActionInteract, Arg: "Fireplace"}); !errors.Is(err, ErrUnknownObject) {
		t.Fatalf("expected ErrUnknownObject, got %v", err)
	}
	if err := b.Handle(Input{Action: ActionStatus}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := b.Handle(Input{Action: ActionQuit}); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
}

func TestRun_HandlesInputsThenQuits(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetRecord(ModelObject, objectKeys("Door"), objectRecord("Door", "Needs a key"))
	gw.SetRecord(ModelGame, gameKeys(), gameRecord(8, false))
	b := newTestBridge(t, gw, nil)
	b.Start(context.Background())

	inputs := make(chan Input, 4)
	inputs <- Input{Action: ActionInteract, Arg: "Door"}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx, 200, inputs) }()

	// Quit only after the interact has been called and the next frames ran.
	deadline := time.Now().Add(2 * time.Second)
	for len(gw.Calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	inputs <- Input{Action: ActionQuit}

	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d, ok := b.Mirror().Description("Door"); !ok || d != "Needs a key" {
		t.Fatalf("description=%q known=%v", d, ok)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	b := newTestBridge(t, gatewaytest.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx, 0, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
