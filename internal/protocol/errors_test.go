package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for code := range knownCodes {
		if !IsKnownCode(code) {
			t.Fatalf("registered code %q not known", code)
		}
	}
	if !IsKnownCode("") {
		t.Fatalf("empty code means success and must be accepted")
	}
	for _, code := range []string{"E_NOT_DEFINED", "e_replay", "E_REPLAY "} {
		if IsKnownCode(code) {
			t.Fatalf("unknown code %q accepted", code)
		}
	}
	if len(knownCodes) != 7 {
		t.Fatalf("code registry has %d entries, want 7", len(knownCodes))
	}
}
