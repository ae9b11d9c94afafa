package devnode

import (
	"testing"
	"time"
)

func TestReplayGuard_RejectsRepeatedNonce(t *testing.T) {
	g := newReplayGuard(10 * time.Second)
	now := time.Unix(1700000000, 0)
	if !g.allow("0xabc", "n1", now) {
		t.Fatalf("expected first request to pass")
	}
	if g.allow("0xabc", "n1", now.Add(time.Second)) {
		t.Fatalf("expected repeated nonce to be rejected")
	}
	if !g.allow("0xabc", "n2", now.Add(time.Second)) {
		t.Fatalf("expected different nonce to pass")
	}
	if !g.allow("0xdef", "n1", now.Add(time.Second)) {
		t.Fatalf("nonces are per account")
	}
	if g.allow("0xabc", "", now) {
		t.Fatalf("empty nonce accepted")
	}
}

func TestReplayGuard_ExpiresAndPrunes(t *testing.T) {
	g := newReplayGuard(2 * time.Second)
	now := time.Unix(1700000000, 0)
	if !g.allow("0xabc", "n1", now) {
		t.Fatalf("expected first request to pass")
	}
	if g.allow("0xabc", "n1", now.Add(time.Second)) {
		t.Fatalf("expected repeat inside ttl to fail")
	}
	if !g.allow("0xabc", "n1", now.Add(3*time.Second)) {
		t.Fatalf("expected request after ttl expiry to pass")
	}
	g.allow("0xabc", "n9", now.Add(10*time.Second))
	if n := g.size(); n != 1 {
		t.Fatalf("expired entries not pruned: %d left", n)
	}
}
