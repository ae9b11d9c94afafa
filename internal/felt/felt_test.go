package felt

import (
	"errors"
	"strings"
	"testing"
)

func TestShortString_RoundTrip(t *testing.T) {
	cases := []string{
		"",
		"a",
		"Door",
		"KATANA",
		"A strange book, 1984",
		"Raining outside...",
		strings.Repeat("z", MaxShortStringLen),
		"\tmixed\x01ctl~",
	}
	for _, s := range cases {
		f, err := PackShortString(s)
		if err != nil {
			t.Fatalf("pack %q: %v", s, err)
		}
		got, err := UnpackShortString(f)
		if err != nil {
			t.Fatalf("unpack %q: %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip: got %q want %q", got, s)
		}
	}
}

func TestShortString_RoundTripAllPrintable(t *testing.T) {
	var b strings.Builder
	for c := byte(1); c < 0x80; c++ {
		b.WriteByte(c)
		if b.Len() == MaxShortStringLen {
			s := b.String()
			f, err := PackShortString(s)
			if err != nil {
				t.Fatalf("pack %q: %v", s, err)
			}
			if got, _ := UnpackShortString(f); got != s {
				t.Fatalf("round trip: got %q want %q", got, s)
			}
			b.Reset()
		}
	}
}

func TestShortString_KnownEncoding(t *testing.T) {
	f := MustShortString("KATANA")
	if f.Hex() != "0x4b4154414e41" {
		t.Fatalf("KATANA packed to %s", f.Hex())
	}
	f = MustShortString("hello")
	if f.Hex() != "0x68656c6c6f" {
		t.Fatalf("hello packed to %s", f.Hex())
	}
}

func TestShortString_Rejects(t *testing.T) {
	if _, err := PackShortString(strings.Repeat("x", MaxShortStringLen+1)); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
	if _, err := PackShortString("café"); !errors.Is(err, ErrInvalidChar) {
		t.Fatalf("expected ErrInvalidChar for non-ascii, got %v", err)
	}
	if _, err := PackShortString("\x00a"); !errors.Is(err, ErrInvalidChar) {
		t.Fatalf("expected ErrInvalidChar for NUL, got %v", err)
	}
	if _, err := UnpackShortString(MustHex("0x41ff42")); !errors.Is(err, ErrInvalidChar) {
		t.Fatalf("expected ErrInvalidChar on unpack, got %v", err)
	}
}

func TestParse_DecimalAndHex(t *testing.T) {
	d, err := Parse("255")
	if err != nil {
		t.Fatalf("parse dec: %v", err)
	}
	h, err := Parse("0xff")
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if d != h {
		t.Fatalf("255 != 0xff: %s %s", d, h)
	}
	if v, ok := d.Uint64(); !ok || v != 255 {
		t.Fatalf("Uint64: %d %t", v, ok)
	}
	if _, err := Parse("0xzz"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	if _, err := FromBig(Prime); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for P, got %v", err)
	}
}

func TestUint64_Overflow(t *testing.T) {
	f := MustHex("0x10000000000000000")
	if _, ok := f.Uint64(); ok {
		t.Fatalf("expected overflow for 2^64")
	}
	if v, ok := FromUint64(^uint64(0)).Uint64(); !ok || v != ^uint64(0) {
		t.Fatalf("max uint64 did not survive: %d %t", v, ok)
	}
}

func TestSelector_Known(t *testing.T) {
	got := Selector("transfer")
	want := MustHex("0x83afd3f4caedc6eebf44246fe54e38c95e3179a5ec9ea81740eca5b482d12e")
	if got != want {
		t.Fatalf("selector(transfer)=%s want %s", got, want)
	}
	if Selector("interact") == Selector("escape") {
		t.Fatalf("distinct names must not collide")
	}
}

func TestJSON_HexString(t *testing.T) {
	f := FromUint64(10)
	b, err := f.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"0xa"` {
		t.Fatalf("unexpected json %s", b)
	}
	var back Felt
	if err := back.UnmarshalJSON(b); err != nil || back != f {
		t.Fatalf("unmarshal: %v %s", err, back)
	}
}
