package textnorm

import (
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	t.Run("lowercases and collapses whitespace", func(t *testing.T) {
		got := Canonicalize("  Hello   WORLD\n\tfoo  ")
		if got != "hello world foo" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("strips html tags and volatile attributes", func(t *testing.T) {
		raw := `<div id="x9f2" class="css-1kj2h" data-reactid="42"><p>React Hooks</p></div>`
		got := Canonicalize(raw)
		if got != "react hooks" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("strips script style and comment blocks", func(t *testing.T) {
		raw := `<script>var t = Date.now();</script><!-- build 1734 --><style>.a{color:red}</style>body text`
		got := Canonicalize(raw)
		if got != "body text" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("strips iso timestamps", func(t *testing.T) {
		got := Canonicalize("posted 2024-03-15T09:30:00Z by alice")
		if strings.Contains(got, "2024") {
			t.Fatalf("timestamp survived: %q", got)
		}
		if !strings.Contains(got, "alice") {
			t.Fatalf("content lost: %q", got)
		}
	})

	t.Run("strips slash dates clock times and epoch millis", func(t *testing.T) {
		got := Canonicalize("seen 03/15/2024 at 9:30 pm ts=1710495000123 end")
		for _, frag := range []string{"03/15", "9:30", "1710495000123"} {
			if strings.Contains(got, frag) {
				t.Fatalf("volatile fragment %q survived: %q", frag, got)
			}
		}
		if !strings.HasPrefix(got, "seen") || !strings.HasSuffix(got, "end") {
			t.Fatalf("content damaged: %q", got)
		}
	})

	t.Run("strips uuids", func(t *testing.T) {
		got := Canonicalize("session 550e8400-e29b-41d4-a716-446655440000 active")
		if got != "session active" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("unicode normalization", func(t *testing.T) {
		// Fullwidth and ASCII forms should canonicalize identically.
		a := Canonicalize("ｈｅｌｌｏ")
		b := Canonicalize("hello")
		if a != b {
			t.Fatalf("NFKC mismatch: %q vs %q", a, b)
		}
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := Fingerprint("some canonical text")
		b := Fingerprint("some canonical text")
		if a != b {
			t.Fatalf("fingerprint not stable: %s vs %s", a, b)
		}
		if len(a) != 64 || a != strings.ToLower(a) {
			t.Fatalf("expected 64-char lowercase hex, got %q", a)
		}
	})

	t.Run("texts differing only in volatile content share a fingerprint", func(t *testing.T) {
		t1 := `<div class="a1">Release notes</div> updated 2024-01-02T10:00:00Z`
		t2 := `<div class="zz9">Release notes</div> updated 2025-06-30T23:59:59Z`
		if Fingerprint(Canonicalize(t1)) != Fingerprint(Canonicalize(t2)) {
			t.Fatal("expected identical fingerprints")
		}
	})

	t.Run("different content differs", func(t *testing.T) {
		if Fingerprint("a") == Fingerprint("b") {
			t.Fatal("expected distinct fingerprints")
		}
	})
}
