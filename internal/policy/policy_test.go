package policy

import (
	"math"
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	t.Run("unknown name falls back to chat", func(t *testing.T) {
		p := Lookup("nonexistent")
		if p.Name != DefaultName {
			t.Fatalf("expected %q, got %q", DefaultName, p.Name)
		}
	})

	t.Run("empty name falls back to chat", func(t *testing.T) {
		if Lookup("").Name != DefaultName {
			t.Fatal("expected default policy for empty name")
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		if Lookup("RESEARCH").Name != "research" {
			t.Fatal("expected case-insensitive match")
		}
		if Lookup("  Timeline ").Name != "timeline" {
			t.Fatal("expected trimmed match")
		}
	})
}

func TestScore(t *testing.T) {
	p := Policy{
		SemanticWeight:      0.6,
		KeywordWeight:       0.25,
		ImportanceWeight:    0.15,
		RecencyHalfLifeDays: 30,
	}

	t.Run("fresh candidate gets full recency", func(t *testing.T) {
		sig := Signals{Semantic: 0.8, Keyword: 0.4, Importance: 0.5, AgeDays: 0}
		raw := 0.8*0.6 + 0.4*0.25 + 0.5*0.15
		got := Score(sig, p)
		if math.Abs(got-raw) > 1e-9 {
			t.Fatalf("expected %f at age 0, got %f", raw, got)
		}
	})

	t.Run("recency modulation stays within 20 percent", func(t *testing.T) {
		sig := Signals{Semantic: 0.8, Keyword: 0.4, Importance: 0.5}
		raw := 0.8*0.6 + 0.4*0.25 + 0.5*0.15
		for _, age := range []float64{0, 1, 15, 30, 90, 3650} {
			sig.AgeDays = age
			got := Score(sig, p)
			if got < 0.8*raw-1e-9 || got > raw+1e-9 {
				t.Fatalf("age %f: score %f outside [%f, %f]", age, got, 0.8*raw, raw)
			}
		}
	})

	t.Run("one half life halves the recency weight", func(t *testing.T) {
		sig := Signals{Semantic: 1, AgeDays: 30}
		got := Score(sig, Policy{SemanticWeight: 1, RecencyHalfLifeDays: 30})
		want := 1.0 * (0.8 + 0.2*0.5)
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("expected %f, got %f", want, got)
		}
	})

	t.Run("zero half life disables decay", func(t *testing.T) {
		sig := Signals{Semantic: 1, AgeDays: 10000}
		got := Score(sig, Policy{SemanticWeight: 1})
		if math.Abs(got-1.0) > 1e-9 {
			t.Fatalf("expected 1.0, got %f", got)
		}
	})

	t.Run("importance is clamped", func(t *testing.T) {
		p := Policy{ImportanceWeight: 1}
		if got := Score(Signals{Importance: 5}, p); math.Abs(got-1.0) > 1e-9 {
			t.Fatalf("importance not clamped high: %f", got)
		}
		if got := Score(Signals{Importance: -3}, p); got != 0 {
			t.Fatalf("importance not clamped low: %f", got)
		}
	})
}

func TestAllows(t *testing.T) {
	now := time.Now().Unix()

	t.Run("category allow list", func(t *testing.T) {
		p := Policy{AllowedCategories: []string{"docs", "articles"}}
		if !Allows(p, "docs", now, now) {
			t.Fatal("expected docs to pass")
		}
		if Allows(p, "shopping", now, now) {
			t.Fatal("expected shopping to be filtered")
		}
	})

	t.Run("empty allow list passes everything", func(t *testing.T) {
		if !Allows(Policy{}, "anything", now, now) {
			t.Fatal("expected pass")
		}
	})

	t.Run("time range filter", func(t *testing.T) {
		p := Policy{TimeRangeDays: 7}
		if !Allows(p, "", now-3*86400, now) {
			t.Fatal("expected 3-day-old candidate to pass")
		}
		if Allows(p, "", now-8*86400, now) {
			t.Fatal("expected 8-day-old candidate to be filtered")
		}
	})
}
