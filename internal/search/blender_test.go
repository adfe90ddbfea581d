package search

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/recallmesh/recallmesh/internal/models"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/vectorstore"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

type fakeIndex struct {
	hits []vectorstore.Hit
	err  error
}

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float32, _ int, _ []string) ([]vectorstore.Hit, error) {
	return f.hits, f.err
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "recallmesh-test")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMemory(t *testing.T, db *store.DB, m *models.Memory) {
	t.Helper()
	if err := store.NewOwnerStore(db).Ensure(m.OwnerID); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}
	if err := store.NewMemoryStore(db).Insert(m); err != nil {
		t.Fatalf("insert memory: %v", err)
	}
}

func newTestBlender(db *store.DB, index VectorIndex) *Blender {
	logger := log.New(os.Stderr)
	return NewBlender(store.NewMemoryStore(db), &fakeEmbedder{vec: []float32{0.1, 0.2}}, index, logger)
}

func TestTokenize(t *testing.T) {
	t.Run("lowercase strip punctuation split", func(t *testing.T) {
		got := Tokenize("React-Hooks, best? practices!")
		want := []string{"react", "hooks", "best", "practices"}
		if len(got) != len(want) {
			t.Fatalf("got %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("token %d: got %q want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("drops short tokens", func(t *testing.T) {
		got := Tokenize("go to it at once")
		if len(got) != 1 || got[0] != "once" {
			t.Fatalf("got %v", got)
		}
	})
}

func TestKeywordScore(t *testing.T) {
	t.Run("title match with phrase bonus and coverage", func(t *testing.T) {
		m := &models.Memory{
			Title:   "React Hooks Best Practices",
			Summary: "How to use useState effectively.",
			Content: "A deep dive into component state.",
		}
		tokens := Tokenize("react hooks")
		got := KeywordScore(tokens, "react hooks", m)

		// Per-token title hits: (0.4+0.4)/2 = 0.4, phrase-in-title bonus
		// +0.2, full coverage multiplier 1.3 => 0.78.
		want := (0.4 + 0.2) * 1.3
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("got %f want %f", got, want)
		}
		if got < 0.4 {
			t.Fatalf("expected at least the pre-bonus title weight, got %f", got)
		}
	})

	t.Run("no match scores zero", func(t *testing.T) {
		m := &models.Memory{Title: "Gardening tips", Content: "tomatoes"}
		if got := KeywordScore(Tokenize("react hooks"), "react hooks", m); got != 0 {
			t.Fatalf("got %f", got)
		}
	})

	t.Run("clamped to one", func(t *testing.T) {
		m := &models.Memory{
			Title:   "react hooks react hooks",
			Summary: "react hooks",
			Content: "react hooks",
		}
		if got := KeywordScore(Tokenize("react hooks"), "react hooks", m); got > 1 {
			t.Fatalf("score %f exceeds 1", got)
		}
	})

	t.Run("word boundary required", func(t *testing.T) {
		m := &models.Memory{Title: "Preact internals"}
		if got := KeywordScore([]string{"react"}, "react", m); got != 0 {
			t.Fatalf("substring inside a word should not match title, got %f", got)
		}
	})
}

func TestBlenderSearch(t *testing.T) {
	t.Run("keyword-only when vector service returns no hits", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, &models.Memory{
			ID:          "m1",
			OwnerID:     "alice",
			Title:       "React Hooks Best Practices",
			Summary:     "Covers useState and useEffect.",
			Content:     "Detailed guide.",
			Fingerprint: "fp1",
		})

		b := newTestBlender(db, &fakeIndex{})
		resp, err := b.Search(context.Background(), "alice", "react hooks", "", 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Results))
		}
		r := resp.Results[0]
		if r.Channel != models.ChannelKeyword {
			t.Fatalf("expected keyword channel, got %s", r.Channel)
		}
		// Keyword score 0.78 scaled by the 0.4 fusion weight.
		if math.Abs(r.BlendedScore-0.78*0.4) > 1e-9 {
			t.Fatalf("blended score %f", r.BlendedScore)
		}
		if resp.AppliedPolicy != "chat" {
			t.Fatalf("expected default policy, got %s", resp.AppliedPolicy)
		}
	})

	t.Run("hybrid fusion weights", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, &models.Memory{
			ID:          "m1",
			OwnerID:     "alice",
			Title:       "React Hooks notes",
			Content:     "react hooks in practice",
			Summary:     "react hooks walkthrough",
			Fingerprint: "fp1",
		})

		b := newTestBlender(db, &fakeIndex{hits: []vectorstore.Hit{{MemoryID: "m1", Score: 0.8}}})
		resp, err := b.Search(context.Background(), "alice", "react hooks", "", 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Results))
		}
		r := resp.Results[0]
		if r.Channel != models.ChannelHybrid {
			t.Fatalf("expected hybrid channel, got %s", r.Channel)
		}
		// The keyword score saturates at 1.0 for this memory (title,
		// summary and content all match), so blended = 1*0.4 + 0.8*0.6.
		want := 1.0*0.4 + 0.8*0.6
		if math.Abs(r.BlendedScore-want) > 1e-9 {
			t.Fatalf("blended %f want %f", r.BlendedScore, want)
		}
	})

	t.Run("fusion weights", func(t *testing.T) {
		got, channel := fuse(&candidate{keyword: 0.5, semantic: 0.8, inKeyword: true, inSemantic: true})
		if math.Abs(got-0.68) > 1e-9 {
			t.Fatalf("expected 0.68, got %f", got)
		}
		if channel != models.ChannelHybrid {
			t.Fatalf("expected hybrid, got %s", channel)
		}
	})

	t.Run("semantic-only result keeps raw similarity", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, &models.Memory{
			ID:          "m1",
			OwnerID:     "alice",
			Title:       "Pottery glazing",
			Content:     "kiln temperatures",
			Fingerprint: "fp1",
		})

		b := newTestBlender(db, &fakeIndex{hits: []vectorstore.Hit{{MemoryID: "m1", Score: 0.71}}})
		resp, err := b.Search(context.Background(), "alice", "ceramics firing", "", 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Results))
		}
		r := resp.Results[0]
		if r.Channel != models.ChannelSemantic {
			t.Fatalf("expected semantic channel, got %s", r.Channel)
		}
		if math.Abs(r.BlendedScore-0.71) > 1e-9 {
			t.Fatalf("blended %f", r.BlendedScore)
		}
	})

	t.Run("degrades to keyword-only when the index fails", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, &models.Memory{
			ID:          "m1",
			OwnerID:     "alice",
			Title:       "React Hooks Best Practices",
			Fingerprint: "fp1",
		})

		b := newTestBlender(db, &fakeIndex{err: errors.New("connection refused")})
		resp, err := b.Search(context.Background(), "alice", "react hooks", "", 10)
		if err != nil {
			t.Fatalf("expected degraded search to succeed, got %v", err)
		}
		if len(resp.Results) != 1 || resp.Results[0].Channel != models.ChannelKeyword {
			t.Fatalf("expected keyword-only degradation, got %+v", resp.Results)
		}
	})

	t.Run("rejects queries with no usable tokens", func(t *testing.T) {
		db := openTestDB(t)
		b := newTestBlender(db, &fakeIndex{})
		_, err := b.Search(context.Background(), "alice", "a b !!", "", 10)
		if !errors.Is(err, models.ErrInvalidQuery) {
			t.Fatalf("expected ErrInvalidQuery, got %v", err)
		}
	})

	t.Run("policy time range filters old candidates", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, &models.Memory{
			ID:          "old",
			OwnerID:     "alice",
			Title:       "React Hooks Best Practices",
			Fingerprint: "fp-old",
			CreatedAt:   time.Now().Add(-60 * 24 * time.Hour).Unix(),
		})
		seedMemory(t, db, &models.Memory{
			ID:          "fresh",
			OwnerID:     "alice",
			Title:       "React Hooks Migration Notes",
			Fingerprint: "fp-fresh",
		})

		b := newTestBlender(db, &fakeIndex{})
		// The briefing policy only admits the last 7 days.
		resp, err := b.Search(context.Background(), "alice", "react hooks", "briefing", 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(resp.Results) != 1 || resp.Results[0].MemoryID != "fresh" {
			t.Fatalf("expected only the fresh memory, got %+v", resp.Results)
		}
		if resp.Filters.TimeRangeDays != 7 {
			t.Fatalf("expected applied filter envelope, got %+v", resp.Filters)
		}
	})

	t.Run("results bump access counters", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, &models.Memory{
			ID:          "m1",
			OwnerID:     "alice",
			Title:       "React Hooks Best Practices",
			Fingerprint: "fp1",
		})

		b := newTestBlender(db, &fakeIndex{})
		if _, err := b.Search(context.Background(), "alice", "react hooks", "", 10); err != nil {
			t.Fatalf("search: %v", err)
		}

		m, err := store.NewMemoryStore(db).GetByID("m1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if m.AccessCount != 1 || m.LastAccessedAt == nil {
			t.Fatalf("expected access tracking, got count=%d", m.AccessCount)
		}
	})
}
