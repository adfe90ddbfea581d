package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/recallmesh/recallmesh/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "recallmesh-store")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMemory(t *testing.T, db *DB, id, owner, fingerprint string) {
	t.Helper()
	if err := NewOwnerStore(db).Ensure(owner); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}
	err := NewMemoryStore(db).Insert(&models.Memory{
		ID:          id,
		OwnerID:     owner,
		Content:     "content " + id,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Run("fingerprint unique per owner", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "m1", "alice", "fp1")

		err := NewMemoryStore(db).Insert(&models.Memory{
			ID: "m2", OwnerID: "alice", Content: "x", Fingerprint: "fp1",
			CreatedAt: time.Now().Unix(),
		})
		if !errors.Is(err, models.ErrDuplicateContent) {
			t.Fatalf("expected ErrDuplicateContent, got %v", err)
		}
	})

	t.Run("same fingerprint allowed across owners", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "m1", "alice", "fp1")
		seedMemory(t, db, "m2", "bob", "fp1")
	})

	t.Run("get by id round-trips metadata", func(t *testing.T) {
		db := openTestDB(t)
		if err := NewOwnerStore(db).Ensure("alice"); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		ms := NewMemoryStore(db)
		err := ms.Insert(&models.Memory{
			ID: "m1", OwnerID: "alice", Content: "x", Fingerprint: "fp1",
			Metadata:  models.Metadata{"topics": []string{"go"}, "category": "notes"},
			CreatedAt: time.Now().Unix(),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}

		got, err := ms.GetByID("m1")
		if err != nil || got == nil {
			t.Fatalf("get: %v", err)
		}
		if got.Category() != "notes" {
			t.Fatalf("metadata lost: %+v", got.Metadata)
		}
		if topics := got.Topics(); len(topics) != 1 || topics[0] != "go" {
			t.Fatalf("topics lost: %v", topics)
		}
	})

	t.Run("missing memory is nil without error", func(t *testing.T) {
		db := openTestDB(t)
		got, err := NewMemoryStore(db).GetByID("ghost")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil, got %+v", got)
		}
	})

	t.Run("touch access bumps counter and timestamp", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "m1", "alice", "fp1")
		ms := NewMemoryStore(db)

		if err := ms.TouchAccess([]string{"m1"}); err != nil {
			t.Fatalf("touch: %v", err)
		}
		got, _ := ms.GetByID("m1")
		if got.AccessCount != 1 || got.LastAccessedAt == nil {
			t.Fatalf("access not recorded: %+v", got)
		}
	})

	t.Run("keyword candidates match any token", func(t *testing.T) {
		db := openTestDB(t)
		if err := NewOwnerStore(db).Ensure("alice"); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		ms := NewMemoryStore(db)
		for i, title := range []string{"Go concurrency patterns", "Rust ownership", "Python asyncio"} {
			err := ms.Insert(&models.Memory{
				ID: string(rune('a' + i)), OwnerID: "alice",
				Title: title, Content: title, Fingerprint: title,
				CreatedAt: time.Now().Unix(),
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		hits, err := ms.KeywordCandidates("alice", []string{"concurrency", "asyncio"}, 10)
		if err != nil {
			t.Fatalf("candidates: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(hits))
		}
	})
}

func TestRelationStore(t *testing.T) {
	t.Run("self loops rejected by schema", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "m1", "alice", "fp1")

		err := NewRelationStore(db).Upsert(models.MemoryRelation{
			MemoryID: "m1", RelatedMemoryID: "m1", Score: 0.9,
			Type: models.RelationSemantic, CreatedAt: time.Now().Unix(),
		})
		if err == nil {
			t.Fatal("expected constraint violation")
		}
	})

	t.Run("upsert keeps the higher score", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "m1", "alice", "fp1")
		seedMemory(t, db, "m2", "alice", "fp2")
		rs := NewRelationStore(db)

		edge := models.MemoryRelation{
			MemoryID: "m1", RelatedMemoryID: "m2", Score: 0.8,
			Type: models.RelationSemantic, CreatedAt: time.Now().Unix(),
		}
		if err := rs.Upsert(edge); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		edge.Score = 0.5
		if err := rs.Upsert(edge); err != nil {
			t.Fatalf("upsert lower: %v", err)
		}

		edges, _ := rs.ListForMemory("m1")
		if len(edges) != 1 || edges[0].Score != 0.8 {
			t.Fatalf("expected single edge at 0.8, got %+v", edges)
		}
	})

	t.Run("prune keeps the strongest edges", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "hub", "alice", "fp0")
		rs := NewRelationStore(db)
		for i := 0; i < 5; i++ {
			id := string(rune('a' + i))
			seedMemory(t, db, id, "alice", "fp-"+id)
			err := rs.Upsert(models.MemoryRelation{
				MemoryID: "hub", RelatedMemoryID: id, Score: float64(i) * 0.2,
				Type: models.RelationSemantic, CreatedAt: time.Now().Unix(),
			})
			if err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}

		removed, err := rs.PruneToDegree("hub", 2)
		if err != nil {
			t.Fatalf("prune: %v", err)
		}
		if removed != 3 {
			t.Fatalf("expected 3 removed, got %d", removed)
		}
		edges, _ := rs.ListForMemory("hub")
		if len(edges) != 2 || edges[0].Score != 0.8 {
			t.Fatalf("wrong survivors: %+v", edges)
		}
	})

	t.Run("replace is atomic per memory", func(t *testing.T) {
		db := openTestDB(t)
		seedMemory(t, db, "m1", "alice", "fp1")
		seedMemory(t, db, "m2", "alice", "fp2")
		seedMemory(t, db, "m3", "alice", "fp3")
		rs := NewRelationStore(db)

		now := time.Now().Unix()
		first := []models.MemoryRelation{
			{MemoryID: "m1", RelatedMemoryID: "m2", Score: 0.7, Type: models.RelationSemantic, CreatedAt: now},
		}
		if err := rs.ReplaceForMemory("m1", first); err != nil {
			t.Fatalf("replace: %v", err)
		}
		second := []models.MemoryRelation{
			{MemoryID: "m1", RelatedMemoryID: "m3", Score: 0.6, Type: models.RelationTopical, CreatedAt: now},
		}
		if err := rs.ReplaceForMemory("m1", second); err != nil {
			t.Fatalf("replace: %v", err)
		}

		edges, _ := rs.ListForMemory("m1")
		if len(edges) != 1 || edges[0].RelatedMemoryID != "m3" {
			t.Fatalf("replace left stale edges: %+v", edges)
		}
	})
}

func TestSnapshotStore(t *testing.T) {
	t.Run("duplicate summary fingerprints collapse", func(t *testing.T) {
		db := openTestDB(t)
		if err := NewOwnerStore(db).Ensure("alice"); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		ss := NewSnapshotStore(db)

		for i := 0; i < 2; i++ {
			err := ss.Insert(&models.MemorySnapshot{
				ID: string(rune('a' + i)), OwnerID: "alice",
				RawText: "raw", Summary: "sum", SummaryFingerprint: "sfp1",
				CreatedAt: time.Now().Unix(),
			})
			if err != nil {
				t.Fatalf("insert %d: %v", i, err)
			}
		}

		if n, _ := ss.CountByOwner("alice"); n != 1 {
			t.Fatalf("expected 1 snapshot, got %d", n)
		}
	})
}

func TestJobQueue(t *testing.T) {
	t.Run("claim marks running and counts attempts", func(t *testing.T) {
		db := openTestDB(t)
		q := NewJobQueue(db)

		if err := q.Enqueue(&models.IngestJob{ID: "j1", OwnerID: "alice", RawText: "text"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}

		job, err := q.Claim()
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job == nil || job.ID != "j1" {
			t.Fatalf("expected j1, got %+v", job)
		}
		if job.Status != models.JobRunning || job.Attempts != 1 {
			t.Fatalf("claim state wrong: %+v", job)
		}

		// A running job inside its visibility window is not re-claimed.
		again, err := q.Claim()
		if err != nil {
			t.Fatalf("claim again: %v", err)
		}
		if again != nil {
			t.Fatalf("running job re-claimed: %+v", again)
		}
	})

	t.Run("oldest job first", func(t *testing.T) {
		db := openTestDB(t)
		q := NewJobQueue(db)

		// created_at has second resolution; force distinct ordering.
		now := time.Now().Unix()
		for i, id := range []string{"j1", "j2"} {
			_, err := db.Exec(`
				INSERT INTO ingest_jobs (id, owner_id, raw_text, status, attempts, created_at, updated_at)
				VALUES (?, 'alice', 'text', ?, 0, ?, ?)
			`, id, models.JobPending, now+int64(i), now+int64(i))
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		job, _ := q.Claim()
		if job.ID != "j1" {
			t.Fatalf("expected oldest job, got %s", job.ID)
		}
	})

	t.Run("timed out running job is redelivered", func(t *testing.T) {
		db := openTestDB(t)
		q := NewJobQueue(db)

		stale := time.Now().Add(-time.Hour).Unix()
		_, err := db.Exec(`
			INSERT INTO ingest_jobs (id, owner_id, raw_text, status, attempts, created_at, updated_at)
			VALUES ('j1', 'alice', 'text', ?, 1, ?, ?)
		`, models.JobRunning, stale, stale)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}

		job, err := q.Claim()
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job == nil || job.ID != "j1" {
			t.Fatal("stale running job should be redelivered")
		}
		if job.Attempts != 2 {
			t.Fatalf("expected attempt 2, got %d", job.Attempts)
		}
	})

	t.Run("complete and fail are terminal", func(t *testing.T) {
		db := openTestDB(t)
		q := NewJobQueue(db)

		for _, id := range []string{"j1", "j2"} {
			if err := q.Enqueue(&models.IngestJob{ID: id, OwnerID: "alice", RawText: "text"}); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
		first, _ := q.Claim()
		if err := q.Complete(first.ID); err != nil {
			t.Fatalf("complete: %v", err)
		}
		second, _ := q.Claim()
		if err := q.Fail(second.ID, "provider rejected content"); err != nil {
			t.Fatalf("fail: %v", err)
		}

		if job, _ := q.Claim(); job != nil {
			t.Fatalf("terminal job redelivered: %+v", job)
		}
		failed, _ := q.Get(second.ID)
		if failed.Status != models.JobFailed || failed.LastError == "" {
			t.Fatalf("failure not recorded: %+v", failed)
		}
	})
}
