package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != 8632 {
			t.Fatalf("unexpected default port %d", cfg.Port)
		}
		if cfg.Workers != 2 {
			t.Fatalf("unexpected default workers %d", cfg.Workers)
		}
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		data := []byte("port: 9000\nworkers: 4\nqdrantUrl: http://qdrant:6333\n")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != 9000 || cfg.Workers != 4 {
			t.Fatalf("file values not applied: %+v", cfg)
		}
		if cfg.QdrantURL != "http://qdrant:6333" {
			t.Fatalf("qdrant url not applied: %s", cfg.QdrantURL)
		}
		// Untouched keys keep their defaults.
		if cfg.EmbeddingDim != 1536 {
			t.Fatalf("default lost: %d", cfg.EmbeddingDim)
		}
	})

	t.Run("environment wins over file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(path, []byte("port: 9000\n"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("PORT", "9100")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != 9100 {
			t.Fatalf("env override lost: %d", cfg.Port)
		}
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
			t.Fatalf("load: %v", err)
		}
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		t.Setenv("PORT", "99999")
		if _, err := Load(""); err == nil {
			t.Fatal("expected validation error")
		}
	})
}
