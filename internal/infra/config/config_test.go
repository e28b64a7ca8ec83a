package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TxMaxAttempts != 5 || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected retry defaults: attempts=%d ttl=%v", cfg.TxMaxAttempts, cfg.IdempotencyTTL)
	}
	if len(cfg.RetryBackoff) != 3 || cfg.RetryBackoff[2] != 30*time.Second {
		t.Fatalf("unexpected backoff: %v", cfg.RetryBackoff)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("OCCUPANCY_CACHE_TTL", "90s")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMongo || cfg.MongoURI != "mongodb://db:27017" {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.OccupancyCacheTTL != 90*time.Second {
		t.Fatalf("unexpected cache ttl %v", cfg.OccupancyCacheTTL)
	}
}

func TestLoadRejectsMongoWithoutURI(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE", "mongo")
	if _, err := Load(""); !errors.Is(err, ErrMongoURIRequired) {
		t.Fatalf("expected ErrMongoURIRequired, got %v", err)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "habita.yaml")
	if err := os.WriteFile(path, []byte("HTTP_ADDR: \":9999\"\nRETRY_BACKOFF: \"2s\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || len(cfg.RetryBackoff) != 1 || cfg.RetryBackoff[0] != 2*time.Second {
		t.Fatalf("file values ignored: %+v", cfg)
	}
}

func TestLoadRejectsBadBackoff(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RETRY_BACKOFF", "1s,soon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid backoff")
	}
}
