package storage

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewStorage(t *testing.T) {
	log := logrus.New()

	s, err := NewStorage(Config{Backend: "memory", MaxRuns: 5}, log)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewStorage(Config{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "t.db")}, log)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := NewStorage(Config{Backend: "redis"}, log); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != "memory" || cfg.MaxRuns != 50 {
		t.Errorf("defaults = %+v", cfg)
	}
}
