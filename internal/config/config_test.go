package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBFile != "palaver.db" {
		t.Errorf("expected default db file, got %q", cfg.DBFile)
	}
	if cfg.APIAddr != ":8080" {
		t.Errorf("expected default api addr, got %q", cfg.APIAddr)
	}
	if cfg.HistoryLimit != 200 {
		t.Errorf("expected default history limit 200, got %d", cfg.HistoryLimit)
	}
	if cfg.TypingTTL != 45*time.Second {
		t.Errorf("expected default typing ttl 45s, got %v", cfg.TypingTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PALAVER_DB", "/tmp/other.db")
	t.Setenv("HISTORY_LIMIT", "10")
	t.Setenv("TYPING_TTL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBFile != "/tmp/other.db" || cfg.HistoryLimit != 10 || cfg.TypingTTL != 5*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad ttl", func(t *testing.T) {
		t.Setenv("TYPING_TTL", "soon")
		if _, err := Load(); err == nil {
			t.Error("expected an error for unparseable TYPING_TTL")
		}
	})

	t.Run("bad history limit", func(t *testing.T) {
		t.Setenv("HISTORY_LIMIT", "0")
		if _, err := Load(); err == nil {
			t.Error("expected an error for zero HISTORY_LIMIT")
		}
	})

	t.Run("lone vapid key", func(t *testing.T) {
		t.Setenv("VAPID_PUBLIC_KEY", "pk")
		if _, err := Load(); err == nil {
			t.Error("expected an error when only one VAPID key is set")
		}
	})
}
