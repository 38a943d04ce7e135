package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GUPSHUP_API_KEY", "key")
	t.Setenv("GUPSHUP_SOURCE", "5210000000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" || cfg.ClubsDir != "data/clubs" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.VerifyToken != "rolesclub-verify" {
		t.Errorf("verify token default = %q", cfg.VerifyToken)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GUPSHUP_API_KEY", "key")
	t.Setenv("GUPSHUP_SOURCE", "5210000000000")
	t.Setenv("CLUBS_DIR", "/var/lib/rolesbot/clubs")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClubsDir != "/var/lib/rolesbot/clubs" || cfg.Port != "9000" {
		t.Errorf("overrides = %+v", cfg)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("GUPSHUP_API_KEY", "")
	t.Setenv("GUPSHUP_SOURCE", "")

	_, err := Load()
	if err == nil {
		t.Fatal("want error for missing required variables")
	}
	for _, name := range []string{"GUPSHUP_API_KEY", "GUPSHUP_SOURCE"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should name %s", err, name)
		}
	}
}
