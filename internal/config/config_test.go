package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scan.Marker != "TODO" {
		t.Errorf("Marker = %q, want TODO", cfg.Scan.Marker)
	}
	if cfg.Git.DefaultBranch != "main" || cfg.Git.FallbackBranch != "master" {
		t.Errorf("branches = %q/%q, want main/master", cfg.Git.DefaultBranch, cfg.Git.FallbackBranch)
	}
	if cfg.Leaderboard.Capacity != 100 {
		t.Errorf("Capacity = %d, want 100", cfg.Leaderboard.Capacity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.Scan.Marker != "TODO" {
		t.Errorf("Marker = %q, want default TODO", cfg.Scan.Marker)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.Scan.Marker = "FIXME"
	cfg.Leaderboard.Capacity = 25
	cfg.Server.Port = 9001

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Scan.Marker != "FIXME" {
		t.Errorf("Marker = %q, want FIXME", loaded.Scan.Marker)
	}
	if loaded.Leaderboard.Capacity != 25 {
		t.Errorf("Capacity = %d, want 25", loaded.Leaderboard.Capacity)
	}
	if loaded.Server.Port != 9001 {
		t.Errorf("Port = %d, want 9001", loaded.Server.Port)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := []byte(`{"version": 1, "scan": {"marker": "HACK"}}`)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), partial, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scan.Marker != "HACK" {
		t.Errorf("Marker = %q, want HACK", cfg.Scan.Marker)
	}
	if cfg.Git.CloneDepth != 1000 {
		t.Errorf("CloneDepth = %d, want default 1000", cfg.Git.CloneDepth)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad version", func(c *Config) { c.Version = 99 }},
		{"empty marker", func(c *Config) { c.Scan.Marker = "" }},
		{"zero capacity", func(c *Config) { c.Leaderboard.Capacity = 0 }},
		{"zero clone depth", func(c *Config) { c.Git.CloneDepth = 0 }},
		{"zero repo age", func(c *Config) { c.Sweep.MaxRepoAgeDays = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/relic"

	if got := cfg.ReposDir(); got != filepath.Join("/var/lib/relic", "repos") {
		t.Errorf("ReposDir() = %q", got)
	}
	if got := cfg.LeaderboardPath(); got != filepath.Join("/var/lib/relic", "leaderboard.json") {
		t.Errorf("LeaderboardPath() = %q", got)
	}

	cfg.Leaderboard.Path = "/tmp/lb.json"
	if got := cfg.LeaderboardPath(); got != "/tmp/lb.json" {
		t.Errorf("absolute LeaderboardPath() = %q", got)
	}
}
