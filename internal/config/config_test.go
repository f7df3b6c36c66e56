package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DedupeThreshold != 90 || c.DedupeBlockSize != 2 || c.DedupeMinNonNull != 1 || c.DedupeMaxPairsPerBlock != 50000 {
		t.Fatalf("unexpected dedupe defaults: %+v", c)
	}
	if c.DedupeScorer != "token_set" || c.OutlierThreshold != 3.5 || c.MaxRows != 100000 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if want := filepath.Join(home, DirName, "history.db"); c.HistoryDB != want {
		t.Fatalf("history_db=%q want %q", c.HistoryDB, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("dedupe_threshold: 80\nserve_addr: 0.0.0.0:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DQCHECK_DEDUPE_THRESHOLD", "75")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DedupeThreshold != 75 {
		t.Fatalf("env should win, got %d", c.DedupeThreshold)
	}
	if c.ServeAddr != "0.0.0.0:9000" {
		t.Fatalf("file value lost: %q", c.ServeAddr)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestSetSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range map[string]string{
		"dedupe_threshold": "85",
		"default_provider": "Local",
		"log_format":       "JSON",
		"api_key":          "sk-abcdef123456",
	} {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	if err := Save(c, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if back.DedupeThreshold != 85 || back.DefaultProvider != "ollama" || back.LogFormat != "json" {
		t.Fatalf("round trip lost values: %+v", back)
	}
	if got, _ := back.Get("api_key"); got != "sk-****456" {
		t.Fatalf("api key not masked: %q", got)
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	bad := map[string]string{
		"dedupe_threshold":  "101",
		"dedupe_block_size": "0",
		"outlier_threshold": "-1",
		"log_format":        "xml",
		"default_provider":  "openai",
		"no_such_key":       "1",
	}
	for k, v := range bad {
		if err := c.Set(k, v); err == nil {
			t.Errorf("Set(%s, %s): expected error", k, v)
		}
	}
}

func TestKeysAreGettable(t *testing.T) {
	c := &Global{}
	for _, k := range Keys() {
		if _, err := c.Get(k); err != nil {
			t.Errorf("Get(%s): %v", k, err)
		}
	}
	if len(Keys()) != len(defaults) {
		t.Fatalf("keys and defaults disagree: %d vs %d", len(Keys()), len(defaults))
	}
	if !strings.HasPrefix(Mask("abcdefghij"), "abc") || Mask("abc") != "******" {
		t.Fatalf("unexpected mask output")
	}
}
