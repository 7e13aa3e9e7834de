package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DefaultStrategy != "drop" || c.DefaultMethod != "pearson" || c.Colormap != "coolwarm" {
		t.Fatalf("pipeline defaults = %+v", c)
	}
	if c.MaxUploadMB != 32 || c.SessionTTLMin != 60 || c.ServerAddr != "127.0.0.1:8080" {
		t.Fatalf("server defaults = %+v", c)
	}
}

func TestSaveThenLoadRoundTripsAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	c := &Global{}
	for key, val := range map[string]string{
		"default_strategy": "median",
		"colormap":         "viridis",
		"chart_width_in":   "10.5",
		"max_upload_mb":    "4",
	} {
		if err := c.Set(key, val); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("BOXHEAT_COLORMAP", "magma")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DefaultStrategy != "median" || got.ChartWidthIn != 10.5 || got.MaxUploadMB != 4 {
		t.Fatalf("loaded = %+v", got)
	}
	if got.Colormap != "magma" {
		t.Fatalf("env should override file, colormap = %q", got.Colormap)
	}
	if got.Value("chart_width_in") != "10.5" || got.Value("max_upload_mb") != "4" {
		t.Fatalf("Value = %q, %q", got.Value("chart_width_in"), got.Value("max_upload_mb"))
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("colormap: [unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}

func TestSetValidates(t *testing.T) {
	c := &Global{}
	bad := [][2]string{
		{"max_upload_mb", "-1"},
		{"chart_height_in", "tall"},
		{"server_log_level", "verbose"},
		{"nope", "x"},
	}
	for _, kv := range bad {
		if err := c.Set(kv[0], kv[1]); err == nil {
			t.Errorf("Set(%s, %s) should fail", kv[0], kv[1])
		}
	}
	for _, key := range Keys {
		_ = c.Value(key)
	}
}
