package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 11300 {
		t.Fatalf("default port = %d, want 11300", cfg.Port)
	}
	if cfg.MaxJobSize != 65535 {
		t.Fatalf("default max job size = %d, want 65535", cfg.MaxJobSize)
	}
	if cfg.HeapSize != 16<<20 {
		t.Fatalf("default heap size = %d, want %d", cfg.HeapSize, 16<<20)
	}
}

func TestLoadNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "workstalk.json")
	data := []byte(`{"port":11301,"heap_size":1024,"log_level":"debug"}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 11301 {
		t.Fatalf("port = %d, want 11301", cfg.Port)
	}
	if cfg.HeapSize != 1024 {
		t.Fatalf("heap_size = %d, want 1024", cfg.HeapSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q, want debug", cfg.LogLevel)
	}
	// Unset fields keep their defaults.
	if cfg.MaxJobSize != 65535 {
		t.Fatalf("max_job_size = %d, want default 65535", cfg.MaxJobSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("WORKSTALK_PORT", "9999")
	t.Cleanup(func() { os.Unsetenv("WORKSTALK_PORT") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("port = %d, want 9999 from env", cfg.Port)
	}
}
