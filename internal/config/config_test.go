package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/rs/zerolog"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != zerolog.InfoLevel {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.CaptureConfig() != models.DefaultCaptureConfig() {
		t.Errorf("capture config = %+v", cfg.CaptureConfig())
	}
	if cfg.DumpDir != "" || cfg.MonitorAddr != "" || cfg.Backends != nil {
		t.Errorf("unexpected non-zero config %+v", cfg)
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		EnvLogLevel:    "DEBUG",
		EnvChunkSize:   "1024",
		EnvDumpDir:     "output",
		EnvMonitorAddr: ":8081",
		EnvBackend:     "aaudio, opensl",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != zerolog.DebugLevel {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.CaptureConfig().ChunkSize != 1024 || cfg.CaptureConfig().SampleRate != models.SampleRate {
		t.Errorf("capture config = %+v", cfg.CaptureConfig())
	}
	if cfg.DumpDir != "output" || cfg.MonitorAddr != ":8081" {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.Backends) != 2 || cfg.Backends[0] != malgo.BackendAaudio || cfg.Backends[1] != malgo.BackendOpensl {
		t.Errorf("backends = %v", cfg.Backends)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	for _, env := range []map[string]string{
		{EnvLogLevel: "loud"},
		{EnvChunkSize: "many"},
		{EnvChunkSize: "0"},
		{EnvBackend: "directsound9000"},
	} {
		if _, err := FromEnv(envOf(env)); err == nil {
			t.Errorf("expected error for %v", env)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(EnvChunkSize+"=2048\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvChunkSize, "")
	os.Unsetenv(EnvChunkSize)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != 2048 {
		t.Errorf("chunk size = %d, want 2048", cfg.ChunkSize)
	}
}
