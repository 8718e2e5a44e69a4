package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel    = "MICBRIDGE_LOG_LEVEL"
	EnvChunkSize   = "MICBRIDGE_CHUNK_SIZE"
	EnvDumpDir     = "MICBRIDGE_DUMP_DIR"
	EnvMonitorAddr = "MICBRIDGE_MONITOR_ADDR"
	EnvBackend     = "MICBRIDGE_BACKEND"
)

type Config struct {
	LogLevel zerolog.Level
	// ChunkSize in samples.
	ChunkSize int
	// DumpDir, when set, gets a wav of every finished recording.
	DumpDir string
	// MonitorAddr, when set, serves live chunks over a websocket.
	MonitorAddr string
	Backends    []malgo.Backend
}

func (c Config) CaptureConfig() models.CaptureConfig {
	return models.DefaultCaptureConfig().WithChunkSize(c.ChunkSize)
}

var backendsByName = map[string]malgo.Backend{
	"aaudio":     malgo.BackendAaudio,
	"opensl":     malgo.BackendOpensl,
	"alsa":       malgo.BackendAlsa,
	"pulseaudio": malgo.BackendPulseaudio,
	"jack":       malgo.BackendJack,
	"coreaudio":  malgo.BackendCoreaudio,
	"wasapi":     malgo.BackendWasapi,
	"null":       malgo.BackendNull,
}

// Load reads envFiles (default .env) into the environment and then parses it.
// A missing env file is fine, the environment alone is a valid config.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debug().Err(err).Msg("cannot load .env file")
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (cfg Config, err error) {
	cfg = Config{
		LogLevel:    zerolog.InfoLevel,
		ChunkSize:   models.ChunkSize,
		DumpDir:     getenv(EnvDumpDir),
		MonitorAddr: getenv(EnvMonitorAddr),
	}

	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid %s", EnvLogLevel)
		}
	}
	if v := getenv(EnvChunkSize); v != "" {
		cfg.ChunkSize, err = strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid %s", EnvChunkSize)
		}
		if cfg.ChunkSize <= 0 {
			return cfg, errors.Errorf("%s must be positive, got %d", EnvChunkSize, cfg.ChunkSize)
		}
	}
	if v := getenv(EnvBackend); v != "" {
		cfg.Backends, err = ParseBackends(v)
		if err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// ParseBackends takes a comma separated priority list, e.g. "aaudio,opensl".
func ParseBackends(s string) ([]malgo.Backend, error) {
	var result []malgo.Backend
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		backend, ok := backendsByName[name]
		if !ok {
			return nil, errors.Errorf("unknown audio backend %q", name)
		}
		result = append(result, backend)
	}
	return result, nil
}
