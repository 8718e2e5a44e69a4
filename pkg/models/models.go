package models

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// SampleRate is what the downstream transcriber (Whisper) requires.
	SampleRate     uint32 = 16000
	NumChannels    uint32 = 1
	BitDepth       uint32 = 16
	ChunkSize             = 4096
	sampleMaxValue        = 32768.0
)

// CaptureConfig is the one and only capture format we support.
// Treat it as a value, sessions copy it on construction.
type CaptureConfig struct {
	SampleRate  uint32
	NumChannels uint32
	BitDepth    uint32
	// ChunkSize is in samples (not bytes).
	ChunkSize int
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:  SampleRate,
		NumChannels: NumChannels,
		BitDepth:    BitDepth,
		ChunkSize:   ChunkSize,
	}
}

// WithChunkSize returns a copy, n <= 0 keeps the current chunk size.
func (c CaptureConfig) WithChunkSize(n int) CaptureConfig {
	if n > 0 {
		c.ChunkSize = n
	}
	return c
}

func (c CaptureConfig) Validate() error {
	if c.SampleRate != SampleRate || c.NumChannels != NumChannels || c.BitDepth != BitDepth {
		return fmt.Errorf("unsupported capture format %d Hz / %d ch / %d bit, only %d Hz / %d ch / %d bit is supported",
			c.SampleRate, c.NumChannels, c.BitDepth, SampleRate, NumChannels, BitDepth)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}

// ChunkBytes is the byte size of one chunk for S16 samples.
func (c CaptureConfig) ChunkBytes() int {
	return c.ChunkSize * int(c.NumChannels) * int(c.BitDepth/8)
}

// Waveform is the finalized output of one recording, normalized to [-1.0, 1.0).
type Waveform []float32

func (w Waveform) Len() int {
	return len(w)
}

func (w Waveform) Duration(sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(len(w)) * time.Second / time.Duration(sampleRate)
}

// NormalizeSample maps one S16 sample into [-1.0, 1.0).
func NormalizeSample(s int16) float32 {
	return float32(float64(s) / sampleMaxValue)
}

type Trace struct {
	CreatedAt time.Time
	Creator   string

	ProcessedAt time.Time
	Processor   string
}

func (t Trace) Log() {
	log.Trace().Time("created_at", t.CreatedAt).Str("creator", t.Creator).Time("processed_at", t.ProcessedAt).Str("processor", t.Processor).Dur("dur_to_process", t.ProcessedAt.Sub(t.CreatedAt)).Msgf("tracing")
}

func NewTrace(creator string) Trace {
	return Trace{
		CreatedAt: time.Now(),
		Creator:   creator,
	}
}

// Processed stamps the trace as done by processor.
func (t Trace) Processed(processor string) Trace {
	t.ProcessedAt = time.Now()
	t.Processor = processor
	return t
}
