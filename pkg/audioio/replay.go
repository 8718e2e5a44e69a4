package audioio

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// replay pretends a recorded wav / flac file is a microphone.
// Handy to exercise the whole pipeline on machines (or CI) without a mic.
type replay struct {
	fs    afero.Fs
	path  string
	guard *handleGuard
}

// NewReplay returns a binding which plays back path chunk by chunk.
// The file must already be in the capture format, we do not resample.
func NewReplay(fs afero.Fs, path string) CaptureBinding {
	return &replay{
		fs:    fs,
		path:  path,
		guard: newHandleGuard("replay " + path),
	}
}

func (r *replay) Open(config models.CaptureConfig) (result CaptureHandle, err error) {
	if err = config.Validate(); err != nil {
		return nil, errors.Wrap(ErrPlatformUnavailable, err.Error())
	}
	if err = r.guard.acquire(); err != nil {
		return nil, err
	}
	release := r.guard.releaser()
	defer func() {
		if err != nil {
			release()
		}
	}()

	samples, err := r.decode(config)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", r.path).Int("sample_count", len(samples)).Int("chunk_size", config.ChunkSize).Msg("replay START recording...")
	return &replayHandle{
		samples:   samples,
		chunkSize: config.ChunkSize,
		release:   release,
	}, nil
}

func (r *replay) decode(config models.CaptureConfig) ([]int16, error) {
	f, err := r.fs.Open(r.path)
	if err != nil {
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot open %s: %v", r.path, err)
	}
	defer func() { dbg(f.Close()) }()

	var samples []int16
	var info audio_utils.PCMInfo
	switch ext := strings.ToLower(filepath.Ext(r.path)); ext {
	case ".wav":
		samples, info, err = audio_utils.DecodeFromWav(f)
	case ".flac":
		samples, info, err = audio_utils.DecodeFromFlac(f)
	default:
		return nil, errors.Wrapf(ErrPlatformUnavailable, "unknown replay file extension %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot decode %s: %v", r.path, err)
	}
	if !info.Matches(config) {
		return nil, errors.Wrapf(ErrPlatformUnavailable, "%s is %d Hz / %d ch / %d bit, expected %d Hz / %d ch / %d bit",
			r.path, info.SampleRate, info.NumChannels, info.BitDepth, config.SampleRate, config.NumChannels, config.BitDepth)
	}
	return samples, nil
}

type replayHandle struct {
	chunkSize int
	release   func()

	mu      sync.Mutex
	samples []int16
	offset  int
	closed  bool
}

func (h *replayHandle) Read() ([]int16, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.Wrap(ErrDeviceError, "read on a closed replay handle")
	}
	end := h.offset + h.chunkSize
	if end > len(h.samples) {
		end = len(h.samples)
	}
	chunk := make([]int16, end-h.offset)
	copy(chunk, h.samples[h.offset:end])
	h.offset = end
	return chunk, nil
}

// Remaining is how many samples were not read yet.
func (h *replayHandle) Remaining() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples) - h.offset
}

func (h *replayHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.samples = nil
	h.release()
	return nil
}
