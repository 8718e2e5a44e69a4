// TLDR; Go itself cannot work with Microphone's well
// BUT it can bind with C-libraries which can do this with a bit of black-magic.
package audioio

import (
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

// There is one microphone per process, so every microphone binding shares this guard.
var microphoneGuard = newHandleGuard("microphone")

// MicrophoneOptions can be nil, or zero, in which case miniaudio picks the backend.
type MicrophoneOptions struct {
	// Backends in priority order, e.g. malgo.BackendAaudio, malgo.BackendOpensl on Android.
	Backends []malgo.Backend
	// Environment is the opaque host context handed over on initialization.
	// We keep it around for the lifetime of the binding but never look inside.
	Environment any
}

type microphone struct {
	opts MicrophoneOptions
}

// NewMicrophone returns a binding over the default capture device (miniaudio).
// Nothing touches the hardware until Open.
func NewMicrophone(opts *MicrophoneOptions) CaptureBinding {
	var xopts MicrophoneOptions
	if opts != nil {
		xopts = *opts
	}
	return &microphone{opts: xopts}
}

func initMalgoContext(backends []malgo.Backend) (*malgo.AllocatedContext, error) {
	log.Info().Msg("malgo init context (miniaudio)")
	return malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		log.Debug().Msg(strings.Replace("malgo devices: "+message, "\n", "", -1))
	})
}

func (m *microphone) Open(config models.CaptureConfig) (result CaptureHandle, err error) {
	if err = config.Validate(); err != nil {
		return nil, errors.Wrap(ErrPlatformUnavailable, err.Error())
	}
	if err = microphoneGuard.acquire(); err != nil {
		return nil, err
	}
	release := microphoneGuard.releaser()
	defer func() {
		if err != nil {
			release()
		}
	}()

	ctx, err := initMalgoContext(m.opts.Backends)
	if err != nil {
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot init malgo context: %v", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.NumChannels
	deviceConfig.SampleRate = config.SampleRate
	deviceConfig.PeriodSizeInFrames = uint32(config.ChunkSize)
	deviceConfig.Alsa.NoMMap = 1

	h := &microphoneHandle{
		malgoContext: ctx,
		pending:      make([]byte, 0, config.ChunkBytes()),
		release:      release,
	}

	captureCallbacks := malgo.DeviceCallbacks{
		Data: h.onRecvFrames,
		Stop: h.onStop,
	}
	h.device, err = malgo.InitDevice(ctx.Context, deviceConfig, captureCallbacks)
	if err != nil {
		h.freeContext()
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot init malgo device with config %v: %v", deviceConfig, err)
	}

	log.Info().Uint32("sample_rate", config.SampleRate).Int("chunk_size", config.ChunkSize).Msg("malgo START recording...")
	h.recordingStart = time.Now()
	if err = h.device.Start(); err != nil {
		h.device.Uninit()
		h.freeContext()
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot start malgo device: %v", err)
	}
	return h, nil
}

// microphoneHandle buffers whatever the audio thread delivers until the next Read.
//
// The malgo callbacks run on the audio thread and grab mu, so mu must never be
// held while calling into device.Stop (it waits for that thread).
type microphoneHandle struct {
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	release      func()

	recordingStart time.Time

	mu          sync.Mutex
	pending     []byte
	closing     bool
	closed      bool
	invalidated bool
}

func (h *microphoneHandle) onRecvFrames(_, pSample []byte, _ uint32) {
	h.mu.Lock()
	h.pending = append(h.pending, pSample...)
	h.mu.Unlock()
}

// onStop fires for our own Close as well, only an unexpected stop invalidates the stream.
func (h *microphoneHandle) onStop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closing {
		log.Warn().Dur("recording_duration", time.Since(h.recordingStart)).Msg("malgo device stopped unexpectedly")
		h.invalidated = true
	}
}

func (h *microphoneHandle) Read() ([]int16, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.closing {
		return nil, errors.Wrap(ErrDeviceError, "read on a closed microphone handle")
	}
	// Samples are S16, keep a dangling odd byte for the next read.
	usable := len(h.pending) &^ 1
	if usable > 0 {
		samples := audio_utils.TwoByteDataToInt16Slice(h.pending[:usable])
		h.pending = append(h.pending[:0], h.pending[usable:]...)
		log.Trace().Int("sample_count", len(samples)).Msg("microphone read")
		return samples, nil
	}
	if h.invalidated {
		return nil, errors.Wrap(ErrDeviceError, "microphone stream invalidated")
	}
	return []int16{}, nil
}

func (h *microphoneHandle) Close() error {
	h.mu.Lock()
	if h.closing || h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closing = true
	h.mu.Unlock()

	log.Info().Dur("recording_duration", time.Since(h.recordingStart)).Msg("malgo STOP recording")
	err := h.device.Stop()
	h.device.Uninit()
	h.freeContext()

	h.mu.Lock()
	h.closed = true
	h.pending = nil
	h.mu.Unlock()
	h.release()

	if err != nil {
		return errors.Wrap(err, "cannot stop malgo device")
	}
	return nil
}

func (h *microphoneHandle) freeContext() {
	dbg(h.malgoContext.Uninit())
	h.malgoContext.Free()
}

// CaptureDevice is what ListCaptureDevices reports.
type CaptureDevice struct {
	ID        string
	Name      string
	IsDefault bool
}

// ListCaptureDevices enumerates the capture devices miniaudio can see.
func ListCaptureDevices(backends []malgo.Backend) ([]CaptureDevice, error) {
	ctx, err := initMalgoContext(backends)
	if err != nil {
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot init malgo context: %v", err)
	}
	defer func() {
		dbg(ctx.Uninit())
		ctx.Free()
	}()

	infos, err := ctx.Context.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Wrapf(ErrPlatformUnavailable, "cannot list capture devices: %v", err)
	}
	result := make([]CaptureDevice, 0, len(infos))
	for _, info := range infos {
		result = append(result, CaptureDevice{
			ID:        info.ID.String(),
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return result, nil
}
