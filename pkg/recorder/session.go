// Package recorder owns the recording session state machine:
// Idle -> Start -> Recording -> Stop -> Idle.
//
// While Recording the session exclusively owns one audioio.CaptureHandle,
// accumulates raw S16 samples from it, and on Stop hands back a normalized
// models.Waveform. The raw buffer never survives a Stop.
package recorder

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/petrzlen/micbridge/pkg/audioio"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ChunkListener gets every non-empty delta chunk, outside the session lock.
// It must not keep the slice beyond the call unless it copies it.
type ChunkListener func(chunk []int16)

type Option func(*Session)

// WithConfig overrides the capture config, only the chunk size is really free to change.
func WithConfig(config models.CaptureConfig) Option {
	return func(s *Session) {
		s.config = config
	}
}

// WithDumper writes every finalized recording as dir/recording-<n>.wav into fs.
func WithDumper(fs afero.Fs, dir string) Option {
	return func(s *Session) {
		s.dumpFs = fs
		s.dumpDir = dir
	}
}

func WithChunkListener(listener ChunkListener) Option {
	return func(s *Session) {
		s.listeners = append(s.listeners, listener)
	}
}

// Session is safe for concurrent use, e.g. a control goroutine calling
// Start / Stop while a polling goroutine calls ReadAudio.
//
// Invariant: state == Recording iff handle != nil. Both, and raw, are only
// touched with mu held.
type Session struct {
	binding   audioio.CaptureBinding
	config    models.CaptureConfig
	listeners []ChunkListener
	dumpFs    afero.Fs
	dumpDir   string

	mu             sync.Mutex
	state          State
	handle         audioio.CaptureHandle
	raw            []int16
	trace          models.Trace
	recordingCount int
}

// New creates an Idle session over binding. Callers should Close it when done,
// though an abandoned Recording session releases its handle once collected.
func New(binding audioio.CaptureBinding, opts ...Option) *Session {
	s := &Session{
		binding: binding,
		config:  models.DefaultCaptureConfig(),
		state:   Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	runtime.SetFinalizer(s, func(s *Session) {
		dbg(s.Close())
	})
	return s
}

func (s *Session) Config() models.CaptureConfig {
	return s.config
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsRecording() bool {
	return s.State() == Recording
}

// Start opens the binding and begins a new recording.
// Calling Start while already Recording is a no-op, it never opens a second handle.
// On failure the session stays Idle and the binding error kind is kept.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Recording {
		log.Debug().Msg("session already recording, start is a no-op")
		return nil
	}

	handle, err := s.binding.Open(s.config)
	if err != nil {
		return errors.Wrap(err, "cannot start recording session")
	}
	s.handle = handle
	s.raw = s.raw[:0]
	s.state = Recording
	s.trace = models.NewTrace("recorder_session")
	log.Info().Int("chunk_size", s.config.ChunkSize).Msg("recording session started")
	return nil
}

// ReadAudio drains newly available samples into the session and returns them
// as a delta chunk for live monitoring. Idle sessions return an empty chunk.
//
// A device error leaves the session Recording with everything captured so far,
// so a later Stop still returns the partial recording.
func (s *Session) ReadAudio() ([]int16, error) {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return []int16{}, nil
	}
	delta, err := s.drainLocked()
	s.mu.Unlock()

	s.notify(delta)
	if err != nil {
		return delta, errors.Wrap(err, "cannot read audio from recording session")
	}
	return delta, nil
}

// drainLocked reads once from the handle and appends to raw, mu must be held.
func (s *Session) drainLocked() ([]int16, error) {
	chunk, err := s.handle.Read()
	if len(chunk) > 0 {
		s.raw = append(s.raw, chunk...)
		log.Trace().Int("sample_count", len(chunk)).Int("total_sample_count", len(s.raw)).Msg("session drained chunk")
	}
	if chunk == nil {
		chunk = []int16{}
	}
	return chunk, err
}

// Stop finishes the recording and returns the normalized waveform.
// Stopping an Idle session returns an empty waveform, so teardown paths can call it unconditionally.
func (s *Session) Stop() (models.Waveform, error) {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return models.Waveform{}, nil
	}

	// Drain before close, whatever is buffered right now belongs to this recording.
	delta, err := s.drainLocked()
	if err != nil {
		log.Warn().Err(err).Int("sample_count", len(s.raw)).Msg("final drain failed, keeping partial recording")
	}
	s.releaseLocked()

	raw := s.raw
	s.raw = nil
	waveform := audio_utils.Int16ToWaveform(raw)
	s.recordingCount++
	recordingNum := s.recordingCount
	trace := s.trace.Processed("recorder_session_stop")
	s.mu.Unlock()

	trace.Log()
	log.Info().Int("sample_count", waveform.Len()).Dur("audio_duration", waveform.Duration(s.config.SampleRate)).Msg("recording session stopped")
	s.notify(delta)
	s.dump(recordingNum, raw)
	return waveform, nil
}

// releaseLocked closes the handle and goes Idle, mu must be held.
func (s *Session) releaseLocked() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			log.Error().Err(err).Msg("cannot close capture handle")
		}
	}
	s.handle = nil
	s.state = Idle
}

// Close tears the session down, releasing the platform handle if still Recording.
// The pending recording is discarded. Close is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Recording {
		log.Info().Int("sample_count", len(s.raw)).Msg("closing session while recording, discarding samples")
		s.releaseLocked()
	}
	s.raw = nil
	return nil
}

func (s *Session) notify(delta []int16) {
	if len(delta) == 0 {
		return
	}
	for _, listener := range s.listeners {
		listener(delta)
	}
}

func (s *Session) dump(recordingNum int, raw []int16) {
	if s.dumpFs == nil || len(raw) == 0 {
		return
	}
	startTime := time.Now()
	wavData, err := audio_utils.ConvertInt16SamplesToWav(raw, s.config.SampleRate, s.config.NumChannels)
	if err != nil {
		log.Error().Err(err).Int("sample_count", len(raw)).Msg("could not convert recording to wav")
		return
	}
	if err := s.dumpFs.MkdirAll(s.dumpDir, 0755); err != nil {
		log.Error().Err(err).Str("dir", s.dumpDir).Msg("could not create dump dir")
		return
	}
	filename := filepath.Join(s.dumpDir, fmt.Sprintf("recording-%d.wav", recordingNum))
	dbg(afero.WriteFile(s.dumpFs, filename, wavData, 0644))
	log.Debug().Str("filename", filename).Dur("dump_duration", time.Since(startTime)).Msg("recording dumped")
}

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}
