// Package bridge is what the host application talks to.
//
// The host calls Initialize once at startup with its opaque runtime context,
// then drives the process-default recording session through Start, ReadAudio
// and Stop.
package bridge

import (
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/petrzlen/micbridge/pkg/audioio"
	"github.com/petrzlen/micbridge/pkg/recorder"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNotInitialized = errors.New("micbridge not initialized")

type options struct {
	binding        audioio.CaptureBinding
	backends       []malgo.Backend
	sessionOptions []recorder.Option
}

type Option func(*options)

// WithBinding replaces the microphone, e.g. with a replay binding.
func WithBinding(binding audioio.CaptureBinding) Option {
	return func(o *options) {
		o.binding = binding
	}
}

func WithBackends(backends ...malgo.Backend) Option {
	return func(o *options) {
		o.backends = backends
	}
}

func WithSessionOptions(opts ...recorder.Option) Option {
	return func(o *options) {
		o.sessionOptions = append(o.sessionOptions, opts...)
	}
}

var (
	mu      sync.Mutex
	session *recorder.Session
)

// Initialize sets up the default session. appContext is only handed to the
// capture binding, we neither inspect nor keep it elsewhere.
// Calling Initialize again is a no-op until Shutdown.
func Initialize(appContext any, opts ...Option) error {
	mu.Lock()
	defer mu.Unlock()

	if session != nil {
		log.Debug().Msg("micbridge already initialized")
		return nil
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	binding := o.binding
	if binding == nil {
		binding = audioio.NewMicrophone(&audioio.MicrophoneOptions{
			Backends:    o.backends,
			Environment: appContext,
		})
	}
	session = recorder.New(binding, o.sessionOptions...)
	log.Info().Int("chunk_size", session.Config().ChunkSize).Msg("micbridge initialized")
	return nil
}

// Shutdown releases the default session, any in-flight recording is discarded.
func Shutdown() error {
	mu.Lock()
	s := session
	session = nil
	mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

func current() (*recorder.Session, error) {
	mu.Lock()
	defer mu.Unlock()
	if session == nil {
		return nil, ErrNotInitialized
	}
	return session, nil
}

func Start() error {
	s, err := current()
	if err != nil {
		return err
	}
	return s.Start()
}

func ReadAudio() ([]int16, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}
	return s.ReadAudio()
}

func Stop() ([]float32, error) {
	s, err := current()
	if err != nil {
		return nil, err
	}
	return s.Stop()
}

func IsRecording() bool {
	s, err := current()
	if err != nil {
		return false
	}
	return s.IsRecording()
}
