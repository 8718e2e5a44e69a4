package audioio

import (
	"github.com/petrzlen/micbridge/pkg/models"
)

// CaptureBinding is the capability surface over a native audio input.
// Implementations hide all platform marshaling, so tests can substitute a double.
type CaptureBinding interface {
	// Open requests a capture stream sized for at least one chunk of config.ChunkSize samples.
	// Fails with ErrPlatformUnavailable when the OS denies the request,
	// and with ErrAlreadyOpen while another handle of the same binding is live.
	Open(config models.CaptureConfig) (CaptureHandle, error)
}

// CaptureHandle is one live capture stream.
type CaptureHandle interface {
	// Read returns whatever samples are buffered right now, possibly none.
	// Fails with ErrDeviceError once the stream got invalidated (e.g. device unplugged).
	Read() ([]int16, error)
	// Close releases the stream, closing twice is a no-op.
	Close() error
}
