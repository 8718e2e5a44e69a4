package audioio

import (
	"github.com/pkg/errors"
)

// Error kinds surfaced by bindings. Callers match them with errors.Is,
// wrapping layers only ever add context.
var (
	ErrPlatformUnavailable = errors.New("platform audio capture unavailable")
	ErrAlreadyOpen         = errors.New("capture handle already open")
	ErrDeviceError         = errors.New("capture device error")
)
