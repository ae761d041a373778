package slideshow

import "errors"

// Error taxonomy for a render session. Exactly one of these (or a caller
// cancellation error) is returned on failure; per-frame draw faults are
// recovered inside the scheduler and never surface here.
var (
	// ErrNoInput is returned when zero photos are supplied. It fails
	// before any surface or encoder is allocated.
	ErrNoInput = errors.New("slideshow: no photos supplied")

	// ErrLoad is returned when an image fails to decode during the load
	// barrier and the abort policy is in effect.
	ErrLoad = errors.New("slideshow: image load failed")

	// ErrEncoder is returned when the encoder sink reports a fatal
	// failure.
	ErrEncoder = errors.New("slideshow: encoder failed")

	// ErrTimedOut is returned when the session timeout elapses before
	// natural completion. Distinct from ErrEncoder so callers can tell
	// slow-device failures from encoder failures.
	ErrTimedOut = errors.New("slideshow: render timed out")
)
