package imagery

import "errors"

// Error kinds. Callers match them with errors.Is; the concrete cause is
// wrapped alongside the kind.
var (
	// ErrSourceUnavailable is returned when the remote source cannot be
	// reached or refuses the anonymous login.
	ErrSourceUnavailable = errors.New("remote source unavailable")

	// ErrTransfer is returned when a listing or download fails part way.
	ErrTransfer = errors.New("remote transfer failed")

	// ErrStorage is returned for object store read, write and delete failures.
	ErrStorage = errors.New("object storage failure")

	// ErrImageDecode is returned for malformed or unsupported image bytes.
	ErrImageDecode = errors.New("image decode failed")

	// ErrImageEncode is returned when an image codec fails to encode.
	ErrImageEncode = errors.New("image encode failed")

	// ErrConfiguration is returned at startup when required configuration is
	// missing or invalid.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrObjectNotFound is returned by object stores for missing keys.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoFrames is returned when the remote listing has nothing to animate.
	ErrNoFrames = errors.New("no frames available")

	// ErrUnknownSubject is returned by catalogs for unknown ids.
	ErrUnknownSubject = errors.New("unknown subject")
)
