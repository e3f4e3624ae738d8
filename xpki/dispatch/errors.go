package dispatch

import "github.com/juju/errors"

// Error kinds surfaced by the dispatcher. Callers distinguish them with
// errors.Cause(err) == dispatch.ErrXxx, the same sentinel-error pattern
// used elsewhere in this codebase.
var (
	// ErrUnexpectedPacket is returned when a packet tag is not permitted in
	// the current Mode (e.g. PUBLIC-KEY in ModeSigsOnly).
	ErrUnexpectedPacket = errors.New("dispatch: unexpected packet for mode")

	// ErrPubkeyAlgo is returned when a signature or session-key packet
	// names a public-key algorithm the handlers do not support.
	ErrPubkeyAlgo = errors.New("dispatch: unsupported public-key algorithm")

	// ErrNoSecKey is returned when decrypting a session key requires a
	// secret key the handlers could not locate.
	ErrNoSecKey = errors.New("dispatch: no secret key available")

	// ErrBadSign is returned when a signature fails verification.
	ErrBadSign = errors.New("dispatch: bad signature")

	// ErrSigClass is returned for a signature packet whose class byte is
	// not one of the classes the dispatcher recognizes.
	ErrSigClass = errors.New("dispatch: unknown signature class")

	// ErrCompressionNesting is returned when COMPRESSED packets nest more
	// than maxCompressDepth levels deep, guarding against unbounded
	// recursive inflate calls.
	ErrCompressionNesting = errors.New("dispatch: compressed packet nesting too deep")
)
