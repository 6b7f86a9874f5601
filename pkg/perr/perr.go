// Package perr defines the fatal-condition taxonomy the rest of this
// module reports through, wrapped with fmt.Errorf the way the codebase
// has always reported errors — no custom error-stacking library, just
// errors.Is-compatible sentinels.
package perr

import "errors"

// Kind tags an error with which of the documented fatal-condition
// categories it belongs to, so callers (notably cmd/tracelattice's exit
// code mapping) can branch on it with errors.Is without string matching.
type Kind struct {
	name string
}

func (k Kind) Error() string { return k.name }

var (
	// ErrConfigInvalid flags bad options or a conflicting argument
	// combination, detected before the event loop starts.
	ErrConfigInvalid = Kind{"config invalid"}

	// ErrAddressUnresolved flags a destination hostname that did not
	// resolve to an address of the requested family.
	ErrAddressUnresolved = Kind{"address unresolved"}

	// ErrPermissionDenied flags a raw socket the process lacks the
	// privilege to open.
	ErrPermissionDenied = Kind{"permission denied"}

	// ErrSendFailed flags a probe whose send failed after its retry
	// budget was exhausted; fatal to that probe, not the algorithm.
	ErrSendFailed = Kind{"send failed"}

	// ErrProtocolUnsupported flags a layer/field mismatch or unknown key
	// in the packet assembler.
	ErrProtocolUnsupported = Kind{"protocol unsupported"}

	// ErrMatchCollision flags two outstanding probes sharing a matching
	// key; recoverable, diagnostic only.
	ErrMatchCollision = Kind{"matching key collision"}

	// ErrLoopInterrupted flags a loop-level failure that terminates all
	// running algorithm instances.
	ErrLoopInterrupted = Kind{"loop interrupted"}
)

// Is reports whether err (or something it wraps) carries kind k,
// satisfying errors.Is's interface.
func (k Kind) Is(target error) bool {
	other, ok := target.(Kind)
	return ok && other.name == k.name
}

// Wrap attaches kind to err via %w so errors.Is(wrapped, kind) succeeds,
// while keeping err's own message.
func Wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, err: err}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.kind.name + ": " + e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k.name == e.kind.name
}

// As is a convenience for recovering the Kind a wrapped error carries.
func As(err error) (Kind, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	if k, ok := err.(Kind); ok {
		return k, true
	}
	return Kind{}, false
}
