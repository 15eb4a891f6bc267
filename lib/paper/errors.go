package paper

import "errors"

// Kind is the small typed error taxonomy from spec.md §7. Errors from
// payload validation and from the ranking pipeline carry one of these
// kinds, which api/papersearch/handler.go maps to an HTTP status and a
// client-facing message. The handler's other early exits (invalid JSON,
// not configured, rate limiting) write their responses directly and use
// these kinds only as log tags.
type Kind string

const (
	KindInvalidJSON          Kind = "InvalidJson"
	KindInvalidPayload       Kind = "InvalidPayload"
	KindNotConfigured        Kind = "NotConfigured"
	KindRateLimitInternal    Kind = "RateLimitInternal"
	KindRateLimitExceeded    Kind = "RateLimitExceeded"
	KindCircuitOpen          Kind = "CircuitOpen"
	KindUpstreamRateLimited  Kind = "UpstreamRateLimited"
	KindUpstreamRequestError Kind = "UpstreamRequestError"
	KindInternal             Kind = "Internal"
)

// Error is a typed error carrying the taxonomy kind alongside the
// underlying cause (if any), so handlers can log the real error while
// surfacing only the fixed client-facing message for its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ErrCircuitOpen is returned by the upstream search client when the
// circuit breaker is gating requests.
var ErrCircuitOpen = newError(KindCircuitOpen, errors.New("circuit breaker is open"))

// AsPaperError extracts the typed *Error from err, if any.
func AsPaperError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
