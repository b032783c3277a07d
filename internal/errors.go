package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies resolution failures. The kind decides whether the
// fallback chain keeps going (soft) or stops immediately (hard).
type ErrorKind int

const (
	// KindInvalidLink is the only hard failure: the input never matched the
	// provider's share-URL shape, so no strategy is worth trying.
	KindInvalidLink ErrorKind = iota
	// KindVerificationRequired is the provider's bot-detection response
	// (errno 400210); the current strategy is burned, the next may pass.
	KindVerificationRequired
	// KindAuthExpired means stored cookies were rejected. Soft for the
	// chain, but surfaced at warning level as a maintenance signal.
	KindAuthExpired
	// KindNetwork covers timeouts and connection failures on any strategy.
	KindNetwork
	// KindNotFound: the share exists no more (expired, cancelled, removed).
	KindNotFound
	// KindProvider is any other non-zero errno from the provider's API.
	KindProvider
	// KindExhausted is the terminal aggregate after every strategy failed.
	KindExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidLink:
		return "InvalidLink"
	case KindVerificationRequired:
		return "VerificationRequired"
	case KindAuthExpired:
		return "AuthExpired"
	case KindNetwork:
		return "NetworkError"
	case KindNotFound:
		return "NotFound"
	case KindProvider:
		return "ProviderError"
	case KindExhausted:
		return "AllStrategiesExhausted"
	default:
		return "Unknown"
	}
}

// Soft reports whether the chain may continue with the next strategy after
// a failure of this kind.
func (k ErrorKind) Soft() bool {
	return k != KindInvalidLink && k != KindExhausted
}

// ResolveError is a classified resolution failure. Errno carries the
// provider's numeric code when one was returned.
type ResolveError struct {
	Kind    ErrorKind
	Errno   int
	Message string
	Link    string
	cause   error
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Errno != 0 {
		fmt.Fprintf(&b, " (errno %d)", e.Errno)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error { return e.cause }

// Is lets errors.Is match on a bare kind sentinel built with Kinded.
func (e *ResolveError) Is(target error) bool {
	var re *ResolveError
	if errors.As(target, &re) {
		return re.Kind == e.Kind && (re.Errno == 0 || re.Errno == e.Errno)
	}
	return false
}

// Soft reports whether the chain may continue after this error.
func (e *ResolveError) Soft() bool { return e.Kind.Soft() }

// Kinded returns a bare sentinel for errors.Is comparisons.
func Kinded(kind ErrorKind) error { return &ResolveError{Kind: kind} }

// NewResolveError builds a classified error wrapping an optional cause.
func NewResolveError(kind ErrorKind, message string, cause error) *ResolveError {
	return &ResolveError{Kind: kind, Message: message, cause: cause}
}

// NewInvalidLinkError marks input that never reached the network.
func NewInvalidLinkError(link, reason string) *ResolveError {
	return &ResolveError{Kind: KindInvalidLink, Message: reason, Link: link}
}

// NewNetworkError wraps a transport-level failure from one strategy.
func NewNetworkError(op string, cause error) *ResolveError {
	return &ResolveError{Kind: KindNetwork, Message: op, cause: cause}
}

// ExhaustedError is the terminal failure carrying every attempt's outcome
// so the log tells the operator which strategy died where.
type ExhaustedError struct {
	Link     string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	if len(parts) == 0 {
		return "no strategies available"
	}
	return "all strategies exhausted: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Is(target error) bool {
	var re *ResolveError
	return errors.As(target, &re) && re.Kind == KindExhausted
}

// UserMessage is the generic reply shown to the end user; per-strategy
// detail stays in the logs.
func (e *ExhaustedError) UserMessage() string {
	return "No download link available for this share. The file may be removed, password protected, or the provider is refusing automated access right now."
}

// The provider's bot-detection errno. Documented by the provider as "retry
// through a qualifying client".
const ErrnoVerificationRequired = 400210

// ClassifyErrno maps a provider errno to a ResolveError. The table covers
// the codes the share APIs actually return; everything unknown lands in
// KindProvider.
func ClassifyErrno(errno int, errmsg string) *ResolveError {
	if errno == 0 {
		return nil
	}
	kind := KindProvider
	msg := errmsg
	switch errno {
	case ErrnoVerificationRequired:
		kind = KindVerificationRequired
		if msg == "" {
			msg = "verification challenge required"
		}
	case -6, -9, 4, 6, 110, 111:
		kind = KindAuthExpired
		if msg == "" {
			msg = "session rejected by provider"
		}
	case -4, -5, 7, 10, 11, 12:
		kind = KindNotFound
		if msg == "" {
			msg = "share not found or expired"
		}
	case 31034, 31045:
		kind = KindVerificationRequired
		if msg == "" {
			msg = "anti-crawler verification triggered"
		}
	default:
		if msg == "" {
			msg = fmt.Sprintf("provider error %d", errno)
		}
	}
	return &ResolveError{Kind: kind, Errno: errno, Message: msg}
}
