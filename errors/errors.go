package errors

import (
	// Go internal packages
	"bytes"
	"encoding/json"
	"errors"
)

// Error defines a standard application error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Wrapped underlying error.
	WrappedErr error `json:"wrapped_err,omitempty"`
}

// Error returns the string representation of the error message.
func (e *Error) Error() string {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
		Cause   string `json:"cause,omitempty"`
	}{e.Kind, e.Message, causeOf(e.WrappedErr)})
	return buf.String()
}

func causeOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.WrappedErr
}

// NewError returns standard go error with given string
func NewError(e string) error {
	return errors.New(e)
}

// Kind defines the kind or class of an error.
type Kind uint8

// Transport agnostic error "kinds"
const (
	Other        Kind = iota // Unclassified error
	Internal                 // Internal error
	Conflict                 // Conflict when an entity already exists
	Invalid                  // Invalid input, validation error etc
	NotFound                 // Entity does not exist
	Unauthorized             // Unauthorized access
	Forbidden                // Forbidden access

	Unauthenticated       // No session token available
	NoPaymentHeadsFound   // Billing configuration missing for an application type
	GatewayInit           // Remote initiation failed or returned no redirect URL
	Verification          // Status check failed or returned a malformed body
	SessionExpired        // Backend rejected the stored session token
	DirectPaymentDisabled // Direct gateway payment is switched off
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "unclassified error"
	case Internal:
		return "internal error"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid input"
	case NotFound:
		return "entity not found"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Unauthenticated:
		return "unauthenticated"
	case NoPaymentHeadsFound:
		return "no payment heads found"
	case GatewayInit:
		return "gateway initialization error"
	case Verification:
		return "verification error"
	case SessionExpired:
		return "session expired"
	case DirectPaymentDisabled:
		return "direct payment disabled"
	default:
		return "unknown error kind"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case error:
			e.WrappedErr = arg
		case string:
			e.Message = arg
		}
	}
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// MessageOf returns the user-facing message of err. Plain errors yield their text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.WrappedErr != nil {
			return e.WrappedErr.Error()
		}
		return e.Kind.String()
	}
	return err.Error()
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string) error {
	return E(NotFound, msg)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(msg string) error {
	return E(Unauthorized, msg)
}

// NewUnauthenticatedError is returned when no session token can be read from storage.
func NewUnauthenticatedError() error {
	return E(Unauthenticated, "You are not logged in. Please log in and try again.")
}

// NewSessionExpiredError is returned for requests rejected because the session ended.
func NewSessionExpiredError(reason string) error {
	return E(SessionExpired, "Your session has expired. Please log in again.", errors.New(reason))
}

var (
	As = errors.As
	Is = errors.Is
)
