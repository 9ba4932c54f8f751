package product

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Kind classifies a failed lookup by the stage that failed.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindTransport
	KindMalformedJSON
	KindMissingField
	KindImageFetch
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindTransport:
		return "transport_failure"
	case KindMalformedJSON:
		return "malformed_json"
	case KindMissingField:
		return "missing_field"
	case KindImageFetch:
		return "image_fetch_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinel errors, one per Kind. Match with errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrTransport     = errors.New("metadata transport failure")
	ErrMalformedJSON = errors.New("malformed metadata json")
	ErrMissingField  = errors.New("missing metadata field")
	ErrImageFetch    = errors.New("image fetch failure")
)

// Sentinel returns the sentinel error matching k, or nil.
func (k Kind) Sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindTransport:
		return ErrTransport
	case KindMalformedJSON:
		return ErrMalformedJSON
	case KindMissingField:
		return ErrMissingField
	case KindImageFetch:
		return ErrImageFetch
	default:
		return nil
	}
}

// LookupError is the typed failure of a lookup. Exactly one Kind is set;
// Err holds the underlying cause when there is one.
type LookupError struct {
	Kind    Kind
	Barcode string
	// Field names the offending metadata field for KindMissingField.
	Field string
	// Status is the upstream HTTP status when the failure was a non-2xx response.
	Status int
	Err    error
}

func (e *LookupError) Error() string {
	var b strings.Builder
	b.WriteString("lookup")
	if e.Barcode != "" {
		b.WriteString(" ")
		b.WriteString(e.Barcode)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *LookupError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or 0 if err is not a *LookupError.
func KindOf(err error) Kind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}
