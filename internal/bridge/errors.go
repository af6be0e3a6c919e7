package bridge

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorKind classifies a failed poll.
type ErrorKind int

const (
	// KindUnreachable covers refused connections, dial failures and timeouts.
	KindUnreachable ErrorKind = iota + 1
	// KindInvalidPayload covers replies that are not a usable structured object.
	KindInvalidPayload
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindInvalidPayload:
		return "invalid_payload"
	default:
		return "unknown"
	}
}

var (
	// ErrUnreachable matches any *Error of KindUnreachable under errors.Is.
	ErrUnreachable = errors.New("bridge unreachable")
	// ErrInvalidPayload matches any *Error of KindInvalidPayload under errors.Is.
	ErrInvalidPayload = errors.New("bridge payload invalid")
)

// maxRawLen bounds how much of a bad reply is kept for diagnostics.
const maxRawLen = 512

// Error is returned by Poll. Raw holds the reply text for invalid payloads.
type Error struct {
	Kind ErrorKind
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	base := ErrUnreachable
	if e.Kind == KindInvalidPayload {
		base = ErrInvalidPayload
	}
	if e.Err == nil {
		return base.Error()
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrInvalidPayload:
		return e.Kind == KindInvalidPayload
	}
	return false
}

// KindOf returns the kind of a bridge error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var bErr *Error
	if errors.As(err, &bErr) {
		return bErr.Kind
	}
	return 0
}

func unreachable(err error) error {
	return &Error{Kind: KindUnreachable, Err: err}
}

func invalidPayload(raw []byte, err error) error {
	text := string(raw)
	if len(text) > maxRawLen {
		cut := maxRawLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "…"
	}
	return &Error{Kind: KindInvalidPayload, Raw: text, Err: err}
}
