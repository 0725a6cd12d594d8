package transcribe

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed transcription.
type ErrorKind int

const (
	// KindTransport: the request never produced a response (DNS, refused
	// connection, TLS, context cancelled).
	KindTransport ErrorKind = iota + 1
	// KindRemoteRejected: the API answered with a non-2xx status.
	KindRemoteRejected
	// KindDecode: a structured format came back with a body that is not
	// the expected JSON document.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the failure arm of a transcription. StatusCode and Body are set
// for KindRemoteRejected (and Body for KindDecode).
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRemoteRejected:
		return fmt.Sprintf("transcription API rejected request (status %d): %s", e.StatusCode, e.Body)
	case KindDecode:
		return fmt.Sprintf("decode response: %v", e.Err)
	default:
		return fmt.Sprintf("transcription request: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
