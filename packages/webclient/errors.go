package webclient

import (
	"errors"
	"fmt"
)

var (
	errNoCharset   = errors.New("content-type declares no charset")
	errInvalidUTF8 = errors.New("body is not valid utf-8")
)

// TransportError reports a failure before a usable response arrived:
// connection refused, DNS failure, deadline exceeded, malformed URL.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports an HTTP error status (>= 400). The full response is
// still available on the Result returned alongside it.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
}

// FaultError reports a fault the application itself flagged through the
// configured fault header. When present it supersedes StatusError: the
// server-side message is the better diagnostic.
type FaultError struct {
	Method  string
	URL     string
	Status  int
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s %s: application fault: %s", e.Method, e.URL, e.Message)
}

// DecodeError reports a response body that could not be decoded with the
// requested charset, or a charset that could not be determined.
type DecodeError struct {
	Charset string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode body as %q: %v", e.Charset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
