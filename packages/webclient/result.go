package webclient

import (
	"strings"
	"time"
)

// Headers holds response headers with lower-cased names. Repeated headers
// are joined with ", " so every name maps to exactly one line.
type Headers map[string]string

// Get returns the value for name, matching case-insensitively.
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Result is the immutable record of one completed exchange. Callers own
// the returned value; the client never mutates a Result after handing it
// out.
type Result struct {
	Method  string
	URL     string
	Status  int
	Body    []byte
	Text    string // decoded body, empty when Decoded is false
	Decoded bool
	Headers Headers
	Elapsed time.Duration
}

// Header returns a response header by name, case-insensitively.
func (r *Result) Header(name string) string {
	return r.Headers.Get(name)
}

func (r *Result) ContentType() string {
	return r.Headers.Get("content-type")
}

func (r *Result) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

func (r *Result) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// HistoryEntry records one successful exchange, oldest first.
type HistoryEntry struct {
	Method  string
	URL     string
	Status  int
	Elapsed time.Duration
}

// State is a point-in-time copy of the session's derived state, handed to
// assertion and capture consumers in one piece.
type State struct {
	Forms    map[string]string
	Cookies  map[string]string
	Sessions map[string]string
}
