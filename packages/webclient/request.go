package webclient

import (
	"net/http"
	"net/url"
	"time"
)

// Charset values with meaning beyond a literal encoding label.
const (
	// CharsetAuto decodes with the charset the response Content-Type
	// declares. A response that declares none is a DecodeError.
	CharsetAuto = "auto"
	// CharsetRaw skips decoding entirely: Result.Text stays empty and no
	// form scraping happens for the exchange.
	CharsetRaw = "raw"

	defaultCharset = "utf-8"
)

// BasicAuth credentials are applied preemptively through the
// Authorization header, on the exchange and on any priming GET it
// triggers.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes one exchange. The zero value of every field means
// "use the session default".
type Request struct {
	// Method is used verbatim when set. Empty infers POST when Body or
	// Form is present, GET otherwise.
	Method string
	// Path is appended to the client's base URL by plain concatenation,
	// query string included.
	Path string
	// Form is url-encoded into the body, one pair per value. Anti-forgery
	// token injection applies, see Client.Do. An empty non-nil map still
	// posts (an empty body, unless injection fills it in).
	Form url.Values
	// Body is a pre-encoded payload sent as-is. It wins over Form when
	// both are set.
	Body string
	// Headers overlay the session defaults; the caller wins per key and
	// multi-valued keys are preserved.
	Headers http.Header
	// Cookies overrides cookie recycling: nil recycles the previous
	// response's cookies, an empty non-nil map sends none.
	Cookies map[string]string
	// Auth applies basic auth to this exchange.
	Auth *BasicAuth
	// Charset names the body encoding: a label such as "utf-8" (the
	// default), CharsetAuto, or CharsetRaw.
	Charset string
	// Timeout overrides the client timeout for this exchange.
	Timeout time.Duration
}

// resolveMethod applies the inference rule for unset methods. Explicit
// methods pass through verbatim, whatever the body looks like.
func (r *Request) resolveMethod() string {
	if r.Method != "" {
		return r.Method
	}
	if r.Body != "" || r.Form != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// RequestOption mutates a Request before it is sent.
type RequestOption func(*Request)

func WithMethod(method string) RequestOption {
	return func(r *Request) { r.Method = method }
}

// WithHeader replaces the values for one header on the request.
func WithHeader(name string, values ...string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = http.Header{}
		}
		r.Headers.Del(name)
		for _, v := range values {
			r.Headers.Add(name, v)
		}
	}
}

func WithHeaders(headers http.Header) RequestOption {
	return func(r *Request) { r.Headers = headers }
}

// WithCookies sends exactly the given cookies instead of recycling the
// previous response's.
func WithCookies(cookies map[string]string) RequestOption {
	return func(r *Request) { r.Cookies = cookies }
}

// WithNoCookies suppresses cookie recycling for the request.
func WithNoCookies() RequestOption {
	return func(r *Request) { r.Cookies = map[string]string{} }
}

func WithAuth(username, password string) RequestOption {
	return func(r *Request) {
		r.Auth = &BasicAuth{Username: username, Password: password}
	}
}

func WithCharset(charset string) RequestOption {
	return func(r *Request) { r.Charset = charset }
}

func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = d }
}
