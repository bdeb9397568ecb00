package webclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout bounds one exchange including redirects.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow.
	DefaultMaxRedirects = 10
	// DefaultSessionPattern classifies session cookies. The name group
	// identifies the application a session belongs to and must match at
	// the start of the cookie name.
	DefaultSessionPattern = `session_id_(?P<name>.+)`
	// DefaultFaultHeader is the response header an application uses to
	// report a server-side fault ticket.
	DefaultFaultHeader = "x-application-error"
)

// builtinHeaders is the header floor applied when the caller configures
// no defaults of its own.
var builtinHeaders = map[string]string{
	"user-agent":      "Mozilla/4.0", // some servers are picky
	"accept-language": "en",
}

// Client drives one user session against one application. It is safe for
// concurrent use, but exchanges are serialized: parallel sessions want
// one Client each.
type Client struct {
	base           string
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	insecureTLS    bool
	postbacks      bool
	defaultHeaders map[string]string
	sessionSource  string
	sessionPattern *regexp.Regexp
	sessionNameIdx int
	faultHeader    string
	scanner        FormScanner
	logger         *slog.Logger

	mu       sync.Mutex
	forms    map[string]string
	cookies  map[string]string
	sessions map[string]string
	history  []HistoryEntry
	last     *Result
}

type Option func(*Client)

// New builds a session client for the application at base. Requests
// address base + path by plain string concatenation, so base usually
// ends where paths begin, trailing slash included.
func New(base string, opts ...Option) (*Client, error) {
	c := &Client{
		base:           base,
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		postbacks:      true,
		defaultHeaders: make(map[string]string),
		sessionSource:  DefaultSessionPattern,
		faultHeader:    DefaultFaultHeader,
		scanner:        NewPatternScanner(),
		logger:         slog.Default(),
		forms:          make(map[string]string),
		cookies:        make(map[string]string),
		sessions:       make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if len(c.defaultHeaders) == 0 {
		for k, v := range builtinHeaders {
			c.defaultHeaders[k] = v
		}
	}

	if c.sessionSource != "" {
		pattern, err := regexp.Compile(c.sessionSource)
		if err != nil {
			return nil, fmt.Errorf("session pattern: %w", err)
		}
		idx := pattern.SubexpIndex("name")
		if idx < 0 {
			return nil, fmt.Errorf("session pattern %q has no name group", c.sessionSource)
		}
		c.sessionPattern = pattern
		c.sessionNameIdx = idx
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		transport := &http.Transport{}
		if c.insecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.httpClient = &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   c.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if !c.followRedirect {
					return http.ErrUseLastResponse
				}
				if len(via) >= c.maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}

	return c, nil
}

// WithHTTPClient replaces the underlying transport entirely. The caller
// is then responsible for jar, timeout and redirect policy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithFollowRedirects(follow bool) Option {
	return func(c *Client) { c.followRedirect = follow }
}

func WithMaxRedirects(max int) Option {
	return func(c *Client) { c.maxRedirects = max }
}

// WithInsecureTLS disables certificate verification, for test rigs with
// self-signed certificates.
func WithInsecureTLS(insecure bool) Option {
	return func(c *Client) { c.insecureTLS = insecure }
}

// WithPostbacks enables or disables priming GETs before form
// submissions. On by default.
func WithPostbacks(enabled bool) Option {
	return func(c *Client) { c.postbacks = enabled }
}

func WithDefaultHeader(key, value string) Option {
	return func(c *Client) { c.defaultHeaders[key] = value }
}

// WithDefaultHeaders sets the session-wide header floor. Configuring any
// default header replaces the built-in floor entirely.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithSessionPattern replaces the regexp classifying session cookies. It
// must expose a name capture group. An empty pattern disables session
// tracking.
func WithSessionPattern(pattern string) Option {
	return func(c *Client) { c.sessionSource = pattern }
}

// WithFaultHeader renames the response header carrying application
// faults.
func WithFaultHeader(name string) Option {
	return func(c *Client) { c.faultHeader = strings.ToLower(name) }
}

func WithFormScanner(scanner FormScanner) Option {
	return func(c *Client) { c.scanner = scanner }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Get issues a GET for path relative to the session base.
func (c *Client) Get(path string, opts ...RequestOption) (*Result, error) {
	req := &Request{Method: http.MethodGet, Path: path}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(req)
}

// PostForm submits form fields relative to the session base. A nil form
// degrades to a plain GET, mirroring the method inference.
func (c *Client) PostForm(path string, form url.Values, opts ...RequestOption) (*Result, error) {
	req := &Request{Path: path, Form: form}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(req)
}

// Post sends a pre-encoded body as-is. Callers posting anything other
// than form data set their own Content-Type header.
func (c *Client) Post(path, body string, opts ...RequestOption) (*Result, error) {
	req := &Request{Path: path, Body: body}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(req)
}

// Do runs one exchange. On success the session state (cookies, sessions,
// forms, history) reflects the response and the error is nil. HTTP error
// statuses return both the Result and a StatusError or FaultError; the
// scratch Last() is updated but no other state is. Transport and decode
// failures return a nil Result and leave all state untouched.
func (c *Client) Do(req *Request) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.do(req)
}

// do assumes c.mu is held. Postback priming re-enters here directly so
// one exchange, priming included, stays a single critical section.
func (c *Client) do(req *Request) (*Result, error) {
	url := c.base + req.Path
	method := req.resolveMethod()

	// A form that names its target needs a fresh token first, unless the
	// page was the previous stop in the session.
	if c.needsPostback(req, url) {
		prime := &Request{
			Method:  http.MethodGet,
			Path:    req.Path,
			Headers: req.Headers,
			Cookies: req.Cookies,
			Auth:    req.Auth,
		}
		if _, err := c.do(prime); err != nil {
			return nil, err
		}
	}

	cookies := req.Cookies
	if cookies == nil {
		cookies = c.cookies
	}
	header := c.buildHeader(req.Headers, cookies)

	var body io.Reader
	hasBody := false
	switch {
	case req.Body != "":
		body = strings.NewReader(req.Body)
		hasBody = true
	case req.Form != nil:
		form := c.injectFormTokens(req.Form)
		body = strings.NewReader(form.Encode())
		hasBody = true
	}

	ctx := context.Background()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	httpReq.Header = header
	if hasBody && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.Auth != nil {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}

	label := req.Charset
	if label == "" {
		label = defaultCharset
	}
	var text string
	decoded := false
	if label != CharsetRaw {
		cs := label
		if label == CharsetAuto {
			cs, err = charsetFromContentType(httpResp.Header.Get("Content-Type"))
			if err != nil {
				return nil, &DecodeError{Charset: CharsetAuto, Err: err}
			}
		}
		text, err = decodeBody(raw, cs)
		if err != nil {
			return nil, err
		}
		decoded = true
	}

	result := &Result{
		Method:  method,
		URL:     url,
		Status:  httpResp.StatusCode,
		Body:    raw,
		Text:    text,
		Decoded: decoded,
		Headers: normalizeHeader(httpResp.Header),
		Elapsed: elapsed,
	}

	c.logger.Debug("exchange complete",
		"method", method, "url", url, "status", result.Status, "elapsed", elapsed)

	if result.Status >= 400 {
		c.last = result
		if msg := result.Headers.Get(c.faultHeader); msg != "" {
			return result, &FaultError{Method: method, URL: url, Status: result.Status, Message: msg}
		}
		return result, &StatusError{Method: method, URL: url, Status: result.Status, Body: raw}
	}

	c.cookies = parseSetCookie(result.Headers.Get("set-cookie"))
	c.refreshSessions()
	c.forms = make(map[string]string)
	if decoded {
		c.forms = c.scanner.Scan(text)
	}
	c.last = result
	c.history = append(c.history, HistoryEntry{
		Method:  method,
		URL:     url,
		Status:  result.Status,
		Elapsed: elapsed,
	})
	return result, nil
}

// needsPostback reports whether the exchange must be primed with a GET:
// the form names its target, priming is on, and the session's previous
// stop was some other URL.
func (c *Client) needsPostback(req *Request, url string) bool {
	if !c.postbacks || len(req.Form) == 0 || !req.Form.Has("_formname") {
		return false
	}
	if len(c.history) == 0 {
		return false
	}
	return c.history[len(c.history)-1].URL != url
}

// buildHeader merges the session defaults under the caller's headers and
// appends the resolved cookies as one Cookie line, sorted by name. The
// cookie jar still applies on top; the server sees the union however the
// transport concatenates the two sources.
func (c *Client) buildHeader(extra http.Header, cookies map[string]string) http.Header {
	header := make(http.Header, len(c.defaultHeaders)+len(extra)+1)
	for k, v := range c.defaultHeaders {
		header.Set(k, v)
	}
	for k, values := range extra {
		header.Del(k)
		for _, v := range values {
			header.Add(k, v)
		}
	}
	if len(cookies) > 0 {
		names := make([]string, 0, len(cookies))
		for name := range cookies {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, len(names))
		for i, name := range names {
			pairs[i] = name + "=" + cookies[name]
		}
		header.Add("Cookie", strings.Join(pairs, "; "))
	}
	return header
}

// injectFormTokens returns a copy of form with the anti-forgery fields
// filled in from the scraped state: the form name when exactly one form
// is known and none was given, then that form's token unless the caller
// already set one. The caller's map is never mutated.
func (c *Client) injectFormTokens(form url.Values) url.Values {
	out := make(url.Values, len(form)+2)
	for k, vs := range form {
		out[k] = append([]string(nil), vs...)
	}
	if !out.Has("_formname") && len(c.forms) == 1 {
		for name := range c.forms {
			out.Set("_formname", name)
		}
	}
	if out.Has("_formname") && !out.Has("_formkey") {
		if key, ok := c.forms[out.Get("_formname")]; ok {
			out.Set("_formkey", key)
		}
	}
	return out
}

func (c *Client) refreshSessions() {
	if c.sessionPattern == nil {
		return
	}
	for cookie, value := range c.cookies {
		loc := c.sessionPattern.FindStringSubmatchIndex(cookie)
		if loc == nil || loc[0] != 0 {
			continue
		}
		lo, hi := loc[2*c.sessionNameIdx], loc[2*c.sessionNameIdx+1]
		if lo < 0 {
			continue
		}
		name := cookie[lo:hi]
		if prev, ok := c.sessions[name]; ok && prev != value {
			c.logger.Warn("session id changed", "app", name)
		}
		c.sessions[name] = value
	}
}

// Forms returns the form tokens scraped from the most recent decoded
// response, keyed by form name.
func (c *Client) Forms() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.forms)
}

// Cookies returns the cookies parsed from the most recent successful
// response.
func (c *Client) Cookies() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.cookies)
}

// Sessions returns the tracked session ids, keyed by application name.
func (c *Client) Sessions() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.sessions)
}

// History returns the successful exchanges so far, oldest first.
func (c *Client) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]HistoryEntry, len(c.history))
	copy(history, c.history)
	return history
}

// Last returns the most recent exchange that produced a response,
// HTTP-error statuses included. Nil before the first response.
func (c *Client) Last() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// State snapshots forms, cookies and sessions in one locked pass.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Forms:    copyMap(c.forms),
		Cookies:  copyMap(c.cookies),
		Sessions: copyMap(c.sessions),
	}
}

// Base returns the base URL the session addresses.
func (c *Client) Base() string {
	return c.base
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// charsetFromContentType pulls the charset parameter out of a
// Content-Type header for CharsetAuto decoding.
func charsetFromContentType(contentType string) (string, error) {
	if contentType == "" {
		return "", errNoCharset
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	cs := params["charset"]
	if cs == "" {
		return "", errNoCharset
	}
	return cs, nil
}

// decodeBody decodes raw bytes with the named charset. The utf-8 path is
// strict; other labels go through the encoding registry, which follows
// the usual lenient HTML rules.
func decodeBody(raw []byte, label string) (string, error) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8":
		if !utf8.Valid(raw) {
			return "", &DecodeError{Charset: label, Err: errInvalidUTF8}
		}
		return string(raw), nil
	}
	reader, err := charset.NewReaderLabel(label, bytes.NewReader(raw))
	if err != nil {
		return "", &DecodeError{Charset: label, Err: err}
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", &DecodeError{Charset: label, Err: err}
	}
	return string(decoded), nil
}

// normalizeHeader lower-cases header names, joining repeated headers
// with ", " so every name maps to one line.
func normalizeHeader(h http.Header) Headers {
	headers := make(Headers, len(h))
	for name, values := range h {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return headers
}
