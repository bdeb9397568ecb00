// Package webclient provides the stateful session client webwalk drives
// server-rendered applications with.
//
// A Client behaves like a minimal scriptable browser:
//   - GET/POST against a fixed base URL with merged headers and basic auth
//   - cookie jar semantics plus manual cookie recycling between requests
//   - session-id churn detection via a configurable cookie-name pattern
//   - anti-forgery form token scraping and automatic re-injection
//   - optional postback priming GETs before form submissions
//   - request history and typed errors for the four failure kinds
package webclient
