// Package builtin provides built-in functions for use in walk files.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(): Current time in RFC 3339 format; now(layout) for a custom layout
//   - date(): Current date as 2006-01-02; date(layout) for a custom layout
//   - timestamp(): Current Unix timestamp in seconds
//   - timestampMs(): Current Unix timestamp in milliseconds
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - randomEmail(): Random email address under example.com
//   - base64(value) / base64Decode(value): Base64 encode or decode
//   - urlEncode(value) / urlDecode(value): URL query escaping
//
// Functions are invoked using the {{funcName(args)}} syntax in walk files.
package builtin
