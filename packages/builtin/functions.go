package builtin

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func is a built-in function callable from walk files. Arguments arrive as
// strings; malformed arguments fall back to the function's defaults rather
// than failing the walk.
type Func func(args []string) string

// Registry holds built-in functions addressable by name.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry creates a registry with all default functions registered.
func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

// Register adds a custom function to the registry.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// funcCallPattern matches function call syntax like "uuid()" or "random(1, 10)".
var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call parses a function call expression and invokes the named function.
// Returns false if the expression is not a function call or the function
// is unknown.
func (r *Registry) Call(expr string) (string, bool) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return "", false
	}

	name := matches[1]
	fn, ok := r.funcs[name]
	if !ok {
		return "", false
	}

	return fn(parseArgs(matches[2])), true
}

// parseArgs splits a comma-separated argument list, honoring single and
// double quotes so quoted arguments may contain commas.
func parseArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inQuote && ch == quoteChar:
			inQuote = false
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	args = append(args, strings.TrimSpace(current.String()))

	return args
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = funcUUID
	r.funcs["now"] = funcNow
	r.funcs["date"] = funcDate
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
}

func funcUUID(args []string) string {
	return uuid.NewString()
}

func funcNow(args []string) string {
	layout := time.RFC3339
	if len(args) >= 1 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout)
}

func funcDate(args []string) string {
	layout := "2006-01-02"
	if len(args) >= 1 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout)
}

func funcTimestamp(args []string) string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

func funcTimestampMs(args []string) string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func funcRandom(args []string) string {
	min, max := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			min = v
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			max = v
		}
	}
	if max < min {
		min, max = max, min
	}
	return strconv.Itoa(min + rand.Intn(max-min+1))
}

func funcRandomString(args []string) string {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			length = v
		}
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
}

func funcRandomEmail(args []string) string {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@example.com", user)
}

func funcBase64(args []string) string {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcBase64Decode(args []string) string {
	if len(args) < 1 {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return ""
	}
	return string(decoded)
}

func funcURLEncode(args []string) string {
	if len(args) < 1 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func funcURLDecode(args []string) string {
	if len(args) < 1 {
		return ""
	}
	decoded, err := url.QueryUnescape(args[0])
	if err != nil {
		return args[0]
	}
	return decoded
}

func randomString(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
