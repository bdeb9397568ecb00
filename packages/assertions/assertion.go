package assertions

import (
	"errors"
	"fmt"
	"strings"
)

// Operator identifies the comparison an assertion performs.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpMatches
	OpExists
	OpNotExists
	OpSchema
)

func (op Operator) String() string {
	switch op {
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpContains:
		return "contains"
	case OpNotContains:
		return "!contains"
	case OpMatches:
		return "matches"
	case OpExists:
		return "exists"
	case OpNotExists:
		return "!exists"
	case OpSchema:
		return "schema"
	}
	return "unknown"
}

// Assertion is one parsed expectation line from a walk step.
type Assertion struct {
	Raw      string
	Subject  string // status, duration, body, json, header, form, cookie, session, schema
	Arg      string // json path, header/form/cookie/session name, schema file
	Operator Operator
	Expected string
}

// subjectsWithArg lists subjects that take a name or path argument before
// the operator.
var subjectsWithArg = map[string]bool{
	"json":    true,
	"header":  true,
	"form":    true,
	"cookie":  true,
	"session": true,
}

// Parse parses a single assertion line. The grammar is
// "subject [arg] operator [value]"; schema lines are "schema <file>".
func Parse(line string) (*Assertion, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return nil, errors.New("empty assertion")
	}

	a := &Assertion{Raw: raw}

	var rest string
	a.Subject, rest = nextToken(raw)

	switch {
	case a.Subject == "schema":
		if rest == "" {
			return nil, fmt.Errorf("schema assertion needs a file path: %q", raw)
		}
		a.Operator = OpSchema
		a.Arg = unquote(rest)
		return a, nil
	case subjectsWithArg[a.Subject]:
		a.Arg, rest = nextToken(rest)
		if a.Arg == "" {
			return nil, fmt.Errorf("%s assertion needs a name: %q", a.Subject, raw)
		}
	case a.Subject == "status", a.Subject == "duration", a.Subject == "body":
	default:
		return nil, fmt.Errorf("unknown assertion subject %q in %q", a.Subject, raw)
	}

	var opTok string
	opTok, rest = nextToken(rest)
	op, ok := operatorFromToken(opTok)
	if !ok {
		return nil, fmt.Errorf("unknown operator %q in %q", opTok, raw)
	}
	a.Operator = op

	switch op {
	case OpExists, OpNotExists:
		if rest != "" {
			return nil, fmt.Errorf("%s takes no value: %q", opTok, raw)
		}
	default:
		if rest == "" {
			return nil, fmt.Errorf("operator %q needs a value: %q", opTok, raw)
		}
		a.Expected = unquote(rest)
	}

	return a, nil
}

// ParseAll parses every line, collecting all problems rather than stopping
// at the first.
func ParseAll(lines []string) ([]*Assertion, error) {
	parsed := make([]*Assertion, 0, len(lines))
	var errs []error
	for _, line := range lines {
		a, err := Parse(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, a)
	}
	return parsed, errors.Join(errs...)
}

func operatorFromToken(tok string) (Operator, bool) {
	switch tok {
	case "==":
		return OpEquals, true
	case "!=":
		return OpNotEquals, true
	case ">":
		return OpGreaterThan, true
	case ">=":
		return OpGreaterOrEqual, true
	case "<":
		return OpLessThan, true
	case "<=":
		return OpLessOrEqual, true
	case "contains":
		return OpContains, true
	case "!contains":
		return OpNotContains, true
	case "matches":
		return OpMatches, true
	case "exists":
		return OpExists, true
	case "!exists":
		return OpNotExists, true
	}
	return 0, false
}

// nextToken splits off the first whitespace-delimited token. A leading
// quote makes the token run to the matching close quote.
func nextToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if s[0] == '"' || s[0] == '\'' {
		if end := strings.IndexByte(s[1:], s[0]); end >= 0 {
			return s[1 : end+1], strings.TrimSpace(s[end+2:])
		}
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
