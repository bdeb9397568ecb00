package assertions

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/calvale/webwalk/packages/webclient"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Result is the outcome of one evaluated assertion.
type Result struct {
	Assertion *Assertion
	Passed    bool
	Message   string
	Actual    any
}

// Evaluator checks assertion lines against one exchange and the client
// state it produced.
type Evaluator struct {
	result   *webclient.Result
	state    webclient.State
	baseDir  string // schema files resolve relative to this
	bodyJSON gjson.Result
	isJSON   bool
}

func NewEvaluator(res *webclient.Result, state webclient.State, baseDir string) *Evaluator {
	e := &Evaluator{
		result:  res,
		state:   state,
		baseDir: baseDir,
	}
	if res.IsJSON() {
		e.bodyJSON = gjson.Parse(bodyText(res))
		e.isJSON = true
	}
	return e
}

// Evaluate parses and evaluates each line. Lines that fail to parse come
// back as failed results carrying the parse error.
func (e *Evaluator) Evaluate(lines []string) []*Result {
	results := make([]*Result, 0, len(lines))
	for _, line := range lines {
		a, err := Parse(line)
		if err != nil {
			results = append(results, &Result{
				Assertion: &Assertion{Raw: strings.TrimSpace(line)},
				Message:   err.Error(),
			})
			continue
		}
		results = append(results, e.EvaluateOne(a))
	}
	return results
}

func (e *Evaluator) EvaluateOne(a *Assertion) *Result {
	r := &Result{Assertion: a}

	if a.Operator == OpSchema {
		r.Passed, r.Message = e.schema(a.Arg)
		return r
	}

	actual, err := e.actualValue(a)
	if err != nil {
		r.Message = err.Error()
		return r
	}
	r.Actual = actual

	r.Passed, r.Message = e.compare(a, actual)
	return r
}

// actualValue resolves the assertion subject to a concrete value. Missing
// headers, paths, forms, cookies, and sessions resolve to nil so exists
// and !exists can tell absence from an empty string.
func (e *Evaluator) actualValue(a *Assertion) (any, error) {
	switch a.Subject {
	case "status":
		return e.result.Status, nil
	case "duration":
		return float64(e.result.Elapsed) / float64(time.Millisecond), nil
	case "body":
		return bodyText(e.result), nil
	case "json":
		if !e.isJSON {
			return nil, fmt.Errorf("response is not JSON (content type %q)", e.result.ContentType())
		}
		v := e.bodyJSON.Get(a.Arg)
		if !v.Exists() {
			return nil, nil
		}
		return v.Value(), nil
	case "header":
		v, ok := e.result.Headers[strings.ToLower(a.Arg)]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "form":
		return lookup(e.state.Forms, a.Arg), nil
	case "cookie":
		return lookup(e.state.Cookies, a.Arg), nil
	case "session":
		return lookup(e.state.Sessions, a.Arg), nil
	}
	return nil, fmt.Errorf("unknown assertion subject %q", a.Subject)
}

func lookup(m map[string]string, name string) any {
	v, ok := m[name]
	if !ok {
		return nil
	}
	return v
}

func (e *Evaluator) compare(a *Assertion, actual any) (bool, string) {
	expected := a.Expected
	if a.Subject == "duration" {
		expected = durationMillis(expected)
	}

	switch a.Operator {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		if passed, _ := equals(actual, expected); passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case OpGreaterThan:
		return compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return compareNumeric(actual, expected, "<=")
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		if passed, _ := contains(actual, expected); passed {
			return false, fmt.Sprintf("expected not to contain %q", expected)
		}
		return true, ""
	case OpMatches:
		return matches(actual, expected)
	case OpExists:
		if actual == nil {
			return false, "expected to exist"
		}
		return true, ""
	case OpNotExists:
		if actual != nil {
			return false, fmt.Sprintf("expected not to exist, got %v", actual)
		}
		return true, ""
	}
	return false, fmt.Sprintf("unknown operator %v", a.Operator)
}

func equals(actual any, expected string) (bool, string) {
	if af, ok := toFloat64(actual); ok {
		if ef, err := strconv.ParseFloat(expected, 64); err == nil {
			if af == ef {
				return true, ""
			}
			return false, fmt.Sprintf("expected %v, got %v", expected, actual)
		}
	}
	if fmt.Sprintf("%v", actual) == expected {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func compareNumeric(actual any, expected, op string) (bool, string) {
	af, aok := toFloat64(actual)
	ef, err := strconv.ParseFloat(expected, 64)
	if !aok || err != nil {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = af > ef
	case ">=":
		passed = af >= ef
	case "<":
		passed = af < ef
	case "<=":
		passed = af <= ef
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func contains(actual any, expected string) (bool, string) {
	if strings.Contains(fmt.Sprintf("%v", actual), expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected to contain %q", expected)
}

func matches(actual any, expected string) (bool, string) {
	pattern := strings.TrimSuffix(strings.TrimPrefix(expected, "/"), "/")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid pattern: %v", err)
	}
	if re.MatchString(fmt.Sprintf("%v", actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected to match /%s/", pattern)
}

// durationMillis rewrites a duration literal like "1500ms" or "2s" to its
// millisecond count; bare numbers pass through as milliseconds.
func durationMillis(expected string) string {
	if d, err := time.ParseDuration(expected); err == nil {
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', -1, 64)
	}
	return expected
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (e *Evaluator) schema(path string) (bool, string) {
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}
	if err := ensureWithinBase(path, e.baseDir); err != nil {
		return false, err.Error()
	}

	schemaData, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Sprintf("reading schema: %v", err)
	}

	body := bodyText(e.result)
	if !gjson.Valid(body) {
		return false, "response body is not JSON"
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewStringLoader(body),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; "))
}

// ensureWithinBase rejects schema paths that escape the walk's directory.
func ensureWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolving base directory: %v", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving schema path: %v", err)
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return fmt.Errorf("schema path %s escapes %s", path, baseDir)
	}
	return nil
}

func bodyText(r *webclient.Result) string {
	if r.Decoded {
		return r.Text
	}
	return string(r.Body)
}
