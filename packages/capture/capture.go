package capture

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/calvale/webwalk/packages/webclient"
	"github.com/tidwall/gjson"
)

// Extractor pulls capture values out of one exchange and the client state
// it produced.
type Extractor struct {
	result   *webclient.Result
	state    webclient.State
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(res *webclient.Result, state webclient.State) *Extractor {
	e := &Extractor{
		result: res,
		state:  state,
	}
	if res.IsJSON() {
		e.bodyJSON = gjson.Parse(bodyText(res))
		e.isJSON = true
	}
	return e
}

// Extract resolves a single capture. The boolean reports whether the
// source yielded a value.
func (e *Extractor) Extract(c *walk.Capture) (string, bool) {
	switch {
	case c.JSON != "":
		return e.fromJSON(c.JSON)
	case c.Header != "":
		return e.fromHeader(c.Header)
	case c.Cookie != "":
		return lookup(e.state.Cookies, c.Cookie)
	case c.Form != "":
		return lookup(e.state.Forms, c.Form)
	case c.Regex != "":
		return e.fromRegex(c.Regex)
	}
	return "", false
}

func (e *Extractor) fromJSON(path string) (string, bool) {
	if !e.isJSON {
		return "", false
	}
	v := e.bodyJSON.Get(path)
	if !v.Exists() {
		return "", false
	}
	return v.String(), true
}

func (e *Extractor) fromHeader(name string) (string, bool) {
	v, ok := e.result.Headers[strings.ToLower(name)]
	return v, ok
}

func (e *Extractor) fromRegex(pattern string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(bodyText(e.result))
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

func lookup(m map[string]string, name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ExtractAll resolves every capture for a step. Captures whose source
// yields nothing are reported together in the returned error; values that
// did resolve are still returned.
func ExtractAll(res *webclient.Result, state webclient.State, captures []*walk.Capture) (map[string]string, error) {
	extractor := NewExtractor(res, state)
	values := make(map[string]string, len(captures))

	var errs []error
	for _, c := range captures {
		value, ok := extractor.Extract(c)
		if !ok {
			errs = append(errs, fmt.Errorf("capture %q: no value at its source", c.Name))
			continue
		}
		values[c.Name] = value
	}

	return values, errors.Join(errs...)
}

func bodyText(r *webclient.Result) string {
	if r.Decoded {
		return r.Text
	}
	return string(r.Body)
}
