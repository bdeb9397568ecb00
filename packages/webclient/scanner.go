package webclient

import (
	"fmt"
	"regexp"
)

// formPattern matches the hidden-input convention for anti-forgery
// tokens: an optional _formkey input immediately followed by the
// _formname input naming the form.
var formPattern = regexp.MustCompile(`(?:<input name="_formkey" type="hidden" value="(?P<formkey>.+?)" />)?<input name="_formname" type="hidden" value="(?P<formname>.+?)" />`)

// FormScanner extracts form names and their anti-forgery tokens from a
// decoded response body. A form without a token input maps to "".
type FormScanner interface {
	Scan(body string) map[string]string
}

// PatternScanner is the default FormScanner. It matches the exact markup
// frameworks emit for hidden token inputs, which keeps it cheap and
// predictable at the cost of ignoring attribute reordering.
type PatternScanner struct {
	pattern *regexp.Regexp
	nameIdx int
	keyIdx  int
}

func NewPatternScanner() *PatternScanner {
	s, _ := NewPatternScannerFor(formPattern)
	return s
}

// NewPatternScannerFor builds a scanner around a custom marker pattern.
// The pattern must carry a formname capture group; a formkey group is
// optional.
func NewPatternScannerFor(pattern *regexp.Regexp) (*PatternScanner, error) {
	nameIdx := pattern.SubexpIndex("formname")
	if nameIdx < 0 {
		return nil, fmt.Errorf("form pattern %q has no formname group", pattern)
	}
	return &PatternScanner{
		pattern: pattern,
		nameIdx: nameIdx,
		keyIdx:  pattern.SubexpIndex("formkey"),
	}, nil
}

func (s *PatternScanner) Scan(body string) map[string]string {
	forms := make(map[string]string)
	for _, match := range s.pattern.FindAllStringSubmatch(body, -1) {
		name := match[s.nameIdx]
		if name == "" {
			continue
		}
		var key string
		if s.keyIdx >= 0 {
			key = match[s.keyIdx]
		}
		forms[name] = key
	}
	return forms
}
