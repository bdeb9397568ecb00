package webclient

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternScanner(t *testing.T) {
	scanner := NewPatternScanner()

	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "token and name",
			body: `<input name="_formkey" type="hidden" value="k-1" /><input name="_formname" type="hidden" value="register" />`,
			want: map[string]string{"register": "k-1"},
		},
		{
			name: "name without token",
			body: `<input name="_formname" type="hidden" value="search" />`,
			want: map[string]string{"search": ""},
		},
		{
			name: "multiple forms",
			body: `<input name="_formkey" type="hidden" value="k-1" /><input name="_formname" type="hidden" value="login" />
<input name="_formkey" type="hidden" value="k-2" /><input name="_formname" type="hidden" value="register" />`,
			want: map[string]string{"login": "k-1", "register": "k-2"},
		},
		{
			name: "reordered attributes are not the convention",
			body: `<input type="hidden" name="_formname" value="login" />`,
			want: map[string]string{},
		},
		{
			name: "no forms",
			body: `<html><body><p>nothing</p></body></html>`,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanner.Scan(tt.body))
		})
	}
}

func TestNewPatternScannerFor(t *testing.T) {
	custom, err := NewPatternScannerFor(regexp.MustCompile(`data-form="(?P<formname>\w+)"(?: data-key="(?P<formkey>\w+)")?`))
	require.NoError(t, err)

	forms := custom.Scan(`<div data-form="login" data-key="abc"></div><div data-form="logout"></div>`)
	assert.Equal(t, map[string]string{"login": "abc", "logout": ""}, forms)

	_, err = NewPatternScannerFor(regexp.MustCompile(`no groups here`))
	assert.Error(t, err)
}

func TestDOMScanner(t *testing.T) {
	scanner := DOMScanner{}

	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "canonical markup",
			body: `<form><input name="_formkey" type="hidden" value="k-1" /><input name="_formname" type="hidden" value="register" /></form>`,
			want: map[string]string{"register": "k-1"},
		},
		{
			name: "reordered attributes still match",
			body: `<form><input type="hidden" value="k-1" name="_formkey"><input value="register" type="hidden" name="_formname"></form>`,
			want: map[string]string{"register": "k-1"},
		},
		{
			name: "whitespace between inputs",
			body: "<form>\n  <input name=\"_formkey\" type=\"hidden\" value=\"k-1\">\n  <input name=\"_formname\" type=\"hidden\" value=\"login\">\n</form>",
			want: map[string]string{"login": "k-1"},
		},
		{
			name: "no token sibling",
			body: `<form><input name="_formname" type="hidden" value="search"></form>`,
			want: map[string]string{"search": ""},
		},
		{
			name: "token not adjacent does not count",
			body: `<form><input name="_formkey" type="hidden" value="k-1"><input name="other" value="x"><input name="_formname" type="hidden" value="login"></form>`,
			want: map[string]string{"login": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanner.Scan(tt.body))
		})
	}
}
