// Package walk defines the YAML session scripts webwalk executes: an
// ordered list of steps driven through one webclient session, with
// expectations, captures and database checks per step.
package walk

import (
	"gopkg.in/yaml.v3"
)

// Walk is one session script.
type Walk struct {
	Name     string            `yaml:"name"`
	BaseURL  string            `yaml:"base_url"`
	Vars     map[string]string `yaml:"vars"`
	Client   *ClientSettings   `yaml:"client"`
	Setup    []string          `yaml:"setup"`
	WaitFor  *WaitFor          `yaml:"wait_for"`
	Teardown []string          `yaml:"teardown"`
	Steps    []*Step           `yaml:"steps"`

	// Path is where the walk was loaded from. Relative schema and
	// database paths resolve against its directory.
	Path string `yaml:"-"`
}

// WaitFor polls a URL after setup until the application answers, so walks
// can boot their app in setup and not race it.
type WaitFor struct {
	URL      string `yaml:"url"`      // absolute, or a path under the base URL
	Status   int    `yaml:"status"`   // default 200
	Timeout  string `yaml:"timeout"`  // default 30s
	Interval string `yaml:"interval"` // default 500ms
}

// ClientSettings tunes the session client for one walk. Nil pointers
// mean "keep the default".
type ClientSettings struct {
	Postbacks       *bool             `yaml:"postbacks"`
	Timeout         string            `yaml:"timeout"`
	FollowRedirects *bool             `yaml:"follow_redirects"`
	Insecure        bool              `yaml:"insecure"`
	Headers         map[string]string `yaml:"headers"`
	SessionPattern  string            `yaml:"session_pattern"`
	FaultHeader     string            `yaml:"fault_header"`
	// Scanner selects the form-token scanner: "pattern" (default) or
	// "dom" for HTML-aware scanning.
	Scanner string `yaml:"scanner"`
}

// Step is one stop in the session: a request plus its expectations, or a
// bare database check.
type Step struct {
	Name   string `yaml:"name"`
	Get    string `yaml:"get"`
	Post   string `yaml:"post"`
	Method string `yaml:"method"`
	// Form values may be scalars or lists; lists post one pair per value.
	Form map[string]any `yaml:"form"`
	Body string         `yaml:"body"`
	// Headers values may be scalars or lists too.
	Headers map[string]any `yaml:"headers"`
	// Cookies is a pointer so YAML keeps the tri-state: absent recycles
	// the session's cookies, an explicit empty map sends none.
	Cookies *map[string]string `yaml:"cookies"`
	Auth    *Auth              `yaml:"auth"`
	Charset string             `yaml:"charset"`
	Timeout string             `yaml:"timeout"`
	Skip    string             `yaml:"skip"`
	Expect  []string           `yaml:"expect"`
	Capture []*Capture         `yaml:"capture"`
	DB      *DBCheck           `yaml:"db"`

	Line int `yaml:"-"`
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type plain Step
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

// RequestPath returns the step's target path and whether the step makes
// a request at all. Pure database checks do not.
func (s *Step) RequestPath() (string, bool) {
	switch {
	case s.Get != "":
		return s.Get, true
	case s.Post != "":
		return s.Post, true
	default:
		return "", false
	}
}

// Auth carries basic-auth credentials for one step.
type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Capture extracts one value from the step's exchange into a variable.
// Exactly one source field may be set.
type Capture struct {
	Name   string `yaml:"name"`
	JSON   string `yaml:"json"`
	Header string `yaml:"header"`
	Cookie string `yaml:"cookie"`
	Form   string `yaml:"form"`
	Regex  string `yaml:"regex"`
}

// Sources returns how many source fields are set.
func (c *Capture) Sources() int {
	n := 0
	for _, s := range []string{c.JSON, c.Header, c.Cookie, c.Form, c.Regex} {
		if s != "" {
			n++
		}
	}
	return n
}

// DBCheck verifies database state after the step: expected column values
// on the first row, an expected row count, or both.
type DBCheck struct {
	DSN    string         `yaml:"dsn"`
	Query  string         `yaml:"query"`
	Expect map[string]any `yaml:"expect"`
	Rows   *int           `yaml:"rows"`
}
