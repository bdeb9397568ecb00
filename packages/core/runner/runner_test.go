package runner

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calvale/webwalk/packages/core/config"
	"github.com/calvale/webwalk/packages/core/env"
	"github.com/calvale/webwalk/packages/core/walk"
	"github.com/calvale/webwalk/packages/webclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

const registerPage = `<html><body><form>` +
	`<input name="_formkey" type="hidden" value="tok-1" />` +
	`<input name="_formname" type="hidden" value="user_register" />` +
	`</form></body></html>`

// newApp serves a small registration flow plus a few utility pages.
func newApp(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/user/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "session_id_welcome", Value: "sid-1"})
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, registerPage)
			return
		}
		if r.PostFormValue("_formkey") != "tok-1" || r.PostFormValue("_formname") != "user_register" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "invalid form token")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "Welcome %s", r.PostFormValue("first_name"))
	})

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 42, "name": "alice"}`)
	})
	mux.HandleFunc("/api/items/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "item list for 42")
	})

	mux.HandleFunc("/fault", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Application-Error", "ticket 51.2")
		w.WriteHeader(http.StatusInternalServerError)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeWalk writes walk YAML into its own directory and returns the path.
func writeWalk(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.walk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestRunWalkRegistration(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: registration
vars:
  first: Homer
steps:
  - name: load register page
    get: /user/register
    expect:
      - status == 200
      - form user_register exists
      - cookie session_id_welcome == sid-1
      - session welcome == sid-1
  - name: submit registration
    post: /user/register
    form:
      first_name: "{{first}}"
      _formname: user_register
    expect:
      - status == 200
      - body contains Welcome Homer
`)

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Steps, 2)
	for _, step := range result.Steps {
		assert.True(t, step.Passed, "%s: %v", step.Name, step.Error)
		for _, a := range step.Assertions {
			assert.True(t, a.Passed, "%s: %s", a.Assertion.Raw, a.Message)
		}
	}
	assert.Greater(t, result.Duration.Nanoseconds(), int64(0))
}

func TestRunWalkCaptureFlowsForward(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: capture chain
steps:
  - name: login
    get: /api/login
    capture:
      - name: userId
        json: id
  - name: fetch items
    get: /api/items/{{userId}}
    expect:
      - status == 200
      - body contains item list for 42
`)

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passed, "steps: %+v", result.Steps)
	assert.Equal(t, "42", result.Steps[0].Captures["userId"])
}

func TestRunWalkStatusErrorJudgedByExpectations(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: missing page
steps:
  - name: expected miss
    get: /nope
    expect:
      - status == 404
`)

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	require.Len(t, result.Steps, 1)
	step := result.Steps[0]
	assert.True(t, step.Passed, "%v", step.Error)
	assert.Nil(t, step.Error)
	assert.Equal(t, 1, result.Passed)
}

func TestRunWalkStatusErrorBareStepFails(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: missing page
steps:
  - name: unexpected miss
    get: /nope
`)

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	step := result.Steps[0]
	assert.False(t, step.Passed)
	var statusErr *webclient.StatusError
	assert.ErrorAs(t, step.Error, &statusErr)
	assert.Equal(t, 404, statusErr.Status)
}

func TestRunWalkFaultSupersedesExpectations(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: fault page
steps:
  - name: fault
    get: /fault
    expect:
      - status == 500
`)

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	step := result.Steps[0]
	assert.False(t, step.Passed)
	var faultErr *webclient.FaultError
	require.ErrorAs(t, step.Error, &faultErr)
	assert.Equal(t, "ticket 51.2", faultErr.Message)
	assert.Empty(t, step.Assertions)
}

func TestRunWalkTransportError(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	path := writeWalk(t, `
name: unreachable
steps:
  - name: connect
    get: /
`)

	r := New(&Config{BaseURL: dead.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	step := result.Steps[0]
	assert.False(t, step.Passed)
	var transportErr *webclient.TransportError
	assert.ErrorAs(t, step.Error, &transportErr)
	assert.Nil(t, step.Result)
	assert.Empty(t, step.Assertions)
}

func TestRunWalkBailStopsAtFirstFailure(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: bail
steps:
  - name: ok
    get: /api/login
  - name: broken
    get: /nope
  - name: never runs
    get: /api/login
`)

	r := New(&Config{BaseURL: server.URL, Bail: true})
	result, err := r.RunFile(path)
	require.NoError(t, err)

	assert.Len(t, result.Steps, 2)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestRunWalkSkipAndFilter(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: skips
steps:
  - name: login step
    get: /api/login
  - name: flaky step
    get: /nope
    skip: broken until the fixture app gains this page
  - name: other step
    get: /api/login
`)

	t.Run("skip field", func(t *testing.T) {
		r := New(&Config{BaseURL: server.URL})
		result, err := r.RunFile(path)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Passed)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, "broken until the fixture app gains this page", result.Steps[1].SkipReason)
	})

	t.Run("name filter", func(t *testing.T) {
		r := New(&Config{BaseURL: server.URL, NameFilter: "login*"})
		result, err := r.RunFile(path)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Passed)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, "filtered out", result.Steps[1].SkipReason)
	})
}

func TestRunWalkDBCheck(t *testing.T) {
	server := newApp(t)

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	seed, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = seed.Exec(`
		CREATE TABLE auth_user (id INTEGER PRIMARY KEY, email TEXT);
		INSERT INTO auth_user (email) VALUES ('homer@example.com');
	`)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	walkPath := filepath.Join(dir, "db.walk.yaml")
	require.NoError(t, os.WriteFile(walkPath, []byte(`
name: db state
steps:
  - name: user row exists
    db:
      dsn: sqlite://./app.db
      query: SELECT count(*) AS n, email FROM auth_user
      expect:
        n: 1
        email: homer@example.com
      rows: 1
  - name: wrong count fails
    db:
      dsn: sqlite://./app.db
      query: SELECT count(*) AS n FROM auth_user
      expect:
        n: 7
`), 0o644))

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(walkPath)
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	first := result.Steps[0]
	assert.True(t, first.Passed, "%+v", first.DBCheck)
	require.NotNil(t, first.DBCheck)
	assert.Empty(t, first.DBCheck.Failures)

	second := result.Steps[1]
	assert.False(t, second.Passed)
	require.NotNil(t, second.DBCheck)
	assert.Contains(t, second.DBCheck.Failures[0], "want 7")
}

func TestRunWalkHooks(t *testing.T) {
	server := newApp(t)

	dir := t.TempDir()
	walkPath := filepath.Join(dir, "hooks.walk.yaml")
	require.NoError(t, os.WriteFile(walkPath, []byte(`
name: hooks
setup:
  - echo ready > setup.txt
  - "- exit 3"
teardown:
  - echo done > teardown.txt
steps:
  - name: fails
    get: /nope
`), 0o644))

	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(walkPath)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// Setup ran, the "-" prefixed failure was tolerated, and teardown ran
	// despite the failing step.
	setup, err := os.ReadFile(filepath.Join(dir, "setup.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ready\n", string(setup))

	teardown, err := os.ReadFile(filepath.Join(dir, "teardown.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(teardown))
}

func TestRunWalkSkipHooks(t *testing.T) {
	server := newApp(t)

	dir := t.TempDir()
	walkPath := filepath.Join(dir, "hooks.walk.yaml")
	require.NoError(t, os.WriteFile(walkPath, []byte(`
name: hooks
setup:
  - echo ready > setup.txt
teardown:
  - echo done > teardown.txt
steps:
  - name: login
    get: /api/login
`), 0o644))

	w, err := walk.LoadFile(walkPath)
	require.NoError(t, err)

	r := New(&Config{BaseURL: server.URL, SkipHooks: true})
	result, err := r.RunWalk(w)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)

	// Neither hook ran during the walk.
	_, err = os.Stat(filepath.Join(dir, "setup.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "teardown.txt"))
	assert.True(t, os.IsNotExist(err))

	// Preflight and Cleanup run them on demand.
	require.NoError(t, r.Preflight(w))
	setup, err := os.ReadFile(filepath.Join(dir, "setup.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ready\n", string(setup))

	r.Cleanup(w)
	teardown, err := os.ReadFile(filepath.Join(dir, "teardown.txt"))
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(teardown))
}

func TestRunWalkThinkTime(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: paced
steps:
  - name: first
    get: /api/login
  - name: second
    get: /api/login
`)

	r := New(&Config{BaseURL: server.URL, ThinkTime: 60 * time.Millisecond})
	start := time.Now()
	result, err := r.RunFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Passed)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRunWalkSetupFailureAborts(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: bad setup
setup:
  - exit 9
steps:
  - name: never runs
    get: /api/login
`)

	r := New(&Config{BaseURL: server.URL})
	_, err := r.RunFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup")
}

func TestRunWalkWaitFor(t *testing.T) {
	var hits atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" && hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "up")
	}))
	defer slow.Close()

	path := writeWalk(t, `
name: waits
wait_for:
  url: /health
  timeout: 2s
  interval: 10ms
steps:
  - name: hit app
    get: /
    expect:
      - body contains up
`)

	r := New(&Config{BaseURL: slow.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}

func TestRunWalkBaseURLPrecedence(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: precedence
base_url: http://127.0.0.1:1
steps:
  - name: login
    get: /api/login
`)

	// The flag-level base URL wins over the walk's.
	r := New(&Config{BaseURL: server.URL})
	result, err := r.RunFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
}

func TestRunWalkEnvironmentBaseURL(t *testing.T) {
	server := newApp(t)

	path := writeWalk(t, `
name: env base
steps:
  - name: login
    get: /api/login
    expect:
      - json name == {{who}}
`)

	project := &config.Config{
		DefaultEnvironment: "dev",
		Environments: map[string]env.Environment{
			"dev": {BaseURL: server.URL, Vars: map[string]string{"who": "alice"}},
		},
	}

	r := New(&Config{Project: project})
	result, err := r.RunFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed, "steps: %+v", result.Steps[0].Assertions)
}

func TestRunWalkNoBaseURL(t *testing.T) {
	path := writeWalk(t, `
name: nowhere
steps:
  - name: s
    get: /
`)

	r := New(nil)
	_, err := r.RunFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no base URL")
}

func TestRunFileMissing(t *testing.T) {
	r := New(nil)
	_, err := r.RunFile(filepath.Join(t.TempDir(), "absent.walk.yaml"))
	assert.Error(t, err)
}

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"login step", "login*", true},
		{"login step", "*step", true},
		{"login step", "*ogin*", true},
		{"login step", "login step", true},
		{"login step", "logout*", false},
		{"login step", "", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesFilter(tt.name, tt.pattern), "%q vs %q", tt.name, tt.pattern)
	}
}
