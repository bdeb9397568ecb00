package builtin

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCallUUID(t *testing.T) {
	r := NewRegistry()

	got, ok := r.Call("uuid()")
	if !ok {
		t.Fatal("uuid() not recognized")
	}
	if len(got) != 36 {
		t.Errorf("uuid() = %q, want 36 characters", got)
	}

	again, _ := r.Call("uuid()")
	if got == again {
		t.Error("uuid() returned the same value twice")
	}
}

func TestCallNow(t *testing.T) {
	r := NewRegistry()

	got, ok := r.Call("now()")
	if !ok {
		t.Fatal("now() not recognized")
	}
	if _, err := time.Parse(time.RFC3339, got); err != nil {
		t.Errorf("now() = %q, not RFC 3339: %v", got, err)
	}

	got, _ = r.Call("now(2006)")
	if len(got) != 4 {
		t.Errorf("now(2006) = %q, want a four digit year", got)
	}
}

func TestCallDate(t *testing.T) {
	r := NewRegistry()

	got, ok := r.Call("date()")
	if !ok {
		t.Fatal("date() not recognized")
	}
	if _, err := time.Parse("2006-01-02", got); err != nil {
		t.Errorf("date() = %q, not a calendar date: %v", got, err)
	}
}

func TestCallTimestamp(t *testing.T) {
	r := NewRegistry()

	got, _ := r.Call("timestamp()")
	secs, err := strconv.ParseInt(got, 10, 64)
	if err != nil {
		t.Fatalf("timestamp() = %q, not an integer", got)
	}
	if delta := time.Now().Unix() - secs; delta < 0 || delta > 5 {
		t.Errorf("timestamp() off by %d seconds", delta)
	}

	got, _ = r.Call("timestampMs()")
	if _, err := strconv.ParseInt(got, 10, 64); err != nil {
		t.Fatalf("timestampMs() = %q, not an integer", got)
	}
}

func TestCallRandom(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 50; i++ {
		got, ok := r.Call("random(5, 10)")
		if !ok {
			t.Fatal("random(5, 10) not recognized")
		}
		n, err := strconv.Atoi(got)
		if err != nil {
			t.Fatalf("random(5, 10) = %q, not an integer", got)
		}
		if n < 5 || n > 10 {
			t.Fatalf("random(5, 10) = %d, out of range", n)
		}
	}

	// Reversed bounds are tolerated.
	got, _ := r.Call("random(10, 5)")
	if n, _ := strconv.Atoi(got); n < 5 || n > 10 {
		t.Errorf("random(10, 5) = %s, out of range", got)
	}
}

func TestCallRandomString(t *testing.T) {
	r := NewRegistry()

	got, _ := r.Call("randomString(24)")
	if len(got) != 24 {
		t.Errorf("randomString(24) = %q, want 24 characters", got)
	}

	got, _ = r.Call("randomString()")
	if len(got) != 16 {
		t.Errorf("randomString() = %q, want default 16 characters", got)
	}
}

func TestCallRandomEmail(t *testing.T) {
	r := NewRegistry()

	got, _ := r.Call("randomEmail()")
	if !regexp.MustCompile(`^[a-z]{8}@example\.com$`).MatchString(got) {
		t.Errorf("randomEmail() = %q", got)
	}
}

func TestCallEncoding(t *testing.T) {
	r := NewRegistry()

	got, _ := r.Call("base64(hello)")
	if got != base64.StdEncoding.EncodeToString([]byte("hello")) {
		t.Errorf("base64(hello) = %q", got)
	}

	got, _ = r.Call("base64Decode(aGVsbG8=)")
	if got != "hello" {
		t.Errorf("base64Decode = %q, want hello", got)
	}

	got, _ = r.Call("urlEncode(a b&c)")
	if got != "a+b%26c" {
		t.Errorf("urlEncode(a b&c) = %q", got)
	}

	got, _ = r.Call("urlDecode(a+b%26c)")
	if got != "a b&c" {
		t.Errorf("urlDecode = %q", got)
	}
}

func TestCallQuotedArgs(t *testing.T) {
	r := NewRegistry()

	got, ok := r.Call(`base64("hello, world")`)
	if !ok {
		t.Fatal("quoted call not recognized")
	}
	if got != base64.StdEncoding.EncodeToString([]byte("hello, world")) {
		t.Errorf("quoted comma split incorrectly: %q", got)
	}
}

func TestCallUnknown(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Call("nosuchfn()"); ok {
		t.Error("unknown function reported as handled")
	}
	if _, ok := r.Call("not a call"); ok {
		t.Error("non-call expression reported as handled")
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("shout", func(args []string) string {
		return strings.ToUpper(strings.Join(args, " "))
	})

	got, ok := r.Call("shout(hey, you)")
	if !ok {
		t.Fatal("custom function not recognized")
	}
	if got != "HEY YOU" {
		t.Errorf("shout(hey, you) = %q", got)
	}
}
