package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()

	Commit = "abc1234"
	if got := String(); got != Version+" (abc1234)" {
		t.Errorf("String() = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "alpaca-stream/") {
		t.Errorf("UserAgent() = %q", ua)
	}
}
