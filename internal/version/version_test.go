package version

import "testing"

func TestString(t *testing.T) {
	want := "dev (unknown) built unknown"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := UserAgent(); got != "pushclient/dev" {
		t.Errorf("UserAgent() = %q", got)
	}
}
