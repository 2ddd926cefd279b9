package version

import (
	"strings"
	"testing"
)

func TestInfo_String(t *testing.T) {
	i := Info{Version: "1.2.0"}
	if i.String() != "1.2.0" {
		t.Errorf("String() = %q", i.String())
	}
	i.Dirty = true
	if i.String() != "1.2.0-dirty" {
		t.Errorf("String() = %q", i.String())
	}
}

func TestGet(t *testing.T) {
	old := Commit
	Commit = "abc123"
	defer func() { Commit = old }()

	i := Get()
	if i.Commit != "abc123" || i.Version != Version {
		t.Errorf("Get() = %+v", i)
	}
	if !strings.HasPrefix(i.Full(), "xcrap "+i.String()+"\n") {
		t.Errorf("Full() = %q", i.Full())
	}
}
