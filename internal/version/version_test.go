package version

import (
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestCheckDumpVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		tooOld  bool
		tooNew  bool
	}{
		{"current", DumpFormatVersionCurrent, false, false},
		{"minimum", DumpFormatVersionMin, false, false},
		{"zero", 0, true, false},
		{"next", DumpFormatVersionCurrent + 1, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckDumpVersion(tc.version)
			var old *ErrVersionTooOld
			var newer *ErrVersionTooNew
			if got := errors.As(err, &old); got != tc.tooOld {
				t.Errorf("too old = %v, want %v (err %v)", got, tc.tooOld, err)
			}
			if got := errors.As(err, &newer); got != tc.tooNew {
				t.Errorf("too new = %v, want %v (err %v)", got, tc.tooNew, err)
			}
			if DumpVersions().CanRead(tc.version) != (err == nil) {
				t.Errorf("CanRead(%d) disagrees with CheckDumpVersion", tc.version)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := CheckDumpVersion(DumpFormatVersionCurrent + 1)
	if !strings.Contains(err.Error(), "too new") {
		t.Errorf("unexpected message %q", err)
	}
	err = CheckDumpVersion(0)
	if !strings.Contains(err.Error(), "too old") {
		t.Errorf("unexpected message %q", err)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Build || info.Commit != Commit {
		t.Errorf("unexpected info %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("expected %s, got %s", runtime.Version(), info.GoVersion)
	}
	if info.DumpFormatVersion != DumpFormatVersionCurrent {
		t.Errorf("expected dump format %d, got %d", DumpFormatVersionCurrent, info.DumpFormatVersion)
	}
	if !strings.HasPrefix(info.String(), "beacon "+Build) {
		t.Errorf("unexpected String() %q", info.String())
	}
}
