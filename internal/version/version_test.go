package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name       string
		preset     Info
		bi         debug.BuildInfo
		wantVer    string
		wantCommit string
		wantDirty  bool
	}{
		{
			name: "module version and vcs revision",
			bi: debug.BuildInfo{
				Main: debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			wantVer:    "v0.3.0",
			wantCommit: "0123456",
			wantDirty:  true,
		},
		{
			name:   "ldflags win",
			preset: Info{Version: "v1.0.0", Commit: "feedbee"},
			bi: debug.BuildInfo{
				Main:     debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			},
			wantVer:    "v1.0.0",
			wantCommit: "feedbee",
		},
		{
			name:    "devel build",
			bi:      debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			wantVer: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.preset
			fromBuildInfo(&info, &tt.bi)

			if info.Version != tt.wantVer {
				t.Errorf("Version = %q, want %q", info.Version, tt.wantVer)
			}
			if info.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", info.Commit, tt.wantCommit)
			}
			if info.Dirty != tt.wantDirty {
				t.Errorf("Dirty = %v, want %v", info.Dirty, tt.wantDirty)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	got := Info{Version: "v0.3.0", Commit: "abc1234", Dirty: true, GoVersion: "go1.24.10", Platform: "linux/arm64"}.String()
	want := "v0.3.0 (commit: abc1234-dirty, go1.24.10, linux/arm64)"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGet_NeverEmpty(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" {
		t.Errorf("Get() left fields empty: %+v", info)
	}
	if !strings.Contains(Full(), info.Version) {
		t.Errorf("Full() = %q does not contain version %q", Full(), info.Version)
	}
}
