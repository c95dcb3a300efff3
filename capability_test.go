package mdpress

import (
	"slices"
	"testing"
)

func TestCapabilitiesTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		caps Capabilities
		want []EngineKind
	}{
		{
			name: "all viable",
			caps: Capabilities{Chrome: true, Exec: true, Remote: true},
			want: []EngineKind{EngineChrome, EngineExec, EngineRemote, EngineMinimal},
		},
		{
			name: "serverless without browser",
			caps: Capabilities{Exec: true, Remote: true},
			want: []EngineKind{EngineExec, EngineRemote, EngineMinimal},
		},
		{
			name: "air gapped",
			caps: Capabilities{Chrome: true},
			want: []EngineKind{EngineChrome, EngineMinimal},
		},
		{
			name: "nothing viable",
			caps: Capabilities{},
			want: []EngineKind{EngineMinimal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.caps.Tiers()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tiers() = %v, want %v", got, tt.want)
			}
			// The minimal tier closes every chain.
			if got[len(got)-1] != EngineMinimal {
				t.Error("minimal tier is not last")
			}
		})
	}
}

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		name       string
		disableEnv string
		execPath   string
		remoteURL  string
		wantChrome bool
		wantExec   bool
		wantRemote bool
	}{
		{
			name:       "defaults",
			wantChrome: true,
		},
		{
			name:       "chrome disabled",
			disableEnv: "1",
		},
		{
			name:       "remote configured",
			remoteURL:  "https://render.internal/pdf",
			wantChrome: true,
			wantRemote: true,
		},
		{
			name:     "exec binary missing",
			execPath: "definitely-not-a-real-binary-2f8a",
			// LookPath fails, so the tier stays off.
			wantChrome: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MDPRESS_DISABLE_CHROME", tt.disableEnv)

			got := DetectCapabilities(tt.execPath, tt.remoteURL)
			if got.Chrome != tt.wantChrome {
				t.Errorf("Chrome = %v, want %v", got.Chrome, tt.wantChrome)
			}
			if got.Exec != tt.wantExec {
				t.Errorf("Exec = %v, want %v", got.Exec, tt.wantExec)
			}
			if got.Remote != tt.wantRemote {
				t.Errorf("Remote = %v, want %v", got.Remote, tt.wantRemote)
			}
		})
	}
}

func TestEngineKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind EngineKind
		want string
	}{
		{EngineChrome, "chrome"},
		{EngineExec, "exec"},
		{EngineRemote, "remote"},
		{EngineMinimal, "minimal"},
		{EngineNone, "none"},
		{EngineKind(42), "none"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
