package mdpress

import (
	"os"
	"os/exec"
)

// Capabilities describes which engine tiers are viable in the current
// execution environment. Resolved once at process start by the
// boundary layer and injected into the service; the core only consumes
// it. The minimal tier is always viable and has no flag.
type Capabilities struct {
	Chrome bool // a browser-grade renderer can be spawned here
	Exec   bool // the packaged renderer binary is present
	Remote bool // a remote rendering service is configured
}

// AllCapabilities assumes every tier is viable. Used as the default
// when the boundary layer injects nothing.
func AllCapabilities() Capabilities {
	return Capabilities{Chrome: true, Exec: true, Remote: true}
}

// Tiers returns the viable engine kinds in degradation order. The
// minimal tier is always last and always present.
func (c Capabilities) Tiers() []EngineKind {
	tiers := make([]EngineKind, 0, 4)
	if c.Chrome {
		tiers = append(tiers, EngineChrome)
	}
	if c.Exec {
		tiers = append(tiers, EngineExec)
	}
	if c.Remote {
		tiers = append(tiers, EngineRemote)
	}
	return append(tiers, EngineMinimal)
}

// DetectCapabilities probes the deployment environment once. This is
// boundary-layer logic: it lives here so both the CLI and the server
// share it, but the conversion core never calls it.
//
// MDPRESS_DISABLE_CHROME force-disables the browser tier, which is the
// usual setting in constrained serverless environments.
func DetectCapabilities(execPath, remoteURL string) Capabilities {
	var c Capabilities

	if os.Getenv("MDPRESS_DISABLE_CHROME") == "" {
		// rod downloads Chromium on demand, so a missing local binary
		// does not rule the tier out; only an explicit opt-out does.
		c.Chrome = true
	}

	if execPath != "" {
		if _, err := exec.LookPath(execPath); err == nil {
			c.Exec = true
		}
	}

	c.Remote = remoteURL != ""
	return c
}
