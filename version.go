package subsys

// Version is the current version of go-subsys
const Version = "1.0.0"

// VersionInfo describes this build
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Backends lists the supervision suites the supervise subsystem drives
	Backends []string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Backends: []string{"runit", "daemontools"},
	}
}
