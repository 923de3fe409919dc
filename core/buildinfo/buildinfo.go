package buildinfo

// Set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/weatherbot/core/buildinfo.Version=v1.0.0'
//	-X 'github.com/m3rciful/weatherbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/weatherbot/core/buildinfo.Date=2026-01-01T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)
