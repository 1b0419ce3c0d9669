// Package version holds build version information for bibsort.
package version

// Overridable at build time:
// go build -ldflags "-X bibsort/internal/version.Version=1.2.0 -X bibsort/internal/version.Commit=abc123"
var (
	// Version is the semantic version of bibsort
	Version = "1.0.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns the version with a short commit when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "bibsort version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
