package version

import "fmt"

// Set at build time with -ldflags "-X github.com/banshee-data/lanefeatures/internal/version.Version=..."
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and the API.
func String() string {
	return fmt.Sprintf("lanefeatures %s (%s, built %s)", Version, GitSHA, BuildTime)
}
