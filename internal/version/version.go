package version

// Version is the version of the sentinel binary, set at build time:
// -ldflags "-X github.com/rxtech-lab/kline-sentinel/internal/version.Version=1.2.3"
// "main" marks a development build.
var Version = "v1.0.0"

// GetVersion returns the binary version.
func GetVersion() string {
	return Version
}
