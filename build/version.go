// Package build holds chunkvault's build-time constants and the handful of
// environment-driven defaults that the engine and its CLI share.
package build

// Version is the current engine version, stamped into every project's
// version.json and into every checkpoint's metadata.
const Version = "1.0.0"

// IssuesURL is where operators should report bugs; carried into the log
// options the same way persist/log.go threads build.IssuesURL through.
const IssuesURL = "https://github.com/uplo-tech/chunkvault/issues"

// The three release classifications a binary can be built as, set at link
// time with -ldflags "-X github.com/uplo-tech/chunkvault/build.Release=dev".
const (
	Dev      = "dev"
	Standard = "standard"
	Testing  = "testing"
)

// Release is set at link time. It defaults to Standard for a plain `go
// build`.
var Release = Standard

// ReleaseTag can be set at link time (-ldflags "-X") to append a suffix such
// as a git short hash to the version string printed by the CLI.
var ReleaseTag = ""

// DEBUG is set at link time for debug builds; it enables verbose logging.
var DEBUG = false
