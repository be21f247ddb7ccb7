// Package version exposes build version information.
package version

// Number is the semantic version of the tool. Overridable at build time:
//
//	go build -ldflags "-X github.com/d-harlan/agentledger/internal/version.Number=1.2.3"
var Number = "0.1.0"

// Info returns a human-readable version string.
func Info() string {
	return "agentledger " + Number
}
