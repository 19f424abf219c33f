// Package version holds build information for mongopool.
//
// Values are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/mongopool/version.Version=1.0.0 \
//	    -X github.com/go-i2p/mongopool/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import "runtime"

// Version is the release version, "dev" for development builds.
var Version = "dev"

// GitCommit is the short commit hash the binary was built from.
var GitCommit = ""

// BuildTime is when the binary was built, in RFC 3339.
var BuildTime = ""

// Full returns the version with commit and build time when known.
func Full() string {
	v := Version
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}

// Banner is the line printed by -version.
func Banner() string {
	return "mongopool " + Full() + " " + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}
