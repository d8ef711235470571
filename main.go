// Package main provides the entry point for NC Connect.
// NC Connect signs in to a Juniper/Pulse Network Connect web portal and
// keeps the ncsvc and ncui tunnel helpers running for the session.
//
// Usage:
//
//	ncconnect [command] [flags]
//
// Environment:
//
//	The ncsvc and ncui helper binaries must be installed; their paths are
//	read from the settings file.
package main

import (
	"os"

	"github.com/yllada/ncconnect/cli"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{
		Version: appVersion,
		Time:    buildTime,
		Commit:  commitSHA,
	}))
}
