// Package common provides shared constants, types, utilities, and interfaces
// used throughout NC Connect.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names, and the exit grace period
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Events: The closed set of workflow events and the login page states
//   - Interfaces: Abstractions for event sinks, credential storage, and logging
//   - Logger: Structured logging backed by zerolog with file rotation
//   - Utils: Common utility functions for directories and string slices
//
// # Usage
//
//	import "github.com/yllada/ncconnect/common"
//
//	common.LogInfo("Connecting to %s", host)
//
//	sink.Post(common.EventTrayConnect)
//
//	if errors.Is(err, common.ErrHelperNotRunning) {
//	    // nothing to terminate
//	}
package common
