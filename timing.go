// FILE: lixenwraith/confbind/timing.go
package confbind

import "time"

// Timing of file watching.
const (
	// File watching intervals (ordered by frequency)
	SpinWaitInterval     = 5 * time.Millisecond   // CPU-friendly busy-wait quantum
	MinPollInterval      = 100 * time.Millisecond // Hard floor for file stat polling
	ShutdownTimeout      = 100 * time.Millisecond // Graceful watcher termination window
	DefaultDebounce      = 500 * time.Millisecond // File change coalescence period
	DefaultPollInterval  = time.Second            // Standard file monitoring frequency
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration for reload operations
)

// Watch notifications that are not key names.
const (
	EventFileDeleted        = "file_deleted"
	EventPermissionsChanged = "permissions_changed"
	EventReloadTimeout      = "reload_timeout"
	EventReloadErrorPrefix  = "reload_error:"
)
