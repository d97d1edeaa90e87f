// Package output holds everything that leaves the process: capture files on
// disk and preview frames served to viewers.
package output

import (
	"image"
)

// Output defines the interface for preview frame sinks.
// This allows the web preview and future sinks (virtual camera, file
// recorder) to share the preview refresher.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output
	// The image is expected to be in RGBA format
	WriteFrame(frame *image.RGBA) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	Quality int
}
