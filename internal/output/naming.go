package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ScreenshotPrefix names screenshots taken without an explicit name.
	ScreenshotPrefix = "quest_screenshot"

	// RecordingPrefix names recordings taken without an explicit name.
	RecordingPrefix = "quest_recording"

	// TimestampLayout is YYYYMMDD_HHMMSS.
	TimestampLayout = "20060102_150405"

	PNG = ".png"
	MP4 = ".mp4"
)

// NormalizeName appends ext unless name already ends with it (any case).
func NormalizeName(name, ext string) string {
	if strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		return name
	}
	return name + ext
}

// TimestampName returns <prefix>_<YYYYMMDD_HHMMSS><ext>.
func TimestampName(prefix, ext string, t time.Time) string {
	return prefix + "_" + t.Format(TimestampLayout) + ext
}

// ScreenshotPath returns where a screenshot goes: name (forced to .png) or a
// timestamped default when name is empty.
func ScreenshotPath(dir, name string, now time.Time) string {
	return artifactPath(dir, name, ScreenshotPrefix, PNG, now)
}

// RecordingPath is ScreenshotPath for .mp4 recordings.
func RecordingPath(dir, name string, now time.Time) string {
	return artifactPath(dir, name, RecordingPrefix, MP4, now)
}

// FramePath returns dir/frame_NNNNNN.png for live-stream frame index.
func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%06d%s", index, PNG))
}

func artifactPath(dir, name, prefix, ext string, now time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return filepath.Join(dir, TimestampName(prefix, ext, now))
	}
	return filepath.Join(dir, NormalizeName(name, ext))
}
