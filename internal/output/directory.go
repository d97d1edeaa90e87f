package output

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bryanchriswhite/questcap/internal/logger"
)

// FolderName is the directory created for captures.
const FolderName = "Quest Screen Capture"

// ResolveDir picks the output directory once for the process and creates it.
// A non-empty override wins. On Windows, Program Files is tried first and the
// user's Documents folder is the fallback; elsewhere the home directory is used.
func ResolveDir(override string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil && override == "" {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return resolveDir(runtime.GOOS, home, os.Getenv("ProgramFiles"), override)
}

func resolveDir(goos, home, programFiles, override string) (string, error) {
	log := logger.WithComponent("output")

	if override != "" {
		if err := ensureWritable(override); err != nil {
			return "", err
		}
		return override, nil
	}

	if goos == "windows" {
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		preferred := filepath.Join(programFiles, FolderName)
		err := ensureWritable(preferred)
		if err == nil {
			return preferred, nil
		}
		log.Info().Err(err).Str("path", preferred).Msg("No permission for Program Files, using Documents")

		fallback := filepath.Join(home, "Documents", FolderName)
		if err := os.MkdirAll(fallback, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
		return fallback, nil
	}

	dir := filepath.Join(home, FolderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// ensureWritable creates dir and proves it accepts files.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".write_test_*.tmp")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := tmp.Name()
	tmp.Close()
	return os.Remove(name)
}
