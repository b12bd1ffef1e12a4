// Package paths resolves the per-OS user-data directories the application
// writes to: database file, daily logs, CSV backups, and the user config.
// Everything lives under a single "DuelPerformanceLogger" root so a user can
// find (or delete) all application data in one place.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDirName is the directory created under the OS user-data location.
const AppDirName = "DuelPerformanceLogger"

// EnvDataDir overrides the resolved data root (useful for tests and
// portable installs).
const EnvDataDir = "DPL_DATA_DIR"

// platform holds the OS lookups so tests can swap them out.
var platform = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DataRoot returns the platform-specific application data root.
//
// Linux:   $XDG_DATA_HOME/DuelPerformanceLogger (fallback ~/.local/share/...)
// macOS:   ~/Library/Application Support/DuelPerformanceLogger
// Windows: %APPDATA%/DuelPerformanceLogger
func DataRoot() (string, error) {
	if override := os.Getenv(EnvDataDir); override != "" {
		return override, nil
	}

	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, AppDirName), nil
		}
		home, err := platform.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", AppDirName), nil
	default:
		// macOS and Windows: os.UserConfigDir returns
		// ~/Library/Application Support and %APPDATA% respectively.
		dir, err := platform.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppDirName), nil
	}
}

// Layout groups the concrete locations derived from one data root.
type Layout struct {
	Root       string
	DBDir      string
	DBFile     string
	LogDir     string
	BackupDir  string
	ConfigDir  string
	ConfigFile string
}

// Resolve computes the full layout under the given root. An empty root means
// "use the platform default".
func Resolve(root string) (Layout, error) {
	if root == "" {
		r, err := DataRoot()
		if err != nil {
			return Layout{}, err
		}
		root = r
	}

	l := Layout{
		Root:      root,
		DBDir:     filepath.Join(root, "db"),
		LogDir:    filepath.Join(root, "logs"),
		BackupDir: filepath.Join(root, "backups"),
		ConfigDir: filepath.Join(root, "config"),
	}
	l.DBFile = filepath.Join(l.DBDir, "duel_performance.sqlite3")
	l.ConfigFile = filepath.Join(l.ConfigDir, "config.conf")
	return l, nil
}

// EnsureDirs creates every directory in the layout. Safe to call repeatedly.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.Root, l.DBDir, l.LogDir, l.BackupDir, l.ConfigDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
