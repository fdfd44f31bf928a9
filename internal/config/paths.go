package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the file system locations the application writes to.
// Relative paths are resolved against the executable directory, never the
// current working directory.
type Paths struct {
	ExecutableDir string
	LogsDir       string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	exeDir := filepath.Dir(exe)
	return &Paths{
		ExecutableDir: exeDir,
		LogsDir:       filepath.Join(exeDir, "logs"),
	}, nil
}

// Resolve returns path unchanged when absolute, otherwise joined with the
// executable directory.
func (p *Paths) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.ExecutableDir, path)
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ResolveLogFile returns the absolute log file path for cfg.
func (c *Config) ResolveLogFile() string {
	paths, err := GetPaths()
	if err != nil {
		return c.Logging.FilePath
	}
	return paths.Resolve(c.Logging.FilePath)
}
