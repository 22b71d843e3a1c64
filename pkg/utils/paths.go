package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultConfigPath returns a system-appropriate default path for the config file.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "srsconv.yaml"
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(homeDir, "AppData", "Roaming", "srsconv", "config.yaml")
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "srsconv", "config.yaml")
	default: // Primarily Linux, but also other UNIX-like systems.
		return filepath.Join(homeDir, ".config", "srsconv", "config.yaml")
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory to expand path '%s': %w", path, err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// ResolveAndEnsureOutputPath makes path absolute and creates its parent
// directory so a file can be written there.
func ResolveAndEnsureOutputPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("output path is required")
	}

	targetPath, err := ExpandHome(path)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", targetPath, err)
	}
	targetPath = absPath

	dir := filepath.Dir(targetPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil { // 0755 gives rwx for user, rx for group/other
			return "", fmt.Errorf("failed to create directory '%s' for output: %w", dir, err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to stat directory '%s' for output: %w", dir, err)
	}

	return targetPath, nil
}
