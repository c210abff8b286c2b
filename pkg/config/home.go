package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const envHome = "POOKIE_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the pookie-runner home directory, where downloaded
// drivers and logs live.
//
// Resolution order:
//  1. $POOKIE_RUNNER_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetCacheDir returns <home>/cache.
func GetCacheDir() string {
	return filepath.Join(GetHome(), "cache")
}

// GetDriversDir returns <home>/drivers/<browser>.
func GetDriversDir(browser string) string {
	return filepath.Join(GetHome(), "drivers", browser)
}

// BundledChromeDriver returns <home>/drivers/chrome/chromedriver when that
// file exists, or "".
func BundledChromeDriver() string {
	name := "chromedriver"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	path := filepath.Join(GetDriversDir("chrome"), name)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/pookie-runner, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
