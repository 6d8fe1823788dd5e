package catalog

import (
	"os"
	"path/filepath"
)

// CacheDir returns the XDG-compliant cache directory for cclog.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cclog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "cclog")
}

// DefaultPath returns the default catalog database path.
func DefaultPath() string {
	return filepath.Join(CacheDir(), "catalog.db")
}
