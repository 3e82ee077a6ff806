// Package resource tracks temp/cache files created during one request so
// they can be cleaned up deterministically, mirroring the original
// ResourceManager's register/cleanup protocol rather than relying on
// finalizers.
package resource

import (
	"os"
	"sync"

	"github.com/vontrex/mediaingest/pkg/logger"
)

const component = "resource"

// Stats reports how many files of each kind are currently tracked.
type Stats struct {
	TempFiles  int
	CacheFiles int
	Cleaned    bool
}

// Manager tracks temp files (always deleted on cleanup) and cache files
// (deleted by CleanupCache or CleanupAll, never by CleanupTemp) for a single request.
// It is safe for concurrent use since the handlers that register files run
// in their own goroutines (§5 bounded fan-out).
type Manager struct {
	mu        sync.Mutex
	tempFiles map[string]struct{}
	cacheFiles map[string]struct{}
	cleaned   bool
}

// New returns an empty Manager, scoped to one request.
func New() *Manager {
	return &Manager{
		tempFiles:  make(map[string]struct{}),
		cacheFiles: make(map[string]struct{}),
	}
}

// RegisterTemp tracks path as a temp file to be removed by CleanupTemp or
// CleanupAll.
func (m *Manager) RegisterTemp(path string) {
	if path == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempFiles[path] = struct{}{}
}

// RegisterCache tracks path as a cache file, removed by CleanupCache or
// CleanupAll.
func (m *Manager) RegisterCache(path string) {
	if path == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheFiles[path] = struct{}{}
}

// RegisterFiles tracks a batch of paths at once, splitting by isCache.
func (m *Manager) RegisterFiles(paths []string, isCache bool) {
	for _, p := range paths {
		if isCache {
			m.RegisterCache(p)
		} else {
			m.RegisterTemp(p)
		}
	}
}

// CleanupTemp removes every registered temp file. It is idempotent: files
// already removed (or never created) are skipped silently. Cache files are
// left untouched, matching "cleanup per link immediately after delivery"
// while cache entries persist for reuse.
func (m *Manager) CleanupTemp() {
	m.mu.Lock()
	paths := make([]string, 0, len(m.tempFiles))
	for p := range m.tempFiles {
		paths = append(paths, p)
	}
	m.tempFiles = make(map[string]struct{})
	m.mu.Unlock()

	for _, p := range paths {
		removeQuiet(p)
	}
}

// CleanupCache removes every registered cache file.
func (m *Manager) CleanupCache() {
	m.mu.Lock()
	paths := make([]string, 0, len(m.cacheFiles))
	for p := range m.cacheFiles {
		paths = append(paths, p)
	}
	m.cacheFiles = make(map[string]struct{})
	m.mu.Unlock()

	for _, p := range paths {
		removeQuiet(p)
	}
}

// CleanupAll removes both temp and cache files. Safe to call more than
// once; the second call is a no-op.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		return
	}
	m.cleaned = true
	m.mu.Unlock()

	m.CleanupTemp()
	m.CleanupCache()
}

// Stats reports current tracking counts, for diagnostics/tests.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TempFiles:  len(m.tempFiles),
		CacheFiles: len(m.cacheFiles),
		Cleaned:    m.cleaned,
	}
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf(component, "failed to remove %s: %v", path, err)
	}
}

// TempFileContext registers path as a temp file, runs fn, then removes it
// regardless of fn's outcome — the scoped-cleanup idiom the original exposes
// as a context manager.
func (m *Manager) TempFileContext(path string, fn func() error) error {
	m.RegisterTemp(path)
	defer removeQuiet(path)
	return fn()
}
