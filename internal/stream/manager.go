// Package stream tracks the lifecycle of active downloads, providing
// create/remove/list operations used by the CLI and the metrics collector.
package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/mmsget/internal/mmsh"
)

// StatsFunc returns a snapshot of a download's counters. It must be safe to
// call from any goroutine.
type StatsFunc func() mmsh.Stats

// Download represents an active download.
type Download struct {
	Key       string
	URL       string
	StartedAt time.Time
	stats     StatsFunc
	done      chan struct{}
}

// Stats returns the download's current counters, or the zero value when no
// source was attached.
func (d *Download) Stats() mmsh.Stats {
	if d.stats == nil {
		return mmsh.Stats{}
	}
	return d.stats()
}

// Done is closed when the download is removed from its manager.
func (d *Download) Done() <-chan struct{} {
	return d.done
}

// Manager manages the lifecycle of active downloads.
type Manager struct {
	log       *slog.Logger
	mu        sync.RWMutex
	downloads map[string]*Download
}

// NewManager creates a new download manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:       log.With("component", "stream-manager"),
		downloads: make(map[string]*Download),
	}
}

// Create registers a new download keyed by its output path. Returns the
// download and true if created, or nil and false if a download with this key
// already exists.
func (m *Manager) Create(key, url string, stats StatsFunc) (*Download, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.downloads[key]; ok {
		m.log.Warn("download already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	d := &Download{
		Key:       key,
		URL:       url,
		StartedAt: time.Now(),
		stats:     stats,
		done:      make(chan struct{}),
	}

	m.downloads[key] = d
	m.log.Info("download created", "key", key, "url", url)
	return d, true
}

// Remove removes a download from the manager.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	d, ok := m.downloads[key]
	if ok {
		delete(m.downloads, key)
	}
	m.mu.Unlock()

	if ok {
		close(d.done)
		m.log.Info("download removed", "key", key, "elapsed", time.Since(d.StartedAt).Round(time.Millisecond))
	}
}

// List returns all active downloads.
func (m *Manager) List() []*Download {
	m.mu.RLock()
	defer m.mu.RUnlock()

	downloads := make([]*Download, 0, len(m.downloads))
	for _, d := range m.downloads {
		downloads = append(downloads, d)
	}
	return downloads
}
