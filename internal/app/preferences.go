package app

import (
	"os"
	"sync"

	"github.com/yourusername/relaxr-go/internal/domain"
)

// Preferences holds the save-location preference for the lifetime of the
// process. It is never written to disk.
type Preferences struct {
	mu      sync.RWMutex
	saveDir string
}

// NewPreferences creates preferences seeded with an optional directory
func NewPreferences(initialSaveDir string) *Preferences {
	return &Preferences{saveDir: initialSaveDir}
}

// SaveDir returns the preferred save directory, or "" when unset
func (p *Preferences) SaveDir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.saveDir
}

// SetSaveDir sets the preferred save directory. The directory must exist.
func (p *Preferences) SetSaveDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return domain.DirectoryOperationFailed(domain.MsgSetDirectoryFailed, err)
	}
	if !info.IsDir() {
		return domain.DirectoryOperationFailed(domain.MsgSetDirectoryFailed, nil)
	}

	p.mu.Lock()
	p.saveDir = dir
	p.mu.Unlock()
	return nil
}

// JobOptions returns the per-job snapshot of the preference
func (p *Preferences) JobOptions() JobOptions {
	return JobOptions{SaveDir: p.SaveDir()}
}
