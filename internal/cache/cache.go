// Package cache persists the next log reference id between invocations so
// generate runs can skip the scan that determines it. A missing or damaged
// cache is never fatal: the id is simply recomputed from the source tree.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// LockFileName is the cache file's name inside the configuration directory.
const LockFileName = "Breadlog.lock"

const banner = `# This file is auto-generated by Breadlog. Do not edit!
# It records the next log message reference ID so that existing references
# do not need to be rescanned on every run.
`

type record struct {
	NextReferenceID uint32 `yaml:"next_reference_id"`
}

// Read returns the cached next reference id, or ok=false when no usable
// cache exists. Unreadable or unparseable caches are logged and treated as
// a miss.
func Read(configDir string) (uint32, bool) {
	path := filepath.Join(configDir, LockFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Failed to read reference ID cache", "path", path, "error", err)
		}
		return 0, false
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		log.Warn("Ignoring unparseable reference ID cache", "path", path, "error", err)
		return 0, false
	}
	if rec.NextReferenceID == 0 {
		return 0, false
	}
	return rec.NextReferenceID, true
}

// Write persists nextID to the lock file in configDir.
func Write(configDir string, nextID uint32) error {
	body, err := yaml.Marshal(record{NextReferenceID: nextID})
	if err != nil {
		return fmt.Errorf("failed to serialize reference ID cache: %w", err)
	}

	path := filepath.Join(configDir, LockFileName)
	if err := os.WriteFile(path, append([]byte(banner), body...), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
