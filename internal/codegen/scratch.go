package codegen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// scratchFile buffers a file's replacement contents and atomically swaps them
// into place on Commit. The scratch file lives in the target's directory so
// the final rename never crosses filesystems.
type scratchFile struct {
	path string
	file *os.File
	done bool
}

// newScratchFile creates a uniquely named scratch file alongside target,
// carrying over the target's file mode when it can be read.
func newScratchFile(target string) (*scratchFile, error) {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}

	path := filepath.Join(filepath.Dir(target), fmt.Sprintf(".breadlog-%s.tmp", uuid.NewString()))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return &scratchFile{path: path, file: file}, nil
}

func (s *scratchFile) WriteString(text string) error {
	_, err := s.file.WriteString(text)
	return err
}

// Commit flushes the scratch contents and renames them over target. The
// rename is atomic on POSIX filesystems.
func (s *scratchFile) Commit(target string) error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to flush scratch file: %w", err)
	}
	if err := os.Rename(s.path, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	s.done = true
	return nil
}

// Discard removes an uncommitted scratch file. Cleanup failures are ignored;
// the caller may already have renamed the file away.
func (s *scratchFile) Discard() {
	if s.done {
		return
	}
	s.file.Close()
	os.Remove(s.path)
	s.done = true
}
