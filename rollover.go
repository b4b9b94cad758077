// rollover.go: Checkpoint rollover and file retention
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// rollover replaces the current file with the one for now's period.
// Called under s.mu, with cur being the activeFile observed by the
// caller (nil on the very first write).
//
// The order matters: the old file closes before the new path is even
// resolved, the new file opens and is installed, and only then does
// retention run, keyed on the new file's name. Close and open failures
// propagate to the caller; retention failures never do.
func (s *Sink) rollover(now time.Time, cur *activeFile) error {
	if cur != nil {
		// Drop the pair first so a failed close leaves no half-open
		// state behind; the next Emit starts a fresh rollover.
		s.current.Store(nil)
		if err := cur.sink.close(); err != nil {
			return fmt.Errorf("failed to close current file: %v", err)
		}
	}

	path, next := s.roller.resolve(now)
	sink, err := s.openSink(path)
	if err != nil {
		return err
	}
	s.current.Store(&activeFile{sink: sink, nextCheckpoint: next})
	s.rolloverCount.Add(1)

	if s.retainedFiles > 0 {
		s.applyRetention(filepath.Base(path))
	}
	return nil
}

// openSink creates the directory and opens the file for one period,
// seeding the size counter from what is already on disk so a reopened
// period keeps appending against its original budget.
func (s *Sink) openSink(path string) (*fileSink, error) {
	if err := s.createDirectory(path); err != nil {
		return nil, err
	}

	var file *os.File
	err := RetryFileOperation(func() error {
		var err error
		file, err = s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, s.fileMode)
		return err
	}, s.retryCount, s.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %q: %v (check permissions and disk space)", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close() // Ignore close error during cleanup
		return nil, fmt.Errorf("failed to stat log file %q: %v", path, err)
	}

	f := &fileSink{
		path:       path,
		file:       file,
		sizeLimit:  s.sizeLimit,
		formatter:  s.formatter,
		retryCount: s.retryCount,
		retryDelay: s.retryDelay,
		report:     s.reportError,
		dropped:    &s.droppedEvents,
	}
	size := info.Size()
	if size < 0 {
		size = 0
	}
	f.size.Store(size)
	return f, nil
}

// createDirectory creates the template's directory if needed.
func (s *Sink) createDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}

	err := RetryFileOperation(func() error {
		return s.fs.MkdirAll(dir, 0750) // More secure permissions
	}, s.retryCount, s.retryDelay)

	if err != nil {
		return fmt.Errorf("failed to create log directory %q: %v (check permissions and disk space)", dir, err)
	}
	return nil
}

// applyRetention deletes files beyond the retention budget. The file
// just opened always survives regardless of where its name sorts;
// after it, the newest retainedFiles-1 names stay and the rest go, one
// by one. Failed deletions are reported and skipped so one undeletable
// file never shields the others, and nothing here surfaces through
// Emit.
func (s *Sink) applyRetention(currentName string) {
	matches, err := filepath.Glob(filepath.Join(s.roller.dir, s.roller.glob))
	if err != nil {
		s.reportError("retention_scan", fmt.Errorf("failed to scan log directory %q: %v", s.roller.dir, err))
		return
	}

	names := make([]string, 0, len(matches)+1)
	seen := false
	for _, match := range matches {
		name := filepath.Base(match)
		if name == currentName {
			seen = true
		}
		names = append(names, name)
	}
	// The current file counts against the budget even when the scan
	// ran before it hit the disk.
	if !seen {
		names = append(names, currentName)
	}

	others := 0
	for _, name := range s.roller.orderByAge(names) {
		if name == currentName {
			continue
		}
		others++
		if others < s.retainedFiles {
			continue
		}

		path := filepath.Join(s.roller.dir, name)
		if err := s.fs.Remove(path); err != nil {
			s.failedRemovals.Add(1)
			s.reportError("retention", fmt.Errorf("failed to remove old log file %q: %v", path, err))
			continue
		}
		s.removedFiles.Add(1)
	}
}

// FileSystem abstracts the filesystem operations the sink performs.
// The default implementation delegates to the os package; tests swap
// in implementations that inject faults.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
}

// DefaultFileSystem implements FileSystem using the standard os package.
type DefaultFileSystem struct{}

func (DefaultFileSystem) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm) // #nosec G304 -- name derives from the validated path template
}

func (DefaultFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (DefaultFileSystem) Remove(name string) error {
	return os.Remove(name)
}
