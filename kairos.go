// kairos.go: Public API - Checkpoint-based log file rolling
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Pre-allocated errors to avoid allocations in hot paths
var (
	// ErrNilEvent is returned by Emit when the event slice is nil.
	ErrNilEvent = errors.New("kairos: nil event")

	// ErrSinkClosed is returned by Emit and Write after the sink has been closed.
	ErrSinkClosed = errors.New("kairos: sink is closed")
)

// Formatter renders a single event into its on-disk record.
// AppendFormat appends the rendered record to dst and returns the
// extended slice, following the time.AppendFormat convention so that
// callers can reuse buffers across events.
type Formatter interface {
	AppendFormat(dst, event []byte) []byte
}

// LineFormatter is the default Formatter. It writes the event verbatim
// and appends a trailing newline when the event does not already end
// with one.
type LineFormatter struct{}

// AppendFormat implements Formatter.
func (LineFormatter) AppendFormat(dst, event []byte) []byte {
	dst = append(dst, event...)
	if len(event) == 0 || event[len(event)-1] != '\n' {
		dst = append(dst, '\n')
	}
	return dst
}

// Sink writes discrete log events to disk, rolling to a new file when
// a time checkpoint elapses and pruning old files beyond a configured
// retention count.
//
// File names come from a strftime-style path template: the finest time
// directive in the template determines the rolling period, so
// "app-%Y-%m-%d.log" produces one file per day and "app-%H.log" one per
// hour. Rollover is lazy. No file is created until the first Emit, no
// timers run in the background, and an idle sink simply opens the file
// for the current period on the next Emit, however many checkpoints
// passed in between.
//
// Basic usage example:
//
//	sink, err := kairos.New("logs/app-%Y-%m-%d.log", 7)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close()
//	sink.Emit([]byte("service started"))
//
// Sink implements io.WriteCloser, so it plugs into the standard library
// and most logging frameworks:
//
//	log.SetOutput(sink)
type Sink struct {
	// Immutable configuration, set at construction.
	template      string
	sizeLimit     int64
	retainedFiles int
	localTime     bool
	formatter     Formatter
	clock         Clock
	errorCallback func(operation string, err error)
	fileMode      os.FileMode
	retryCount    int
	retryDelay    time.Duration

	roller *pathRoller
	fs     FileSystem

	// ownedClock is set only when the sink created its own cached
	// clock; it is stopped on Close. Injected clocks stay caller-owned.
	ownedClock *CachedClock

	// mu serializes Emit, rollover and Close. The current pointer is
	// written only under mu but read lock-free by Stats.
	mu        sync.Mutex
	current   atomic.Pointer[activeFile]
	closed    atomic.Bool
	closeOnce sync.Once

	// Telemetry (all atomic)
	emitCount      atomic.Uint64
	rolloverCount  atomic.Uint64
	removedFiles   atomic.Uint64
	failedRemovals atomic.Uint64
	droppedEvents  atomic.Uint64
}

// Sink is an io.WriteCloser so it can be handed to log.SetOutput and
// framework writers directly.
var _ io.WriteCloser = (*Sink)(nil)

// activeFile pairs the open file writer with the checkpoint that ends
// its period. It is swapped whole; a nil activeFile means no event has
// been written since construction or the last rollover failure.
type activeFile struct {
	sink           *fileSink
	nextCheckpoint time.Time
}

// New creates a Sink with safe defaults.
//
// Parameters:
//   - template: strftime-style path template (required, must contain at
//     least one time directive, e.g. "logs/app-%Y-%m-%d.log")
//   - retainedFiles: total number of files to keep, including the
//     active one (0 = keep everything)
//
// Example:
//
//	sink, err := kairos.New("app-%Y-%m-%d.log", 7)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close()
func New(template string, retainedFiles int) (*Sink, error) {
	return NewWithConfig(&Config{
		Template:      template,
		RetainedFiles: retainedFiles,
	})
}

// NewDaily creates a Sink that rolls once per day, deriving the
// template from a plain file path: "app.log" becomes
// "app-%Y-%m-%d.log". A week of files is retained and file names use
// the local timezone so days align with the operator's calendar.
//
// Example:
//
//	sink, err := kairos.NewDaily("logs/app.log")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close()
func NewDaily(path string) (*Sink, error) {
	return NewWithConfig(&Config{
		Template:      insertDirectives(path, "-%Y-%m-%d"),
		RetainedFiles: 7,
		LocalTime:     true,
	})
}

// NewHourly creates a Sink that rolls once per hour, deriving the
// template from a plain file path: "app.log" becomes
// "app-%Y-%m-%d-%H.log". A day of files is retained and file names use
// the local timezone.
func NewHourly(path string) (*Sink, error) {
	return NewWithConfig(&Config{
		Template:      insertDirectives(path, "-%Y-%m-%d-%H"),
		RetainedFiles: 24,
		LocalTime:     true,
	})
}

// insertDirectives places a directive block between the stem and the
// extension of a plain path, so derived constructors keep the caller's
// extension.
func insertDirectives(path, directives string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + directives + ext
}

// NewWithConfig creates a Sink with detailed configuration.
// This provides full control over all Sink options. All Config fields
// are optional except Template; unset fields use safe defaults.
//
// Configuration is validated here and is immutable afterwards. Invalid
// combinations (negative limits, both size forms set, malformed
// templates) fail construction rather than surfacing later during
// Emit.
//
// Example:
//
//	config := &kairos.Config{
//		Template:      "logs/app-%Y-%m-%d.log",
//		SizeLimitStr:  "250MB",
//		RetainedFiles: 14,
//		LocalTime:     true,
//		ErrorCallback: func(operation string, err error) {
//			fmt.Printf("sink error (%s): %v\n", operation, err)
//		},
//	}
//	sink, err := kairos.NewWithConfig(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close()
func NewWithConfig(config *Config) (*Sink, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.Template == "" {
		return nil, errors.New("template cannot be empty")
	}
	if config.SizeLimit < 0 {
		return nil, errors.New("size limit cannot be negative")
	}
	if config.SizeLimit > 0 && config.SizeLimitStr != "" {
		return nil, fmt.Errorf("cannot specify both SizeLimit and SizeLimitStr; use SizeLimitStr for string-based configuration")
	}
	if config.RetainedFiles < 0 {
		return nil, errors.New("retained file count cannot be negative")
	}

	sizeLimit := config.SizeLimit
	if config.SizeLimitStr != "" {
		parsed, err := ParseSize(config.SizeLimitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SizeLimitStr: %w", err)
		}
		if parsed < 0 {
			return nil, errors.New("size limit cannot be negative")
		}
		sizeLimit = parsed
	}

	roller, err := newPathRoller(config.Template)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		template:      config.Template,
		sizeLimit:     sizeLimit,
		retainedFiles: config.RetainedFiles,
		localTime:     config.LocalTime,
		formatter:     config.Formatter,
		clock:         config.Clock,
		errorCallback: config.ErrorCallback,
		fileMode:      config.FileMode,
		retryCount:    config.RetryCount,
		retryDelay:    config.RetryDelay,
		roller:        roller,
		fs:            DefaultFileSystem{},
	}

	// Apply safe defaults for unset values
	if s.formatter == nil {
		s.formatter = LineFormatter{}
	}
	if s.fileMode == 0 {
		s.fileMode = GetDefaultFileMode()
	}
	if s.retryCount == 0 {
		s.retryCount = 3
	}
	if s.retryDelay == 0 {
		s.retryDelay = 10 * time.Millisecond
	}
	if s.clock == nil {
		s.ownedClock = NewCachedClock()
		s.clock = s.ownedClock
	}

	return s, nil
}

// Config holds configuration options for creating a Sink.
// This struct provides a clear, documented way to configure all Sink
// options; it is copied at construction and never read again.
type Config struct {
	// Template is the strftime-style path template (required). The
	// finest time directive present determines the rolling period.
	// Supported directives: %Y %y %m %d %H %M %S %b %B and the %%
	// escape. The directory part of the template must be literal.
	Template string `json:"template"`

	// SizeLimit is the per-file budget in bytes. Once a file would
	// grow past it, further events for that file are dropped and
	// reported through ErrorCallback. 0 disables the cutoff. The limit
	// never triggers a rollover; files change only at checkpoints.
	SizeLimit int64 `json:"size_limit"`

	// SizeLimitStr is the per-file budget as a string (e.g. "100MB",
	// "2GB", "500KB"). Preferred over SizeLimit for readability.
	SizeLimitStr string `json:"size_limit_str"`

	// RetainedFiles is the total number of files to keep, counting the
	// active file. After each rollover, older files beyond this count
	// are deleted best-effort. 0 keeps everything.
	RetainedFiles int `json:"retained_files"`

	// LocalTime determines whether file names and checkpoints use the
	// system's local timezone. False (default) uses UTC.
	LocalTime bool `json:"local_time"`

	// Formatter renders events into on-disk records. Defaults to
	// LineFormatter.
	Formatter Formatter `json:"-"`

	// Clock supplies the current time. Defaults to a cached
	// millisecond-resolution clock owned and stopped by the sink.
	// Mainly useful for tests and replay tooling.
	Clock Clock `json:"-"`

	// ErrorCallback is an optional function called when background
	// failures occur (retention deletions, size cutoffs). Useful for
	// custom diagnostics or error metrics. Never called for errors
	// that Emit itself returns.
	//
	// The callback runs inside Emit's critical section, so it must not
	// call Emit, Write or Close on the same sink; that deadlocks. Write
	// to stderr or an independent channel instead.
	ErrorCallback func(operation string, err error) `json:"-"`

	// FileMode is the file permissions for created files (default: 0644).
	FileMode os.FileMode `json:"file_mode"`

	// RetryCount is the number of retries for file operations (default: 3).
	// Useful for handling temporary filesystem errors.
	RetryCount int `json:"retry_count"`

	// RetryDelay is the delay between retries (default: 10ms).
	RetryDelay time.Duration `json:"retry_delay"`
}

// Emit writes one event to the file for the current period.
//
// The first Emit after construction creates the file; before that the
// sink touches nothing on disk. When the clock has passed the current
// file's checkpoint, Emit closes that file, opens the file for the new
// period and prunes old files beyond RetainedFiles, all before the
// event is written. Rollover failures are returned to the caller and
// retried by the next Emit; retention failures are only reported
// through ErrorCallback.
//
// Emit is safe for concurrent use. Events from concurrent callers are
// written whole, in some serial order.
//
// Returns ErrNilEvent for a nil event and ErrSinkClosed after Close;
// filesystem errors from opening or closing files propagate unchanged.
func (s *Sink) Emit(event []byte) error {
	if event == nil {
		return ErrNilEvent
	}
	if s.closed.Load() {
		return ErrSinkClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock; Close may have won the race.
	if s.closed.Load() {
		return ErrSinkClosed
	}

	now := s.clock.Now()
	if s.localTime {
		now = now.Local()
	} else {
		now = now.UTC()
	}

	cur := s.current.Load()
	if cur == nil || !now.Before(cur.nextCheckpoint) {
		if err := s.rollover(now, cur); err != nil {
			return err
		}
		cur = s.current.Load()
	}

	s.emitCount.Add(1)
	return cur.sink.writeEvent(event)
}

// Write implements io.Writer for universal compatibility. It forwards
// to Emit and reports the full length on success, so buffered writers
// and the standard log package never see short writes.
//
// Example:
//
//	sink, _ := kairos.NewDaily("app.log")
//	defer sink.Close()
//	log.SetOutput(sink)
//	log.Println("this goes through kairos")
func (s *Sink) Write(p []byte) (int, error) {
	if err := s.Emit(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the sink and releases its resources: the current file,
// if one is open, and the internally-created cached clock.
//
// Close is idempotent. The first call performs the shutdown and
// returns any file close error; subsequent calls are no-ops returning
// nil. Every Emit after Close fails with ErrSinkClosed, including on a
// sink that never emitted.
//
// Example:
//
//	sink, err := kairos.New("app-%Y-%m-%d.log", 7)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close() // Ensure cleanup
func (s *Sink) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed.Store(true)
		if cur := s.current.Load(); cur != nil {
			s.current.Store(nil)
			closeErr = cur.sink.close()
		}
		if s.ownedClock != nil {
			s.ownedClock.Stop()
		}
	})
	return closeErr
}

// Stats represents sink statistics for telemetry and monitoring.
// The statistics are collected with minimal overhead and are safe to
// query frequently for monitoring dashboards.
type Stats struct {
	// Event statistics
	EmitCount     uint64 `json:"emit_count"`     // Events accepted by Emit
	DroppedEvents uint64 `json:"dropped_events"` // Events dropped by the size cutoff

	// Rollover and retention statistics
	RolloverCount  uint64 `json:"rollover_count"`  // Files opened so far
	RemovedFiles   uint64 `json:"removed_files"`   // Old files deleted by retention
	FailedRemovals uint64 `json:"failed_removals"` // Retention deletions that failed

	// Current file
	CurrentPath     string    `json:"current_path"`      // Path of the open file ("" before first Emit)
	CurrentFileSize int64     `json:"current_file_size"` // Size of the open file in bytes
	NextCheckpoint  time.Time `json:"next_checkpoint"`   // When the open file's period ends

	// Configuration
	SizeLimitBytes int64 `json:"size_limit_bytes"` // Configured per-file budget
	RetainedFiles  int   `json:"retained_files"`   // Configured retention count
}

// Stats returns a snapshot of the sink's counters and current file
// state. All counters are atomic, so Stats never blocks Emit and is
// safe to call concurrently.
//
// Example usage for monitoring:
//
//	stats := sink.Stats()
//	fmt.Printf("events: %d, rollovers: %d\n", stats.EmitCount, stats.RolloverCount)
//	if stats.FailedRemovals > 0 {
//		log.Printf("retention is failing, check directory permissions")
//	}
func (s *Sink) Stats() Stats {
	stats := Stats{
		EmitCount:      s.emitCount.Load(),
		DroppedEvents:  s.droppedEvents.Load(),
		RolloverCount:  s.rolloverCount.Load(),
		RemovedFiles:   s.removedFiles.Load(),
		FailedRemovals: s.failedRemovals.Load(),
		SizeLimitBytes: s.sizeLimit,
		RetainedFiles:  s.retainedFiles,
	}

	if cur := s.current.Load(); cur != nil {
		stats.CurrentPath = cur.sink.path
		stats.CurrentFileSize = cur.sink.size.Load()
		stats.NextCheckpoint = cur.nextCheckpoint
	}

	return stats
}

// reportError invokes the error callback if set. A panicking callback
// is contained here so diagnostics can never take down a write.
func (s *Sink) reportError(operation string, err error) {
	cb := s.errorCallback
	if cb == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	cb(operation, err)
}
