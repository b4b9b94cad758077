// config.go: Configuration parsing and file-operation utilities
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// sizeUnits maps size suffixes to byte multipliers. Two-letter forms
// come first so "kb" is consumed before the bare "k" would match.
var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"kb", 1 << 10},
	{"mb", 1 << 20},
	{"gb", 1 << 30},
	{"tb", 1 << 40},
	{"k", 1 << 10},
	{"m", 1 << 20},
	{"g", 1 << 30},
	{"t", 1 << 40},
}

// ParseSize converts size strings like "100MB", "1GB" to bytes.
// Supports case-insensitive input and single-letter units (K, M, G, T);
// plain numbers are taken as bytes.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Plain numbers are bytes
	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val, nil
	}

	lower := strings.ToLower(s)
	for _, unit := range sizeUnits {
		if !strings.HasSuffix(lower, unit.suffix) {
			continue
		}

		val, err := strconv.ParseInt(lower[:len(lower)-len(unit.suffix)], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size number in %q: %v", s, err)
		}

		total := val * unit.multiplier
		if total < 0 { // Overflow check
			return 0, fmt.Errorf("size %q too large", s)
		}
		return total, nil
	}

	return 0, fmt.Errorf("unknown size suffix in %q (supported: KB/K, MB/M, GB/G, TB/T)", s)
}

// SanitizeFilename replaces characters that are invalid in file names
// on the current platform. Template validation compares a name against
// its sanitized form: rewriting a name silently would desynchronize
// path formatting from name inference, so mismatches are rejected
// instead.
func SanitizeFilename(filename string) string {
	if runtime.GOOS != "windows" {
		// Unix file names allow anything except NUL
		return strings.ReplaceAll(filename, "\x00", "_")
	}

	// Windows rejects < > : " | ? * and control characters
	var sanitized strings.Builder
	sanitized.Grow(len(filename))
	for _, r := range filename {
		if r < 32 || strings.ContainsRune(`<>:"|?*`, r) {
			sanitized.WriteRune('_')
		} else {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}

// ValidatePathLength checks if the path length is within OS limits.
func ValidatePathLength(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %v", err)
	}

	// Windows caps paths at 260 characters unless long-path support is
	// opted in; Unix-like systems top out at PATH_MAX (4096 on Linux).
	limit := 4096
	if runtime.GOOS == "windows" {
		limit = 260
	}

	if len(absPath) > limit {
		return fmt.Errorf("path too long: %d characters (limit: %d)", len(absPath), limit)
	}

	return nil
}

// GetDefaultFileMode returns the default permission bits for new log
// files. Go translates these onto ACLs on Windows, so 0644 serves on
// every platform.
func GetDefaultFileMode() os.FileMode {
	return 0644
}

// RetryFileOperation executes a file operation with retry logic for
// cross-platform reliability.
//
// Windows and network filesystems can fail transiently under antivirus
// scans, indexing services, or file locking. A few short retries absorb
// those without masking real errors; delays stay small so a genuinely
// failing operation still fails fast.
func RetryFileOperation(operation func() error, retryCount int, retryDelay time.Duration) error {
	if retryCount <= 0 {
		retryCount = 3
	}
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		// The final attempt fails fast without sleeping
		if attempt == retryCount {
			return fmt.Errorf("operation failed after %d retries: %v", retryCount, err)
		}
		time.Sleep(retryDelay)
	}
}
