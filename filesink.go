// filesink.go: Single-file event writer with an optional size budget
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// fileSink owns one open log file. It formats events into pooled
// buffers, appends each as a single write, and enforces the per-file
// size budget by dropping events that would cross it. A fileSink never
// rolls; the coordinator replaces it wholesale at checkpoints.
type fileSink struct {
	path       string
	file       *os.File
	sizeLimit  int64
	formatter  Formatter
	retryCount int
	retryDelay time.Duration
	report     func(operation string, err error)

	// size tracks the bytes in the file, seeded from Stat at open.
	// dropped aggregates into the owning sink's counter; the cutoff
	// itself is reported only once per file.
	size      atomic.Int64
	dropped   *atomic.Uint64
	limitHit  atomic.Bool
	closeOnce sync.Once
}

// writeEvent formats one event and appends it to the file. When the
// formatted record would push the file past its size budget the event
// is dropped: the first drop per file is reported through the error
// callback and every drop is counted. The budget never splits a
// record.
func (f *fileSink) writeEvent(event []byte) error {
	rec := recordPool.Get()
	rec = f.formatter.AppendFormat(rec, event)

	if f.sizeLimit > 0 && f.size.Load()+int64(len(rec)) > f.sizeLimit {
		recordPool.Put(rec)
		f.dropped.Add(1)
		if f.limitHit.CompareAndSwap(false, true) {
			f.report("size_cutoff", fmt.Errorf("size limit %d reached on %q: dropping further events for this file", f.sizeLimit, f.path))
		}
		return nil
	}

	n, err := f.file.Write(rec)
	if n > 0 {
		f.size.Add(int64(n))
	}
	recordPool.Put(rec)
	return err
}

// close releases the file handle exactly once. Later calls are no-ops
// returning nil.
func (f *fileSink) close() error {
	var err error
	f.closeOnce.Do(func() {
		err = RetryFileOperation(func() error {
			return f.file.Close()
		}, f.retryCount, f.retryDelay)
	})
	return err
}
