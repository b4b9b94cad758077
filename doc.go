// Package kairos provides time-based log file rolling with count-based
// retention.
//
// Kairos writes discrete log events to files named from a
// strftime-style path template. The finest time directive in the
// template sets the rolling period: when the clock crosses a period
// boundary, the next event lands in a new file and files beyond the
// retention count are pruned. There are no background timers; an idle
// sink costs nothing and simply opens the right file on the next
// write.
//
// # Quick Start
//
// One file per day, keeping a week:
//
//	sink, err := kairos.New("logs/app-%Y-%m-%d.log", 7)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close()
//
//	sink.Emit([]byte("service started"))
//
// Or derive the template from a plain path:
//
//	sink, err := kairos.NewDaily("logs/app.log") // logs/app-%Y-%m-%d.log
//
// # Path Templates
//
// Templates combine literal text with time directives:
//
//	%Y  year, four digits        %H  hour (00-23)
//	%y  year, two digits         %M  minute
//	%m  month, two digits        %S  second
//	%b  month, abbreviated name  %%  literal percent sign
//	%B  month, full name
//	%d  day of month
//
// The finest directive present decides how often files roll:
// "app-%Y-%m-%d.log" rolls daily, "app-%Y-%m-%d-%H.log" hourly. At
// least one directive is required and the directory part of the
// template must be literal.
//
// # Retention
//
// RetainedFiles bounds the total number of files, counting the active
// one. After each rollover the directory is scanned for names the
// template could have produced, ordered by the timestamps embedded in
// the names (never by filesystem metadata) and trimmed newest-first.
// Deletions are best-effort: a file that cannot be removed is reported
// through ErrorCallback and retried implicitly at the next rollover,
// and never disturbs writing.
//
// # Advanced Configuration
//
// Full control with detailed configuration:
//
//	config := &kairos.Config{
//		Template:      "logs/app-%Y-%m-%d.log",
//		SizeLimitStr:  "250MB",
//		RetainedFiles: 14,
//		LocalTime:     true,
//		ErrorCallback: func(operation string, err error) {
//			log.Printf("kairos (%s): %v", operation, err)
//		},
//	}
//	sink, err := kairos.NewWithConfig(config)
//
// Size formats (SizeLimitStr):
//   - "100MB", "1GB", "500KB", "2TB"
//   - Single letters: "100M", "1G", "500K", "2T"
//   - Case insensitive: "100mb", "1gb"
//
// The size limit is a per-file budget, not a rotation trigger: once a
// file would grow past it, further events for that file are dropped
// and counted, and the first drop is reported. The next checkpoint
// starts a fresh file with a fresh budget.
//
// # Logging Library Integration
//
// Sink implements io.WriteCloser, so it slots under the standard
// library and common frameworks:
//
//	// Standard library
//	log.SetOutput(sink)
//
//	// slog
//	logger := slog.New(slog.NewJSONHandler(sink, nil))
//
//	// Zap
//	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), level)
//
// Kairos sits below the logging framework and never logs through one
// itself; failures it cannot return from Emit are delivered to the
// ErrorCallback instead.
//
// # Thread Safety
//
// All Sink methods are safe for concurrent use. Emit serializes
// writers so events are written whole and rollover happens exactly
// once per checkpoint; Stats reads atomic counters without blocking
// writers.
//
// Events are filed by the clock reading taken when Emit runs, not by
// any timestamp carried inside the event. An event produced just
// before a checkpoint but emitted just after it lands in the file for
// the later period. This is accepted behavior, not a defect; callers
// needing strict placement must serialize their own emits around the
// boundary.
//
// # Error Handling
//
// Construction validates the whole configuration and fails fast.
// Emit returns ErrNilEvent for nil events, ErrSinkClosed after Close,
// and propagates filesystem errors from opening and closing files.
// Retention failures and size-cutoff drops are reported through the
// optional ErrorCallback:
//
//	config := &kairos.Config{
//		Template: "app-%Y-%m-%d.log",
//		ErrorCallback: func(operation string, err error) {
//			metrics.Counter("log_sink_errors").WithTag("op", operation).Inc()
//		},
//	}
//
// # Best Practices
//
//  1. Always call Close when shutting down (use defer)
//  2. Put each sink's template in its own directory
//  3. Use string-based size configuration (SizeLimitStr) for clarity
//  4. Set ErrorCallback for production monitoring
//  5. Monitor retention via Stats() if disk space is tight
package kairos
