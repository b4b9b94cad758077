// roller.go: Path templates, rolling periods and file-name ordering
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// rollPeriod is the calendar unit a template rolls on, derived from the
// finest directive present in the template.
type rollPeriod int

const (
	periodNone rollPeriod = iota
	periodYear
	periodMonth
	periodDay
	periodHour
	periodMinute
	periodSecond
)

// templateSeg is one piece of the template's file name: either literal
// text or a single time directive. verb is 0 for literal segments.
type templateSeg struct {
	literal string
	verb    byte
}

// directivePeriods maps supported directives to the period they imply.
// The set is deliberately small: every directive here can be both
// formatted and parsed back out of a file name, which retention relies
// on for age ordering.
var directivePeriods = map[byte]rollPeriod{
	'Y': periodYear,
	'y': periodYear,
	'm': periodMonth,
	'b': periodMonth,
	'B': periodMonth,
	'd': periodDay,
	'H': periodHour,
	'M': periodMinute,
	'S': periodSecond,
}

// pathRoller turns instants into file paths and checkpoints, and infers
// ages back out of file names. It is immutable after construction and
// safe for concurrent use.
type pathRoller struct {
	pattern *strftime.Strftime
	dir     string        // literal directory part of the template
	glob    string        // base-name pattern matching every producible name
	segs    []templateSeg // base-name structure, for name inference
	period  rollPeriod
}

// newPathRoller validates and compiles a path template. The directory
// part must be literal; the file name part needs at least one time
// directive. Glob metacharacters are rejected everywhere, in the name
// or the directory they would break the retention scan.
func newPathRoller(template string) (*pathRoller, error) {
	if err := ValidatePathLength(template); err != nil {
		return nil, fmt.Errorf("invalid path template: %v", err)
	}

	dir := filepath.Dir(template)
	base := filepath.Base(template)

	if strings.ContainsRune(dir, '%') {
		return nil, fmt.Errorf("template %q: time directives are not allowed in the directory part", template)
	}
	if strings.ContainsAny(dir, "*?[]") {
		return nil, fmt.Errorf("template %q: directory part may not contain glob characters", template)
	}
	if SanitizeFilename(base) != base {
		return nil, fmt.Errorf("template %q: file name contains invalid characters", template)
	}

	segs, period, err := parseTemplateSegs(base)
	if err != nil {
		return nil, fmt.Errorf("template %q: %v", template, err)
	}
	if period == periodNone {
		return nil, fmt.Errorf("template %q contains no time directive", template)
	}

	pattern, err := strftime.New(template)
	if err != nil {
		return nil, fmt.Errorf("template %q: %v", template, err)
	}

	return &pathRoller{
		pattern: pattern,
		dir:     dir,
		glob:    buildGlob(segs),
		segs:    segs,
		period:  period,
	}, nil
}

// parseTemplateSegs splits a template's file name into literal and
// directive segments and reports the finest period directive found.
func parseTemplateSegs(base string) ([]templateSeg, rollPeriod, error) {
	var segs []templateSeg
	var literal []byte
	period := periodNone

	flush := func() {
		if len(literal) > 0 {
			segs = append(segs, templateSeg{literal: string(literal)})
			literal = literal[:0]
		}
	}

	for i := 0; i < len(base); i++ {
		c := base[i]
		if c != '%' {
			if c == '*' || c == '?' || c == '[' || c == ']' {
				return nil, periodNone, fmt.Errorf("file name may not contain %q", c)
			}
			literal = append(literal, c)
			continue
		}

		i++
		if i == len(base) {
			return nil, periodNone, fmt.Errorf("file name ends with a bare %%")
		}
		if base[i] == '%' {
			literal = append(literal, '%')
			continue
		}

		p, ok := directivePeriods[base[i]]
		if !ok {
			return nil, periodNone, fmt.Errorf("unsupported directive %%%c", base[i])
		}
		flush()
		segs = append(segs, templateSeg{verb: base[i]})
		if p > period {
			period = p
		}
	}
	flush()

	return segs, period, nil
}

// buildGlob derives the filepath.Glob pattern matching every file name
// this template can produce. Runs of directives collapse into a single
// wildcard.
func buildGlob(segs []templateSeg) string {
	var b strings.Builder
	star := false
	for _, seg := range segs {
		if seg.verb != 0 {
			if !star {
				b.WriteByte('*')
				star = true
			}
			continue
		}
		star = false
		b.WriteString(seg.literal)
	}
	return b.String()
}

// resolve maps an instant to the file path for its period and the
// checkpoint at which that period ends.
func (r *pathRoller) resolve(now time.Time) (string, time.Time) {
	return r.pattern.FormatString(now), r.nextCheckpoint(now)
}

// nextCheckpoint returns the start of the period after the one
// containing now, computed on the calendar of now's location so that
// day and coarser boundaries survive DST shifts.
func (r *pathRoller) nextCheckpoint(now time.Time) time.Time {
	y, mo, d := now.Date()
	h, mi, s := now.Clock()
	loc := now.Location()

	switch r.period {
	case periodSecond:
		return time.Date(y, mo, d, h, mi, s, 0, loc).Add(time.Second)
	case periodMinute:
		return time.Date(y, mo, d, h, mi, 0, 0, loc).Add(time.Minute)
	case periodHour:
		return time.Date(y, mo, d, h, 0, 0, 0, loc).Add(time.Hour)
	case periodDay:
		return time.Date(y, mo, d+1, 0, 0, 0, 0, loc)
	case periodMonth:
		return time.Date(y, mo+1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y+1, 1, 1, 0, 0, 0, 0, loc)
	}
}

// orderByAge returns the given file names sorted newest first by the
// timestamps embedded in the names. Ordering never consults filesystem
// metadata: copied or touched files keep their logical age. Names the
// template cannot have produced are dropped from the result, so
// retention leaves foreign files alone even when they match the glob.
func (r *pathRoller) orderByAge(names []string) []string {
	type nameAge struct {
		name string
		when time.Time
	}

	aged := make([]nameAge, 0, len(names))
	for _, name := range names {
		when, ok := r.parseNameTime(name)
		if !ok {
			continue
		}
		aged = append(aged, nameAge{name: name, when: when})
	}

	sort.Slice(aged, func(i, j int) bool {
		if !aged[i].when.Equal(aged[j].when) {
			return aged[i].when.After(aged[j].when)
		}
		return aged[i].name > aged[j].name
	})

	ordered := make([]string, len(aged))
	for i, a := range aged {
		ordered[i] = a.name
	}
	return ordered
}

// parseNameTime recovers the instant embedded in a file name by
// walking the template segments against it. Literal segments must
// match exactly and every directive must produce an in-range value;
// anything else means the name is not ours.
func (r *pathRoller) parseNameTime(name string) (time.Time, bool) {
	year, month, day := 0, 1, 1
	hour, minute, sec := 0, 0, 0

	pos := 0
	for _, seg := range r.segs {
		if seg.verb == 0 {
			if !strings.HasPrefix(name[pos:], seg.literal) {
				return time.Time{}, false
			}
			pos += len(seg.literal)
			continue
		}

		var v int
		var ok bool
		switch seg.verb {
		case 'Y':
			v, ok = takeDigits(name, &pos, 4)
			year = v
		case 'y':
			v, ok = takeDigits(name, &pos, 2)
			// Same century split as time.Parse: 69-99 land in the
			// 1900s, 00-68 in the 2000s.
			if v >= 69 {
				year = 1900 + v
			} else {
				year = 2000 + v
			}
		case 'm':
			v, ok = takeDigits(name, &pos, 2)
			month = v
		case 'd':
			v, ok = takeDigits(name, &pos, 2)
			day = v
		case 'H':
			v, ok = takeDigits(name, &pos, 2)
			hour = v
		case 'M':
			v, ok = takeDigits(name, &pos, 2)
			minute = v
		case 'S':
			v, ok = takeDigits(name, &pos, 2)
			sec = v
		case 'b':
			month, ok = takeMonthName(name, &pos, false)
		case 'B':
			month, ok = takeMonthName(name, &pos, true)
		}
		if !ok {
			return time.Time{}, false
		}
	}
	if pos != len(name) {
		return time.Time{}, false
	}

	// Reject values time.Date would normalize away (month 13, Feb 31):
	// such names were not produced by this template.
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
		return time.Time{}, false
	}
	return t, true
}

// takeDigits consumes exactly n ASCII digits from name at *pos.
func takeDigits(name string, pos *int, n int) (int, bool) {
	if *pos+n > len(name) {
		return 0, false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := name[*pos+i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	*pos += n
	return v, true
}

// takeMonthName consumes a month name from name at *pos, abbreviated
// ("Jan") or full ("January"). No month name is a prefix of another, so
// first match wins.
func takeMonthName(name string, pos *int, full bool) (int, bool) {
	for m := time.January; m <= time.December; m++ {
		s := m.String()
		if !full {
			s = s[:3]
		}
		if strings.HasPrefix(name[*pos:], s) {
			*pos += len(s)
			return int(m), true
		}
	}
	return 0, false
}
