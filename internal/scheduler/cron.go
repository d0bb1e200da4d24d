// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package scheduler runs catalog syncs on a cron schedule and recovers
// missed runs after downtime.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldSet is one parsed cron field as a membership set.
type fieldSet map[int]struct{}

func (f fieldSet) contains(v int) bool {
	_, ok := f[v]
	return ok
}

// Schedule is a parsed standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Supported syntax per field: "*", single values, ranges ("1-5"),
// lists ("1,3,5"), and steps ("*/2", "10-30/5"). Day-of-week accepts
// 0-7 with both 0 and 7 meaning Sunday. When both day fields are
// restricted, either matching is sufficient, as in classic cron.
type Schedule struct {
	minutes     fieldSet
	hours       fieldSet
	daysOfMonth fieldSet
	months      fieldSet
	daysOfWeek  fieldSet

	// Wildcard day fields need remembering: the dom/dow OR rule only
	// applies when both fields are restricted.
	domWildcard bool
	dowWildcard bool
}

// cron field bounds, in field order.
var fieldBounds = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// Parse parses a standard 5-field cron expression.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression needs 5 fields, got %d", len(fields))
	}

	sets := make([]fieldSet, 5)
	for i, field := range fields {
		b := fieldBounds[i]
		set, err := parseField(field, b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field %q: %w", b.name, field, err)
		}
		sets[i] = set
	}

	// Fold day-of-week 7 into 0 (both mean Sunday).
	if sets[4].contains(7) {
		delete(sets[4], 7)
		sets[4][0] = struct{}{}
	}

	return &Schedule{
		minutes:     sets[0],
		hours:       sets[1],
		daysOfMonth: sets[2],
		months:      sets[3],
		daysOfWeek:  sets[4],
		domWildcard: fields[2] == "*",
		dowWildcard: fields[4] == "*",
	}, nil
}

// Next returns the first time strictly after the given time that matches
// the schedule. The scan is minute-granular and bounded at four years;
// any parseable expression matches well within that.
func (s *Schedule) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	const maxMinutes = 4 * 366 * 24 * 60
	for i := 0; i < maxMinutes; i++ {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (s *Schedule) matches(t time.Time) bool {
	if !s.minutes.contains(t.Minute()) ||
		!s.hours.contains(t.Hour()) ||
		!s.months.contains(int(t.Month())) {
		return false
	}

	domMatch := s.daysOfMonth.contains(t.Day())
	dowMatch := s.daysOfWeek.contains(int(t.Weekday()))

	switch {
	case s.domWildcard && s.dowWildcard:
		return true
	case s.domWildcard:
		return dowMatch
	case s.dowWildcard:
		return domMatch
	default:
		// Both restricted: classic cron ORs them.
		return domMatch || dowMatch
	}
}

// parseField expands one cron field into its value set.
func parseField(field string, min, max int) (fieldSet, error) {
	set := make(fieldSet)
	for _, part := range strings.Split(field, ",") {
		if err := expandPart(set, part, min, max); err != nil {
			return nil, err
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	return set, nil
}

// expandPart adds one comma-separated element ("*", "n", "a-b", with an
// optional "/step" suffix) into the set.
func expandPart(set fieldSet, part string, min, max int) error {
	step := 1
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		v, err := strconv.Atoi(part[idx+1:])
		if err != nil || v <= 0 {
			return fmt.Errorf("bad step %q", part[idx+1:])
		}
		step = v
		part = part[:idx]
	}

	start, end := min, max
	switch {
	case part == "*":
		// Full range.
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		a, err := strconv.Atoi(bounds[0])
		if err != nil {
			return fmt.Errorf("bad range start %q", bounds[0])
		}
		b, err := strconv.Atoi(bounds[1])
		if err != nil {
			return fmt.Errorf("bad range end %q", bounds[1])
		}
		if a > b || a < min || b > max {
			return fmt.Errorf("range %d-%d outside %d-%d", a, b, min, max)
		}
		start, end = a, b
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("bad value %q", part)
		}
		if v < min || v > max {
			return fmt.Errorf("value %d outside %d-%d", v, min, max)
		}
		if step == 1 {
			set[v] = struct{}{}
			return nil
		}
		// "n/step" means every step starting at n.
		start = v
	}

	for v := start; v <= end; v += step {
		set[v] = struct{}{}
	}
	return nil
}
