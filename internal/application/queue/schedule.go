package queue

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Invoker fires one scheduled target. Implementations deliver over the
// internal HTTP surface; failures are logged by the schedule, never retried
// here, because the next matching tick is the retry.
type Invoker interface {
	Invoke(ctx context.Context, target string) error
}

// Entry pairs a target with its minute-cron pattern.
type Entry struct {
	Target  string
	Pattern string
}

// DefaultSchedule is the pipeline's control-plane timetable.
func DefaultSchedule() []Entry {
	return []Entry{
		{Target: "discover-artists", Pattern: "0 * * * *"},
		{Target: "worker", Pattern: "*/2 * * * *"},
		{Target: "maintenance", Pattern: "*/15 * * * *"},
		{Target: "monitor", Pattern: "*/30 * * * *"},
	}
}

// Schedule evaluates a fixed entry table against the wall-clock minute and
// fires matching targets.
type Schedule struct {
	entries []Entry
	invoker Invoker
}

// NewSchedule creates a schedule over the given entries.
func NewSchedule(entries []Entry, invoker Invoker) *Schedule {
	return &Schedule{entries: entries, invoker: invoker}
}

// Tick fires every entry whose pattern matches now's minute. Invocations are
// fire-and-forget: a failure is logged and the remaining entries still fire.
func (s *Schedule) Tick(ctx context.Context, now time.Time) []string {
	minute := now.Minute()
	var fired []string
	for _, entry := range s.entries {
		if !MatchesMinute(entry.Pattern, minute) {
			continue
		}
		fired = append(fired, entry.Target)
		if err := s.invoker.Invoke(ctx, entry.Target); err != nil {
			slog.ErrorContext(ctx, "scheduled invocation failed",
				"target", entry.Target,
				"pattern", entry.Pattern,
				"error", err)
			continue
		}
		slog.InfoContext(ctx, "scheduled invocation fired",
			"target", entry.Target,
			"minute", minute)
	}
	return fired
}

// MatchesMinute evaluates the supported minute-cron subset:
//
//	"* * * * *"   every minute
//	"*/N * * * *" minutes where minute mod N == 0
//	"M * * * *"   exact minute M, only when the pattern starts with digits
//	              followed by whitespace
//
// Anything else never fires. Malformed patterns are intentionally silent
// rather than an error so a bad table entry disables one target instead of
// the scheduler.
func MatchesMinute(pattern string, minute int) bool {
	if pattern == "* * * * *" {
		return true
	}

	if rest, ok := strings.CutPrefix(pattern, "*/"); ok {
		fields := strings.Fields(rest)
		if len(fields) != 5 || fields[1] != "*" || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
			return false
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return false
		}
		return minute%n == 0
	}

	// Exact minute: the pattern must begin with digits followed by whitespace.
	i := 0
	for i < len(pattern) && pattern[i] >= '0' && pattern[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(pattern) || !unicode.IsSpace(rune(pattern[i])) {
		return false
	}
	fields := strings.Fields(pattern)
	if len(fields) != 5 || fields[1] != "*" || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return false
	}
	m, err := strconv.Atoi(fields[0])
	if err != nil || m < 0 || m > 59 {
		return false
	}
	return minute == m
}
