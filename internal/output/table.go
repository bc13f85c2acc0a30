// Package output provides terminal output utilities for fsprof.
//
// This package includes:
//   - Table rendering for sessions, events and per-kind counts
//   - Session summaries
//   - Tree rendering for any treemodel.Model
//   - Progress bars and spinners for ingest and watch
//
// Tables use box-drawing characters and, when stdout is a terminal, ANSI
// colors. Progress indicators are safe for use from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/fsprof/internal/analyzer"
	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/store"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// ShortID is the session ID prefix shown in tables. Any unique prefix is
// accepted back on the command line.
func ShortID(s *store.Session) string {
	return s.ID.String()[:8]
}

// RenderSessionTable renders stored sessions in the order given.
func RenderSessionTable(sessions []*store.Session) string {
	if len(sessions) == 0 {
		return "No sessions recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s  %-16s  %7s  %9s  %7s  %s\n",
		"Session", "Started", "PID", "Events", "Dropped", "Command"))
	sb.WriteString(strings.Repeat("─", 78))
	sb.WriteString("\n")

	for _, s := range sessions {
		sb.WriteString(fmt.Sprintf("%-8s  %-16s  %7d  %9s  %7s  %s\n",
			ShortID(s),
			humanize.Time(s.StartedAt),
			s.PID,
			humanize.Comma(int64(s.EventCount)),
			humanize.Comma(int64(s.Dropped)),
			truncate(s.Command, 30)))
	}

	return sb.String()
}

// RenderEventTable renders events in sequence order.
func RenderEventTable(events []*store.EventRecord) string {
	if len(events) == 0 {
		return "No events.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%6s  %8s  %-6s  %4s  %-8s  %-22s  %s\n",
		"Seq", "Time", "Kind", "FD", "Result", "Detail", "Path"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, r := range events {
		e := r.Event

		fd := "-"
		if n, ok := e.FD(); ok {
			fd = fmt.Sprintf("%d", n)
		}

		p := "-"
		if r.HasPath {
			p = truncateLeft(r.Path, 40)
		}

		// Pad before coloring so escape codes don't skew the columns.
		result := fmt.Sprintf("%-8s", formatResult(e.Result))
		if e.Result.IsError {
			result = colorize(colorRed, result)
		}

		sb.WriteString(fmt.Sprintf("%6d  %8s  %-6s  %4s  %s  %-22s  %s\n",
			r.Seq,
			fmt.Sprintf("%dms", e.StartMS),
			e.Kind,
			fd,
			result,
			formatDetail(e),
			p))
	}

	return sb.String()
}

// RenderKindCounts renders one line per traced kind, in declaration order.
func RenderKindCounts(counts map[perf.Kind]int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s %10s\n", "Kind", "Events"))
	sb.WriteString(strings.Repeat("─", 19))
	sb.WriteString("\n")

	total := 0
	for _, k := range perf.Kinds() {
		n := counts[k]
		total += n
		sb.WriteString(fmt.Sprintf("%-8s %10s\n", k, humanize.Comma(int64(n))))
	}
	sb.WriteString(strings.Repeat("─", 19))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-8s %10s\n", "total", humanize.Comma(int64(total))))

	return sb.String()
}

// RenderSummary renders a session summary: header facts, per-kind counts,
// failures by errno and the most visited paths and directories.
func RenderSummary(s *analyzer.Summary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Session:   %s\n", s.SessionID))
	if s.Command != "" {
		sb.WriteString(fmt.Sprintf("Command:   %s (pid %d)\n", s.Command, s.PID))
	}
	if !s.Started.IsZero() {
		sb.WriteString(fmt.Sprintf("Started:   %s (%s)\n",
			s.Started.Local().Format("2006-01-02 15:04:05"), humanize.Time(s.Started)))
	}

	events := humanize.Comma(int64(s.Events))
	var notes []string
	if s.Dropped > 0 {
		notes = append(notes, colorize(colorRed, fmt.Sprintf("%s dropped", humanize.Comma(int64(s.Dropped)))))
	}
	if s.PathlessEvents > 0 {
		notes = append(notes, fmt.Sprintf("%d without path", s.PathlessEvents))
	}
	if len(notes) > 0 {
		events += " (" + strings.Join(notes, ", ") + ")"
	}
	sb.WriteString(fmt.Sprintf("Events:    %s\n", events))
	sb.WriteString(fmt.Sprintf("Span:      %s\n", time.Duration(s.SpanMS())*time.Millisecond))
	if s.BytesRequested > 0 {
		sb.WriteString(fmt.Sprintf("Requested: %s via pread\n", humanize.IBytes(s.BytesRequested)))
	}

	if len(s.Kinds) > 0 {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-8s %10s %8s\n", "Kind", "Events", "Failed"))
		sb.WriteString(strings.Repeat("─", 28))
		sb.WriteString("\n")
		for _, k := range s.Kinds {
			failed := fmt.Sprintf("%8d", k.Failed)
			if k.Failed > 0 {
				failed = colorize(colorRed, failed)
			}
			sb.WriteString(fmt.Sprintf("%-8s %10s %s\n", k.Kind, humanize.Comma(int64(k.Count)), failed))
		}
	}

	if len(s.Failures) > 0 {
		sb.WriteString("\nFailures:\n")
		for _, f := range s.Failures {
			sb.WriteString(fmt.Sprintf("  %-10s %6d\n", f.Name, f.Count))
		}
	}

	if len(s.TopPaths) > 0 {
		sb.WriteString(fmt.Sprintf("\nTop paths (%s distinct):\n", humanize.Comma(int64(s.DistinctPaths))))
		writePathStats(&sb, s.TopPaths)
	}
	if len(s.TopDirectories) > 0 {
		sb.WriteString("\nTop directories:\n")
		writePathStats(&sb, s.TopDirectories)
	}

	return sb.String()
}

func writePathStats(sb *strings.Builder, stats []analyzer.PathStat) {
	for _, p := range stats {
		sb.WriteString(fmt.Sprintf("  %8s  %s\n", humanize.Comma(int64(p.Count)), p.Path))
	}
}

// formatResult returns "ok" or the errno name of a failure.
func formatResult(r perf.Result) string {
	if !r.IsError {
		return "ok"
	}
	return analyzer.ErrnoName(r.Code)
}

// formatDetail returns the kind-specific arguments of an event.
func formatDetail(e perf.Event) string {
	switch {
	case e.Open != nil:
		return fmt.Sprintf("flags=%#x mode=%#o", e.Open.Options, e.Open.Mode)
	case e.Pread != nil:
		return fmt.Sprintf("%s @%d", humanize.IBytes(e.Pread.Size), e.Pread.Offset)
	}
	return ""
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// truncateLeft keeps the end of s, which is the informative part of a path.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}
