// Package logcat parses concatenated logcat text and detects anomalies.
//
// Parsing is a total function: malformed lines never fail the parse, they
// either fold into the previous entry (continuation lines) or increment a
// parse-error counter.
package logcat

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nordlys/bugsight/pkg/models"
)

// Two line shapes are supported, differing by the UID column newer
// Android versions insert between the timestamp and the pid:
//
//	03-15 10:23:45.123  1234  5678 E ActivityManager: ANR in com.example.app
//	03-15 10:23:45.123  1000  1234  5678 E ActivityManager: ANR in com.example.app
var (
	lineRe = regexp.MustCompile(`^(\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\s+(\d+)\s+(\d+)\s+([VDIWEFS])\s+(.*?)\s*: ?(.*)$`)
	uidRe  = regexp.MustCompile(`^(\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\s+(\S+)\s+(\d+)\s+(\d+)\s+([VDIWEFS])\s+(.*?)\s*: ?(.*)$`)
)

// Parse tokenizes logcat text into logical entries. A line starting with a
// tab or two spaces that matches neither format is treated as a
// continuation of the previous entry. The second return value counts lines
// that could not be attributed to any entry.
func Parse(text string) ([]models.LogEntry, int) {
	var entries []models.LogEntry
	parseErrors := 0

	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if e, ok := parseLine(line, i+1); ok {
			entries = append(entries, e)
			continue
		}

		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "  ") {
			if len(entries) > 0 {
				last := &entries[len(entries)-1]
				last.Message += "\n" + strings.TrimRight(line, "\r")
				last.Raw += "\n" + line
				continue
			}
		}

		parseErrors++
	}

	return entries, parseErrors
}

func parseLine(line string, lineNumber int) (models.LogEntry, bool) {
	if m := lineRe.FindStringSubmatch(line); m != nil {
		pid, _ := strconv.Atoi(m[2])
		tid, _ := strconv.Atoi(m[3])
		return models.LogEntry{
			Timestamp:  m[1],
			Pid:        pid,
			Tid:        tid,
			Level:      m[4],
			Tag:        m[5],
			Message:    m[6],
			Raw:        line,
			LineNumber: lineNumber,
		}, true
	}

	if m := uidRe.FindStringSubmatch(line); m != nil {
		pid, _ := strconv.Atoi(m[3])
		tid, _ := strconv.Atoi(m[4])
		return models.LogEntry{
			Timestamp:  m[1],
			Pid:        pid,
			Tid:        tid,
			Level:      m[5],
			Tag:        m[6],
			Message:    m[7],
			Raw:        line,
			LineNumber: lineNumber,
		}, true
	}

	return models.LogEntry{}, false
}

// parseTimestamp interprets a logcat "MM-DD HH:MM:SS.mmm" timestamp.
// Logcat omits the year; a fixed one is fine for computing deltas.
func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse("01-02 15:04:05.000", ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
