package logcat

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nordlys/bugsight/pkg/models"
)

// contextWindow is how many entries around a match are kept on each side.
const contextWindow = 5

// mergeWindow is the maximum gap between two anomalies of the same type
// and pid for them to be merged into one.
const mergeWindow = time.Second

// anomalyRule pairs a predicate with the anomaly it produces. Rules are
// evaluated in order; the first match classifies the entry.
type anomalyRule struct {
	typ      models.AnomalyType
	severity models.Severity
	match    func(e *models.LogEntry) bool
	summary  func(e *models.LogEntry) string
}

var (
	anrProcessRe     = regexp.MustCompile(`ANR in ([\w.:/$]+)`)
	crashProcessRe   = regexp.MustCompile(`Process: ([\w.:/$]+)`)
	inputTimeoutRe   = regexp.MustCompile(`Input dispatching timed out \(?([^),]+)`)
	halDeathRe       = regexp.MustCompile(`(?i)(vendor\.[\w.]+@[\d.]+[:\w/.]*|hwservicemanager|\bhal\b[\w.@/]*).*?\b(died|death)`)
	binderTimeoutRe  = regexp.MustCompile(`(?i)binder.*(timed? ?out|timeout)`)
	slowOperationRe  = regexp.MustCompile(`Slow (Looper|dispatch|delivery|operation)|Skipped \d+ frames`)
	fatalSignalRe    = regexp.MustCompile(`Fatal signal \d+`)
	systemServerRe   = regexp.MustCompile(`(?i)system_server.*(crash|died)|crash in the system server|\*\*\* FATAL EXCEPTION IN SYSTEM PROCESS`)
	oomRe            = regexp.MustCompile(`OutOfMemoryError|Out of memory|lowmemorykiller: Killing`)
	watchdogRe       = regexp.MustCompile(`Watchdog.*(Blocked in|killing|WATCHDOG)|WATCHDOG KILLING SYSTEM PROCESS`)
)

// anomalyRules is the ordered detection chain. A line matching several
// rules is classified by this priority, not by any notion of best match.
var anomalyRules = []anomalyRule{
	{
		typ:      models.AnomalyANR,
		severity: models.SeverityCritical,
		match: func(e *models.LogEntry) bool {
			return e.Tag == "ActivityManager" && strings.Contains(e.Message, "ANR in ")
		},
		summary: func(e *models.LogEntry) string {
			if m := anrProcessRe.FindStringSubmatch(e.Message); m != nil {
				return "ANR in " + m[1]
			}
			return "ANR detected"
		},
	},
	{
		typ:      models.AnomalyFatalException,
		severity: models.SeverityCritical,
		match: func(e *models.LogEntry) bool {
			return strings.Contains(e.Message, "FATAL EXCEPTION")
		},
		summary: func(e *models.LogEntry) string { return "Fatal Java exception: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalyNativeCrash,
		severity: models.SeverityCritical,
		match: func(e *models.LogEntry) bool {
			if fatalSignalRe.MatchString(e.Message) {
				return true
			}
			return e.Tag == "DEBUG" && strings.Contains(e.Message, "***")
		},
		summary: func(e *models.LogEntry) string { return "Native crash: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalySystemServerCrash,
		severity: models.SeverityCritical,
		match:    func(e *models.LogEntry) bool { return systemServerRe.MatchString(e.Message) },
		summary:  func(e *models.LogEntry) string { return "System server crash" },
	},
	{
		typ:      models.AnomalyOOM,
		severity: models.SeverityCritical,
		match:    func(e *models.LogEntry) bool { return oomRe.MatchString(e.Message) },
		summary:  func(e *models.LogEntry) string { return "Out of memory: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalyWatchdog,
		severity: models.SeverityCritical,
		match: func(e *models.LogEntry) bool {
			return e.Tag == "Watchdog" || watchdogRe.MatchString(e.Message)
		},
		summary: func(e *models.LogEntry) string { return "Watchdog: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalyBinderTimeout,
		severity: models.SeverityWarning,
		match:    func(e *models.LogEntry) bool { return binderTimeoutRe.MatchString(e.Message) },
		summary:  func(e *models.LogEntry) string { return "Binder timeout: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalySlowOperation,
		severity: models.SeverityWarning,
		match:    func(e *models.LogEntry) bool { return slowOperationRe.MatchString(e.Message) },
		summary:  func(e *models.LogEntry) string { return "Slow operation: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalyStrictMode,
		severity: models.SeverityWarning,
		match:    func(e *models.LogEntry) bool { return e.Tag == "StrictMode" },
		summary:  func(e *models.LogEntry) string { return "StrictMode violation: " + firstLine(e.Message) },
	},
	{
		typ:      models.AnomalyInputDispatchingTimeout,
		severity: models.SeverityCritical,
		match: func(e *models.LogEntry) bool {
			return strings.Contains(e.Message, "Input dispatching timed out")
		},
		summary: func(e *models.LogEntry) string {
			if m := inputTimeoutRe.FindStringSubmatch(e.Message); m != nil {
				return "Input dispatching timed out: " + strings.TrimSpace(m[1])
			}
			return "Input dispatching timed out"
		},
	},
	{
		typ:      models.AnomalyHALServiceDeath,
		severity: models.SeverityWarning,
		match:    func(e *models.LogEntry) bool { return halDeathRe.MatchString(e.Message) },
		summary:  func(e *models.LogEntry) string { return "HAL service death: " + firstLine(e.Message) },
	},
}

// DetectAnomalies runs the ordered rule chain over parsed entries and
// returns the detected anomalies with their context windows. Consecutive
// anomalies of the same type and pid within one second are merged so a
// multi-line crash dump yields a single anomaly.
func DetectAnomalies(entries []models.LogEntry) []models.LogcatAnomaly {
	var anomalies []models.LogcatAnomaly

	for i := range entries {
		e := &entries[i]
		for _, rule := range anomalyRules {
			if !rule.match(e) {
				continue
			}

			a := models.LogcatAnomaly{
				Type:        rule.typ,
				Severity:    rule.severity,
				Timestamp:   e.Timestamp,
				Entries:     contextFor(entries, i),
				Pid:         e.Pid,
				ProcessName: processNameFor(rule.typ, e),
				Summary:     rule.summary(e),
			}

			if n := len(anomalies); n > 0 && canMerge(&anomalies[n-1], &a) {
				merged := &anomalies[n-1]
				merged.Entries = append(merged.Entries, a.Entries...)
				if merged.ProcessName == "" {
					merged.ProcessName = a.ProcessName
				}
			} else {
				anomalies = append(anomalies, a)
			}
			break
		}
	}

	return anomalies
}

// contextFor collects up to contextWindow entries on each side of the
// match, filtered to the matching entry's pid. The target entry is always
// included.
func contextFor(entries []models.LogEntry, idx int) []models.LogEntry {
	lo := idx - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := idx + contextWindow
	if hi >= len(entries) {
		hi = len(entries) - 1
	}

	pid := entries[idx].Pid
	ctx := make([]models.LogEntry, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		if i == idx || pid == 0 || entries[i].Pid == pid {
			ctx = append(ctx, entries[i])
		}
	}
	return ctx
}

func canMerge(prev *models.LogcatAnomaly, next *models.LogcatAnomaly) bool {
	if prev.Type != next.Type || prev.Pid != next.Pid {
		return false
	}
	pt, ok1 := parseTimestamp(prev.Timestamp)
	nt, ok2 := parseTimestamp(next.Timestamp)
	if !ok1 || !ok2 {
		return false
	}
	d := nt.Sub(pt)
	if d < 0 {
		d = -d
	}
	return d <= mergeWindow
}

func processNameFor(typ models.AnomalyType, e *models.LogEntry) string {
	switch typ {
	case models.AnomalyANR:
		if m := anrProcessRe.FindStringSubmatch(e.Message); m != nil {
			return m[1]
		}
	case models.AnomalyFatalException, models.AnomalyNativeCrash:
		if m := crashProcessRe.FindStringSubmatch(e.Message); m != nil {
			return m[1]
		}
	case models.AnomalySystemServerCrash:
		return "system_server"
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 160
	if len(s) > maxLen {
		return fmt.Sprintf("%s...", s[:maxLen])
	}
	return s
}
