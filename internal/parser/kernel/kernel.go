// Package kernel parses dmesg-style kernel logs and detects notable events.
package kernel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// Lines look like "<6>[  123.456789] message"; the priority prefix and a
// per-CPU/thread tag ("[ T1234]") are both optional depending on how the
// dump was captured.
var lineRe = regexp.MustCompile(`^(?:<(\d+)>)?\[\s*(\d+\.\d+)\](?:\[\s*[CT]\d+\s*\])?\s*(.*)$`)

// Parse tokenizes kernel log text. Lines without the bracketed timestamp
// are kept with a negative timestamp so their content still feeds event
// detection; they are not counted as parse errors unless entirely
// unrecognizable (blank lines are skipped).
func Parse(text string) *models.KernelResult {
	res := &models.KernelResult{LastTimestamp: -1}
	var entries []models.KernelLogEntry

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := lineRe.FindStringSubmatch(trimmed); m != nil {
			level := -1
			if m[1] != "" {
				if n, err := strconv.Atoi(m[1]); err == nil {
					level = n
				}
			}
			ts, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				ts = -1
				res.ParseErrors++
			}
			entries = append(entries, models.KernelLogEntry{
				Timestamp: ts,
				Level:     level,
				Message:   m[3],
				Raw:       line,
			})
			if ts > res.LastTimestamp {
				res.LastTimestamp = ts
			}
			continue
		}

		entries = append(entries, models.KernelLogEntry{
			Timestamp: -1,
			Level:     -1,
			Message:   trimmed,
			Raw:       line,
		})
	}

	res.EntryCount = len(entries)
	res.Events = detectEvents(entries)
	for i := range entries {
		if strings.Contains(entries[i].Message, "sys.boot_completed=1") {
			res.HasBootMarker = true
			break
		}
	}
	return res
}

// FormatTimestamp renders a boot-relative timestamp for timeline keys.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		return "unknown"
	}
	return fmt.Sprintf("boot+%.3fs", seconds)
}

// eventRule pairs a predicate with the event it produces. Rules run in
// order; the first match classifies the entry.
type eventRule struct {
	typ      models.KernelEventType
	severity models.Severity
	match    func(msg string) bool
	details  func(msg string) map[string]string
	summary  func(msg string) string
}

var (
	oomKillRe    = regexp.MustCompile(`Kill(?:ed)? process (\d+) \(([^)]+)\)`)
	tempRe       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:deg)?C\b|temperature[:= ]+(\d+)`)
	driverErrRe  = regexp.MustCompile(`(?i)\b(driver|probe|firmware)\b.*\b(fail|failed|error)`)
	gpuErrRe     = regexp.MustCompile(`(?i)\b(gpu|kgsl|mali|adreno)\b.*\b(fault|hang|error|reset|timeout)`)
	watchdogRe   = regexp.MustCompile(`(?i)watchdog.*\b(reset|bark|bite|expired)`)
	storageErrRe = regexp.MustCompile(`(?i)(I/O error|ext4[-_ ]?(?:fs)? error|f2fs.*error|blk_update_request|mmc\d+:.*error|ufs.*error)`)
	suspendErrRe = regexp.MustCompile(`(?i)\b(suspend|resume|PM:)\b.*\b(error|fail|failed|abort|aborted)`)
	avcRe        = regexp.MustCompile(`avc:\s+denied\s+\{([^}]+)\}`)
	avcFieldRe   = regexp.MustCompile(`(scontext|tcontext|tclass|comm|pid)=("?[^\s"]+"?)`)
)

var eventRules = []eventRule{
	{
		typ:      models.KernelPanic,
		severity: models.SeverityCritical,
		match:    func(msg string) bool { return strings.Contains(msg, "Kernel panic") },
		details: func(msg string) map[string]string {
			return map[string]string{"reason": strings.TrimSpace(strings.TrimPrefix(msg, "Kernel panic -"))}
		},
		summary: func(msg string) string { return "Kernel panic" },
	},
	{
		typ:      models.KernelOOMKill,
		severity: models.SeverityCritical,
		match: func(msg string) bool {
			return strings.Contains(msg, "Out of memory") || oomKillRe.MatchString(msg)
		},
		details: func(msg string) map[string]string {
			d := map[string]string{}
			if m := oomKillRe.FindStringSubmatch(msg); m != nil {
				d["pid"] = m[1]
				d["name"] = m[2]
			}
			return d
		},
		summary: func(msg string) string {
			if m := oomKillRe.FindStringSubmatch(msg); m != nil {
				return "OOM killer terminated " + m[2] + " (pid " + m[1] + ")"
			}
			return "Kernel out of memory"
		},
	},
	{
		typ:      models.KernelLowMemoryKiller,
		severity: models.SeverityWarning,
		match: func(msg string) bool {
			return strings.Contains(msg, "lowmemorykiller") || strings.Contains(msg, "lmkd")
		},
		details: func(msg string) map[string]string { return nil },
		summary: func(msg string) string { return "Low memory killer active" },
	},
	{
		typ:      models.KernelKswapdActive,
		severity: models.SeverityInfo,
		match:    func(msg string) bool { return strings.Contains(msg, "kswapd") },
		details:  func(msg string) map[string]string { return nil },
		summary:  func(msg string) string { return "kswapd reclaim activity" },
	},
	{
		typ:      models.KernelDriverError,
		severity: models.SeverityWarning,
		match:    func(msg string) bool { return driverErrRe.MatchString(msg) },
		details:  func(msg string) map[string]string { return nil },
		summary:  func(msg string) string { return "Driver error: " + truncate(msg) },
	},
	{
		typ:      models.KernelGPUError,
		severity: models.SeverityWarning,
		match:    func(msg string) bool { return gpuErrRe.MatchString(msg) },
		details:  func(msg string) map[string]string { return nil },
		summary:  func(msg string) string { return "GPU error: " + truncate(msg) },
	},
	{
		typ:      models.KernelThermalShutdown,
		severity: models.SeverityCritical,
		match: func(msg string) bool {
			lower := strings.ToLower(msg)
			return strings.Contains(lower, "thermal") &&
				(strings.Contains(lower, "shutdown") || strings.Contains(lower, "critical temperature"))
		},
		details: extractTemperature,
		summary: func(msg string) string { return "Thermal shutdown" },
	},
	{
		typ:      models.KernelThermalThrottling,
		severity: models.SeverityWarning,
		match: func(msg string) bool {
			lower := strings.ToLower(msg)
			return strings.Contains(lower, "thermal") && strings.Contains(lower, "throttl")
		},
		details: extractTemperature,
		summary: func(msg string) string { return "Thermal throttling" },
	},
	{
		typ:      models.KernelWatchdogReset,
		severity: models.SeverityCritical,
		match:    func(msg string) bool { return watchdogRe.MatchString(msg) },
		details:  func(msg string) map[string]string { return nil },
		summary:  func(msg string) string { return "Hardware watchdog reset: " + truncate(msg) },
	},
	{
		typ:      models.KernelStorageIOError,
		severity: models.SeverityWarning,
		match:    func(msg string) bool { return storageErrRe.MatchString(msg) },
		details:  func(msg string) map[string]string { return nil },
		summary:  func(msg string) string { return "Storage I/O error: " + truncate(msg) },
	},
	{
		typ:      models.KernelSuspendResumeError,
		severity: models.SeverityWarning,
		match:    func(msg string) bool { return suspendErrRe.MatchString(msg) },
		details:  func(msg string) map[string]string { return nil },
		summary:  func(msg string) string { return "Suspend/resume error: " + truncate(msg) },
	},
	{
		typ:      models.KernelSELinuxDenial,
		severity: models.SeverityWarning,
		match:    func(msg string) bool { return avcRe.MatchString(msg) },
		details:  extractAVCDetails,
		summary: func(msg string) string {
			d := extractAVCDetails(msg)
			return "SELinux denial: " + d["scontext"] + " -> " + d["tcontext"] + " (" + d["tclass"] + ")"
		},
	},
}

func detectEvents(entries []models.KernelLogEntry) []models.KernelEvent {
	var events []models.KernelEvent
	for i := range entries {
		e := &entries[i]
		for _, rule := range eventRules {
			if !rule.match(e.Message) {
				continue
			}
			events = append(events, models.KernelEvent{
				Type:      rule.typ,
				Severity:  rule.severity,
				Timestamp: FormatTimestamp(e.Timestamp),
				Entries:   []models.KernelLogEntry{*e},
				Summary:   rule.summary(e.Message),
				Details:   rule.details(e.Message),
			})
			break
		}
	}
	return events
}

func extractTemperature(msg string) map[string]string {
	if m := tempRe.FindStringSubmatch(msg); m != nil {
		t := m[1]
		if t == "" {
			t = m[2]
		}
		return map[string]string{"temperature": t}
	}
	return nil
}

func extractAVCDetails(msg string) map[string]string {
	d := map[string]string{}
	if m := avcRe.FindStringSubmatch(msg); m != nil {
		d["permission"] = strings.TrimSpace(m[1])
	}
	for _, m := range avcFieldRe.FindAllStringSubmatch(msg, -1) {
		d[m[1]] = strings.Trim(m[2], `"`)
	}
	return d
}

func truncate(s string) string {
	const maxLen = 120
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
