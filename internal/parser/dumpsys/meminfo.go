// Package dumpsys extracts summaries from dumpsys meminfo/cpuinfo output
// and a version-aware HAL registry from lshal output.
package dumpsys

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// maxTopProcesses bounds the per-process lists kept from dumpsys output.
const maxTopProcesses = 10

var (
	totalRAMRe = regexp.MustCompile(`Total RAM:\s*([\d,]+)\s*K`)
	freeRAMRe  = regexp.MustCompile(`Free RAM:\s*([\d,]+)\s*K`)
	usedRAMRe  = regexp.MustCompile(`Used RAM:\s*([\d,]+)\s*K`)

	// "  345,678K: com.android.systemui (pid 2345)"
	pssRowRe = regexp.MustCompile(`^\s*([\d,]+)K:\s+(.+?)\s+\(pid\s+(\d+)`)
)

// ParseMemInfo extracts RAM totals and the top PSS consumers from
// "dumpsys meminfo" text. Returns nil only for input with no RAM summary
// at all, so partial dumps still yield whatever was recoverable.
func ParseMemInfo(text string) *models.MemInfo {
	mi := &models.MemInfo{}
	found := false

	if m := totalRAMRe.FindStringSubmatch(text); m != nil {
		mi.TotalRAMKB = parseGroupedKB(m[1])
		found = true
	}
	if m := freeRAMRe.FindStringSubmatch(text); m != nil {
		mi.FreeRAMKB = parseGroupedKB(m[1])
		found = true
	}
	if m := usedRAMRe.FindStringSubmatch(text); m != nil {
		mi.UsedRAMKB = parseGroupedKB(m[1])
		found = true
	}

	// The "Total PSS by process" block is already rank-ordered by the
	// source dump; keep its order and truncate.
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Total PSS by process") {
			inBlock = true
			continue
		}
		if !inBlock {
			continue
		}
		m := pssRowRe.FindStringSubmatch(line)
		if m == nil {
			// Block ends at the first non-matching line.
			break
		}
		pid, _ := strconv.Atoi(m[3])
		mi.TopProcesses = append(mi.TopProcesses, models.ProcessPSS{
			Name:  m[2],
			Pid:   pid,
			PssKB: parseGroupedKB(m[1]),
		})
		if len(mi.TopProcesses) >= maxTopProcesses {
			break
		}
	}

	if !found && len(mi.TopProcesses) == 0 {
		return nil
	}
	return mi
}

// parseGroupedKB parses a comma-grouped KB value like "7,947,164".
func parseGroupedKB(s string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
