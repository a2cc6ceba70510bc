package dumpsys

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/nordlys/bugsight/pkg/models"
)

var (
	// " 33% TOTAL: 20% user + 10% kernel + 3% iowait"
	cpuTotalRe = regexp.MustCompile(`([\d.]+)%\s+TOTAL:\s*([\d.]+)%\s+user\s*\+\s*([\d.]+)%\s+kernel(?:\s*\+\s*([\d.]+)%\s+iowait)?`)

	// "  44% 1234/system_server: 30% user + 14% kernel"
	cpuRowRe = regexp.MustCompile(`(?m)^\s*([\d.]+)%\s+(\d+)/([^:\s]+):`)
)

// ParseCpuInfo extracts the TOTAL line and per-process rows from
// "dumpsys cpuinfo" text. Per-process rows are explicitly re-sorted by
// CPU% descending before truncation; unlike meminfo the source order is
// not trusted here.
func ParseCpuInfo(text string) *models.CPUInfo {
	ci := &models.CPUInfo{}
	found := false

	if m := cpuTotalRe.FindStringSubmatch(text); m != nil {
		ci.TotalPercent = parsePercent(m[1])
		ci.UserPercent = parsePercent(m[2])
		ci.KernelPercent = parsePercent(m[3])
		if m[4] != "" {
			ci.IOWaitPercent = parsePercent(m[4])
		}
		found = true
	}

	for _, m := range cpuRowRe.FindAllStringSubmatch(text, -1) {
		pid, _ := strconv.Atoi(m[2])
		ci.TopProcesses = append(ci.TopProcesses, models.ProcessCPU{
			Percent: parsePercent(m[1]),
			Pid:     pid,
			Name:    m[3],
		})
	}

	sort.SliceStable(ci.TopProcesses, func(i, j int) bool {
		return ci.TopProcesses[i].Percent > ci.TopProcesses[j].Percent
	})
	if len(ci.TopProcesses) > maxTopProcesses {
		ci.TopProcesses = ci.TopProcesses[:maxTopProcesses]
	}

	if !found && len(ci.TopProcesses) == 0 {
		return nil
	}
	return ci
}

func parsePercent(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
