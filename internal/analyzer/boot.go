package analyzer

import (
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// Boot markers looked for in logcat when system properties are missing.
var logcatBootMarkers = []string{
	"Finished processing BOOT_COMPLETED",
	"sys.boot_completed=1",
	"Boot completed",
	"bootanim exit",
}

// systemServerStartMarker is logged once per system_server start; seeing
// it more than once means the framework restarted after a crash.
const systemServerStartMarker = "Entered the Android system server!"

// resolveBootStatus layers boot signals by trust: system properties win,
// then logcat markers, then the kernel log.
func resolveBootStatus(in Input) *models.BootStatus {
	if in.SysProps == nil && len(in.LogcatEntries) == 0 && in.KernelResult == nil {
		return nil
	}

	bs := &models.BootStatus{BootCompletedSource: "unknown"}

	if v, ok := in.SysProps["sys.boot_completed"]; ok {
		bs.BootCompleted = v == "1"
		bs.BootCompletedSource = "sysprops"
	} else if logcatHasBootMarker(in.LogcatEntries) {
		bs.BootCompleted = true
		bs.BootCompletedSource = "logcat"
	} else if in.KernelResult != nil && in.KernelResult.HasBootMarker {
		bs.BootCompleted = true
		bs.BootCompletedSource = "kernel"
	}

	for _, key := range []string{"sys.boot.reason", "ro.boot.bootreason"} {
		if v, ok := in.SysProps[key]; ok && v != "" {
			bs.BootReason = v
			bs.BootReasonSource = "sysprops"
			break
		}
	}
	if bs.BootReason == "" && in.KernelResult != nil {
		for i := range in.KernelResult.Events {
			if in.KernelResult.Events[i].Type == models.KernelWatchdogReset {
				bs.BootReason = "watchdog"
				bs.BootReasonSource = "kernel"
				break
			}
		}
	}

	spawns := 0
	for i := range in.LogcatEntries {
		if strings.Contains(in.LogcatEntries[i].Message, systemServerStartMarker) {
			spawns++
		}
	}
	if spawns > 1 {
		bs.SystemServerRestarts = spawns - 1
	}

	if in.KernelResult != nil && in.KernelResult.LastTimestamp > 0 {
		bs.UptimeSeconds = in.KernelResult.LastTimestamp
	}

	return bs
}

func logcatHasBootMarker(entries []models.LogEntry) bool {
	for i := range entries {
		for _, marker := range logcatBootMarkers {
			if strings.Contains(entries[i].Message, marker) {
				return true
			}
		}
	}
	return false
}
