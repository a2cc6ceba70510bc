package analyzer

import "github.com/nordlys/bugsight/pkg/models"

// insightTemplate carries the fixed per-type card text and debug command
// suggestions. Every detectable type has a concrete entry; a missing
// lookup falls back to genericTemplate.
type insightTemplate struct {
	title         string
	description   string
	debugCommands []string
}

var genericTemplate = insightTemplate{
	title:         "Anomalous event",
	description:   "An anomalous event was detected in the device logs.",
	debugCommands: []string{"adb bugreport"},
}

var anomalyTemplates = map[models.AnomalyType]insightTemplate{
	models.AnomalyANR: {
		title:       "Application Not Responding",
		description: "The main thread of a process was blocked long enough for the system to declare it unresponsive.",
		debugCommands: []string{
			"adb shell dumpsys activity processes",
			"adb pull /data/anr/",
			"adb shell am dumpheap <pid>",
		},
	},
	models.AnomalyFatalException: {
		title:       "Fatal Java exception",
		description: "An uncaught Java exception terminated a process.",
		debugCommands: []string{
			"adb logcat -b crash -d",
			"adb shell dumpsys dropbox --print data_app_crash",
		},
	},
	models.AnomalyNativeCrash: {
		title:       "Native crash",
		description: "A native (C/C++) component crashed with a fatal signal.",
		debugCommands: []string{
			"adb pull /data/tombstones/",
			"adb shell debuggerd -b <pid>",
		},
	},
	models.AnomalySystemServerCrash: {
		title:       "System server crash",
		description: "The system_server process crashed; the framework restarted. All apps were killed.",
		debugCommands: []string{
			"adb shell dumpsys dropbox --print system_server_crash",
			"adb logcat -b crash -d",
		},
	},
	models.AnomalyOOM: {
		title:       "Out of memory",
		description: "A process was killed or failed due to memory exhaustion.",
		debugCommands: []string{
			"adb shell dumpsys meminfo",
			"adb shell cat /proc/meminfo",
			"adb shell dumpsys activity oom",
		},
	},
	models.AnomalyWatchdog: {
		title:       "Watchdog triggered",
		description: "The framework watchdog found a core system thread blocked beyond its deadline.",
		debugCommands: []string{
			"adb shell dumpsys dropbox --print system_server_watchdog",
			"adb pull /data/anr/",
		},
	},
	models.AnomalyBinderTimeout: {
		title:       "Binder transaction timeout",
		description: "An IPC transaction did not complete in time; the remote process may be overloaded or dead.",
		debugCommands: []string{
			"adb shell cat /sys/kernel/debug/binder/transactions",
			"adb shell dumpsys activity processes",
		},
	},
	models.AnomalySlowOperation: {
		title:       "Slow main-thread operation",
		description: "A looper message or frame took unusually long on the main thread.",
		debugCommands: []string{
			"adb shell dumpsys gfxinfo <package>",
			"adb shell am profile start <process> /data/local/tmp/profile.trace",
		},
	},
	models.AnomalyStrictMode: {
		title:       "StrictMode violation",
		description: "A policy violation (disk or network access on the main thread, leaked closeable) was reported.",
		debugCommands: []string{
			"adb shell dumpsys dropbox --print data_app_strictmode",
		},
	},
	models.AnomalyInputDispatchingTimeout: {
		title:       "Input dispatching timeout",
		description: "A window stopped consuming input events; the user perceived a frozen UI.",
		debugCommands: []string{
			"adb shell dumpsys input",
			"adb pull /data/anr/",
		},
	},
	models.AnomalyHALServiceDeath: {
		title:       "HAL service death",
		description: "A hardware service died; dependent framework features degrade until it restarts.",
		debugCommands: []string{
			"adb shell lshal",
			"adb shell dumpsys hwservicemanager",
			"adb logcat -s hwservicemanager -d",
		},
	},
}

var kernelTemplates = map[models.KernelEventType]insightTemplate{
	models.KernelPanic: {
		title:       "Kernel panic",
		description: "The kernel hit an unrecoverable fault and rebooted the device.",
		debugCommands: []string{
			"adb shell cat /sys/fs/pstore/console-ramoops-0",
			"adb shell cat /proc/last_kmsg",
		},
	},
	models.KernelOOMKill: {
		title:       "Kernel OOM kill",
		description: "The kernel out-of-memory killer terminated a process to reclaim memory.",
		debugCommands: []string{
			"adb shell dumpsys meminfo",
			"adb shell cat /proc/meminfo",
			"adb shell dumpsys activity oom",
		},
	},
	models.KernelLowMemoryKiller: {
		title:       "Low memory killer active",
		description: "lmkd killed background processes under memory pressure.",
		debugCommands: []string{
			"adb shell dumpsys meminfo",
			"adb logcat -s lowmemorykiller -d",
		},
	},
	models.KernelKswapdActive: {
		title:       "Memory reclaim activity",
		description: "kswapd was scanning for reclaimable pages; sustained activity indicates memory pressure.",
		debugCommands: []string{
			"adb shell cat /proc/vmstat",
			"adb shell cat /proc/meminfo",
		},
	},
	models.KernelDriverError: {
		title:       "Driver error",
		description: "A kernel driver reported a probe or runtime failure.",
		debugCommands: []string{
			"adb shell dmesg | grep -i error",
			"adb shell cat /proc/devices",
		},
	},
	models.KernelGPUError: {
		title:       "GPU error",
		description: "The GPU driver reported a fault, hang or reset.",
		debugCommands: []string{
			"adb shell dumpsys gpu",
			"adb shell cat /sys/kernel/debug/kgsl/proc",
		},
	},
	models.KernelThermalShutdown: {
		title:       "Thermal shutdown",
		description: "The device shut down to protect hardware from overheating.",
		debugCommands: []string{
			"adb shell dumpsys thermalservice",
			"adb shell cat /sys/class/thermal/thermal_zone*/temp",
		},
	},
	models.KernelThermalThrottling: {
		title:       "Thermal throttling",
		description: "CPU/GPU clocks were reduced due to temperature; performance degrades.",
		debugCommands: []string{
			"adb shell dumpsys thermalservice",
			"adb shell cat /sys/class/thermal/thermal_zone*/temp",
		},
	},
	models.KernelWatchdogReset: {
		title:       "Hardware watchdog reset",
		description: "The hardware watchdog fired, usually after the kernel stopped scheduling.",
		debugCommands: []string{
			"adb shell cat /sys/fs/pstore/console-ramoops-0",
			"adb shell getprop ro.boot.bootreason",
		},
	},
	models.KernelStorageIOError: {
		title:       "Storage I/O error",
		description: "Block-layer or filesystem errors were reported; flash storage may be degrading.",
		debugCommands: []string{
			"adb shell dmesg | grep -iE 'mmc|ufs|I/O error'",
			"adb shell cat /proc/fs/ext4/*/es_shrinker_info",
		},
	},
	models.KernelSuspendResumeError: {
		title:       "Suspend/resume error",
		description: "A device failed to suspend or resume cleanly; expect battery drain or wakeup issues.",
		debugCommands: []string{
			"adb shell dumpsys suspend_control_internal",
			"adb shell cat /sys/power/wakeup_count",
		},
	},
	models.KernelSELinuxDenial: {
		title:       "SELinux denial",
		description: "An access was denied by SELinux policy. Repeated denials can break vendor features silently.",
		debugCommands: []string{
			"adb shell dmesg | grep avc",
			"adb shell getenforce",
		},
	},
}

func anomalyTemplate(t models.AnomalyType) insightTemplate {
	if tpl, ok := anomalyTemplates[t]; ok {
		return tpl
	}
	return genericTemplate
}

func kernelTemplate(t models.KernelEventType) insightTemplate {
	if tpl, ok := kernelTemplates[t]; ok {
		return tpl
	}
	return genericTemplate
}
