package models

// KernelLogEntry is one parsed dmesg line.
type KernelLogEntry struct {
	// Timestamp is seconds since boot; negative when the line carried none.
	Timestamp float64 `json:"timestamp"`

	// Level is the syslog priority (0..7); -1 when absent.
	Level int `json:"level"`

	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// KernelEventType identifies one of the kernel event detection rules.
type KernelEventType string

const (
	KernelPanic              KernelEventType = "kernel_panic"
	KernelOOMKill            KernelEventType = "oom_kill"
	KernelLowMemoryKiller    KernelEventType = "lowmemory_killer"
	KernelKswapdActive       KernelEventType = "kswapd_active"
	KernelDriverError        KernelEventType = "driver_error"
	KernelGPUError           KernelEventType = "gpu_error"
	KernelThermalShutdown    KernelEventType = "thermal_shutdown"
	KernelThermalThrottling  KernelEventType = "thermal_throttling"
	KernelWatchdogReset      KernelEventType = "watchdog_reset"
	KernelStorageIOError     KernelEventType = "storage_io_error"
	KernelSuspendResumeError KernelEventType = "suspend_resume_error"
	KernelSELinuxDenial      KernelEventType = "selinux_denial"
)

// KernelEvent is one detected event in the kernel log.
type KernelEvent struct {
	Type      KernelEventType `json:"type"`
	Severity  Severity        `json:"severity"`
	Timestamp string          `json:"timestamp"`

	Entries []KernelLogEntry `json:"entries"`
	Summary string           `json:"summary"`

	// Details holds rule-specific extracted fields, e.g. pid/name for an
	// OOM kill, scontext/tcontext/tclass/permission for an SELinux denial.
	Details map[string]string `json:"details,omitempty"`
}

// KernelResult is the full output of the kernel log parser.
type KernelResult struct {
	Events      []KernelEvent `json:"events"`
	EntryCount  int           `json:"entry_count"`
	ParseErrors int           `json:"parse_errors"`

	// LastTimestamp is the boot-relative timestamp of the final parsed
	// entry, used downstream as the uptime estimate.
	LastTimestamp float64 `json:"last_timestamp"`

	// HasBootMarker is set when the log shows init acting on
	// sys.boot_completed, the weakest boot-completed signal.
	HasBootMarker bool `json:"has_boot_marker,omitempty"`
}
