package models

import "time"

// DeviceMetadata is parsed from the bugreport header and getprop section.
type DeviceMetadata struct {
	AndroidVersion   string `json:"android_version,omitempty"`
	SdkLevel         int    `json:"sdk_level,omitempty"`
	BuildFingerprint string `json:"build_fingerprint,omitempty"`
	Model            string `json:"model,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
	KernelVersion    string `json:"kernel_version,omitempty"`
}

// BootStatus describes how (and whether) the device finished booting.
type BootStatus struct {
	BootCompleted bool `json:"boot_completed"`

	// BootCompletedSource records which signal resolved BootCompleted:
	// "sysprops", "logcat", "kernel" or "unknown".
	BootCompletedSource string `json:"boot_completed_source"`

	BootReason       string `json:"boot_reason,omitempty"`
	BootReasonSource string `json:"boot_reason_source,omitempty"`

	SystemServerRestarts int     `json:"system_server_restarts"`
	UptimeSeconds        float64 `json:"uptime_seconds,omitempty"`
}

// AnalysisResult is the complete output of one bugreport analysis run.
// It serializes field-for-field to JSON for the transport and UI layers.
type AnalysisResult struct {
	Metadata DeviceMetadata `json:"metadata"`

	Insights    []*InsightCard    `json:"insights"`
	Timeline    []TimelineEvent   `json:"timeline"`
	HealthScore SystemHealthScore `json:"health_score"`

	ANRAnalyses  []*ANRTraceAnalysis `json:"anr_analyses"`
	LogcatResult *LogcatResult       `json:"logcat_result,omitempty"`
	KernelResult *KernelResult       `json:"kernel_result,omitempty"`

	MemInfo    *MemInfo    `json:"mem_info,omitempty"`
	CPUInfo    *CPUInfo    `json:"cpu_info,omitempty"`
	BootStatus *BootStatus `json:"boot_status,omitempty"`
	HALStatus  *HALStatus  `json:"hal_status,omitempty"`

	TombstoneAnalyses []*TombstoneAnalysis `json:"tombstone_analyses,omitempty"`
	LogTagStats       []TagStat            `json:"log_tag_stats,omitempty"`

	// DeepAnalysisOverview is attached by the LLM enrichment layer.
	DeepAnalysisOverview string `json:"deep_analysis_overview,omitempty"`
}

// RunSummary is the storage/listing view of one analysis run.
type RunSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`

	OverallScore  int `json:"overall_score"`
	CriticalCount int `json:"critical_count"`
	WarningCount  int `json:"warning_count"`
	InsightCount  int `json:"insight_count"`
}
