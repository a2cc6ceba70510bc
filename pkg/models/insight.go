package models

// InsightCard is one actionable finding presented to the user. Ids are
// assigned sequentially after the final severity sort, so they are stable
// and unique within one AnalysisResult.
type InsightCard struct {
	ID       int      `json:"id"`
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Title    string   `json:"title"`

	Description string `json:"description"`

	// Source names the parser that produced the underlying finding:
	// "logcat", "kernel", "anr", "tombstone", "dumpsys" or "hal".
	Source string `json:"source"`

	StackTrace         string   `json:"stack_trace,omitempty"`
	DebugCommands      []string `json:"debug_commands,omitempty"`
	SuggestedAllowRule string   `json:"suggested_allow_rule,omitempty"`

	// DeepAnalysis is attached after the fact by the LLM enrichment
	// layer, matched by ID. It is the only mutable field in the model.
	DeepAnalysis string `json:"deep_analysis,omitempty"`
}

// TimelineEvent is one entry of the merged cross-subsystem timeline.
// Count and TimeRange are populated only when adjacent duplicates were
// aggregated into this entry.
type TimelineEvent struct {
	Timestamp string   `json:"timestamp"`
	Source    string   `json:"source"`
	Severity  Severity `json:"severity"`
	Label     string   `json:"label"`

	Details   string     `json:"details,omitempty"`
	Count     int        `json:"count,omitempty"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
}

// HealthBreakdown holds the four sub-scores, each an integer in [0,100].
type HealthBreakdown struct {
	Stability      int `json:"stability"`
	Memory         int `json:"memory"`
	Responsiveness int `json:"responsiveness"`
	Kernel         int `json:"kernel"`
}

// SystemHealthScore is the weighted device health summary.
// Overall = round(0.30*stability + 0.25*memory + 0.25*responsiveness + 0.20*kernel).
type SystemHealthScore struct {
	Overall   int             `json:"overall"`
	Breakdown HealthBreakdown `json:"breakdown"`
}
