package models

// LogEntry is one logical logcat line. Continuation lines (stack traces,
// wrapped messages) are folded into the Message and Raw of the entry that
// precedes them, so one LogEntry may span several physical lines.
type LogEntry struct {
	// Timestamp is the native logcat timestamp ("MM-DD HH:MM:SS.mmm").
	// Logcat timestamps sort correctly as plain strings within one run.
	Timestamp string `json:"timestamp"`

	Pid   int    `json:"pid"`
	Tid   int    `json:"tid"`
	Level string `json:"level"`
	Tag   string `json:"tag"`

	Message string `json:"message"`

	// Raw is the original line(s) including folded continuations.
	Raw string `json:"raw"`

	// LineNumber is the 1-based physical line the entry started on.
	LineNumber int `json:"line_number"`
}

// AnomalyType identifies one of the logcat anomaly detection rules.
type AnomalyType string

const (
	AnomalyANR                     AnomalyType = "anr"
	AnomalyFatalException          AnomalyType = "fatal_exception"
	AnomalyNativeCrash             AnomalyType = "native_crash"
	AnomalySystemServerCrash       AnomalyType = "system_server_crash"
	AnomalyOOM                     AnomalyType = "oom"
	AnomalyWatchdog                AnomalyType = "watchdog"
	AnomalyBinderTimeout           AnomalyType = "binder_timeout"
	AnomalySlowOperation           AnomalyType = "slow_operation"
	AnomalyStrictMode              AnomalyType = "strict_mode"
	AnomalyInputDispatchingTimeout AnomalyType = "input_dispatching_timeout"
	AnomalyHALServiceDeath         AnomalyType = "hal_service_death"
)

// LogcatAnomaly is one detected event in the logcat stream.
type LogcatAnomaly struct {
	Type      AnomalyType `json:"type"`
	Severity  Severity    `json:"severity"`
	Timestamp string      `json:"timestamp"`

	// Entries is a bounded context window around the matching line,
	// filtered to the same pid where one is known.
	Entries []LogEntry `json:"entries"`

	ProcessName string `json:"process_name,omitempty"`
	Pid         int    `json:"pid,omitempty"`

	Summary string `json:"summary"`
}

// TagStat counts error-level entries for one tag.
type TagStat struct {
	Tag        string `json:"tag"`
	ErrorCount int    `json:"error_count"`
	// Origin is "framework", "vendor" or "app".
	Origin string `json:"origin"`
}

// LogcatResult is the full output of the logcat parser.
type LogcatResult struct {
	Anomalies   []LogcatAnomaly `json:"anomalies"`
	EntryCount  int             `json:"entry_count"`
	ParseErrors int             `json:"parse_errors"`
}
