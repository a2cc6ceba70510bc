package models

// BacktraceFrame is one frame of a native crash backtrace.
type BacktraceFrame struct {
	Number   int    `json:"number"`
	PC       string `json:"pc"`
	Binary   string `json:"binary"`
	Function string `json:"function,omitempty"`
	Offset   string `json:"offset,omitempty"`
	BuildID  string `json:"build_id,omitempty"`
}

// TombstoneAnalysis is the extracted content of one native crash dump.
type TombstoneAnalysis struct {
	Pid         int    `json:"pid"`
	Tid         int    `json:"tid"`
	ProcessName string `json:"process_name"`
	ThreadName  string `json:"thread_name,omitempty"`

	Signal     int    `json:"signal"`
	SignalName string `json:"signal_name"`
	SignalCode string `json:"signal_code,omitempty"`
	FaultAddr  string `json:"fault_addr,omitempty"`

	Backtrace []BacktraceFrame  `json:"backtrace"`
	Registers map[string]string `json:"registers,omitempty"`

	// IsVendorCrash is true when the first backtrace frame maps into
	// /vendor/ or /odm/.
	IsVendorCrash   bool   `json:"is_vendor_crash"`
	CrashedInBinary string `json:"crashed_in_binary,omitempty"`

	BuildFingerprint string `json:"build_fingerprint,omitempty"`
	ABI              string `json:"abi,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	AbortMessage     string `json:"abort_message,omitempty"`
}
