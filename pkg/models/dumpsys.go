package models

// ProcessPSS is one row of the "Total PSS by process" block.
type ProcessPSS struct {
	Name  string `json:"name"`
	Pid   int    `json:"pid"`
	PssKB int64  `json:"pss_kb"`
}

// MemInfo is the extracted summary of "dumpsys meminfo".
type MemInfo struct {
	TotalRAMKB int64 `json:"total_ram_kb"`
	FreeRAMKB  int64 `json:"free_ram_kb"`
	UsedRAMKB  int64 `json:"used_ram_kb"`

	// TopProcesses keeps at most the ten largest PSS consumers, in the
	// rank order the source dump reported.
	TopProcesses []ProcessPSS `json:"top_processes"`
}

// ProcessCPU is one per-process row of "dumpsys cpuinfo".
type ProcessCPU struct {
	Percent float64 `json:"percent"`
	Pid     int     `json:"pid"`
	Name    string  `json:"name"`
}

// CPUInfo is the extracted summary of "dumpsys cpuinfo".
type CPUInfo struct {
	TotalPercent  float64 `json:"total_percent"`
	UserPercent   float64 `json:"user_percent"`
	KernelPercent float64 `json:"kernel_percent"`
	IOWaitPercent float64 `json:"iowait_percent"`

	// TopProcesses keeps at most ten rows, re-sorted by CPU% descending.
	TopProcesses []ProcessCPU `json:"top_processes"`
}

// HALStatusValue is the liveness state of a HAL service row.
type HALStatusValue string

const (
	HALAlive         HALStatusValue = "alive"
	HALNonResponsive HALStatusValue = "non-responsive"
	HALDeclared      HALStatusValue = "declared"
	HALStatusNA      HALStatusValue = "N/A"
)

// HALService is one row of the lshal table.
type HALService struct {
	InterfaceName string         `json:"interface_name"`
	Transport     string         `json:"transport"`
	Status        HALStatusValue `json:"status"`
	IsVendor      bool           `json:"is_vendor"`
}

// HALFamily groups every version of one HAL interface. HighestStatus and
// HighestVersion always describe the numerically largest version present,
// never a lower one.
type HALFamily struct {
	FamilyName     string         `json:"family_name"`
	ShortName      string         `json:"short_name"`
	HighestVersion string         `json:"highest_version"`
	HighestStatus  HALStatusValue `json:"highest_status"`
	IsVendor       bool           `json:"is_vendor"`
	IsOem          bool           `json:"is_oem"`
	VersionCount   int            `json:"version_count"`
}

// HALStatus is the full output of the lshal parser.
type HALStatus struct {
	Families     []HALFamily `json:"families"`
	ServiceCount int         `json:"service_count"`

	// Truncated flags that lshal was killed mid-scan; non-responsive and
	// declared statuses of BSP families are unreliable when set.
	Truncated bool `json:"truncated"`
}
