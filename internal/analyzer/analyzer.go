// Package analyzer fuses the five parser outputs into insight cards, a
// cross-subsystem timeline and a damped health score.
package analyzer

import (
	"github.com/nordlys/bugsight/pkg/models"
)

// Input carries everything the aggregator consumes. Any field may be
// nil/empty; the analysis runs uniformly over whatever subset of parsers
// produced output.
type Input struct {
	Metadata models.DeviceMetadata

	LogcatEntries []models.LogEntry
	LogcatResult  *models.LogcatResult
	KernelResult  *models.KernelResult

	MemInfo   *models.MemInfo
	CPUInfo   *models.CPUInfo
	HALStatus *models.HALStatus

	ANRAnalyses       []*models.ANRTraceAnalysis
	TombstoneAnalyses []*models.TombstoneAnalysis

	TagStats []models.TagStat

	// SysProps is the parsed getprop map, used only by boot-status
	// resolution.
	SysProps map[string]string
}

// Analyze is the single merge point of the pipeline: it produces the
// complete result from whatever parser outputs are present. Ordering of
// insights and timeline entries is derived here deterministically,
// independent of how the parsers were scheduled.
func Analyze(in Input) *models.AnalysisResult {
	res := &models.AnalysisResult{
		Metadata:          in.Metadata,
		ANRAnalyses:       in.ANRAnalyses,
		LogcatResult:      in.LogcatResult,
		KernelResult:      in.KernelResult,
		MemInfo:           in.MemInfo,
		CPUInfo:           in.CPUInfo,
		HALStatus:         in.HALStatus,
		TombstoneAnalyses: in.TombstoneAnalyses,
		LogTagStats:       in.TagStats,
	}
	if res.ANRAnalyses == nil {
		res.ANRAnalyses = []*models.ANRTraceAnalysis{}
	}

	res.BootStatus = resolveBootStatus(in)
	res.Insights = buildInsights(in)
	res.Timeline = buildTimeline(in)
	res.HealthScore = computeHealthScore(in)

	return res
}
