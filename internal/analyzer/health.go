package analyzer

import (
	"math"

	"github.com/nordlys/bugsight/pkg/models"
)

// Health axes.
type axis int

const (
	axisStability axis = iota
	axisMemory
	axisResponsiveness
	axisKernel
)

// penalty defines the frequency-damped deduction of one event type:
// the n-th occurrence deducts base×factor(n) with factor(1)=1.0,
// factor(2)=0.5, factor(3)=0.25 and factor(n≥4)=0.1, and the cumulative
// deduction is clamped to cap. The damping keeps floods of one repeated
// event (hundreds of identical SELinux denials) from zeroing a score
// while the first few occurrences still count fully.
type penalty struct {
	axis axis
	base float64
	cap  float64
}

var anomalyPenalties = map[models.AnomalyType]penalty{
	models.AnomalyANR:                     {axisResponsiveness, 10, 30},
	models.AnomalyFatalException:          {axisStability, 8, 24},
	models.AnomalyNativeCrash:             {axisStability, 10, 30},
	models.AnomalySystemServerCrash:       {axisStability, 15, 30},
	models.AnomalyOOM:                     {axisMemory, 10, 30},
	models.AnomalyWatchdog:                {axisStability, 12, 24},
	models.AnomalyBinderTimeout:           {axisResponsiveness, 5, 15},
	models.AnomalySlowOperation:           {axisResponsiveness, 2, 10},
	models.AnomalyStrictMode:              {axisResponsiveness, 1, 5},
	models.AnomalyInputDispatchingTimeout: {axisResponsiveness, 8, 24},
	models.AnomalyHALServiceDeath:         {axisStability, 5, 15},
}

var kernelPenalties = map[models.KernelEventType]penalty{
	models.KernelPanic:              {axisKernel, 25, 50},
	models.KernelOOMKill:            {axisMemory, 10, 30},
	models.KernelLowMemoryKiller:    {axisMemory, 4, 12},
	models.KernelKswapdActive:       {axisMemory, 1, 5},
	models.KernelDriverError:        {axisKernel, 3, 12},
	models.KernelGPUError:           {axisKernel, 5, 15},
	models.KernelThermalShutdown:    {axisKernel, 15, 30},
	models.KernelThermalThrottling:  {axisKernel, 4, 12},
	models.KernelWatchdogReset:      {axisKernel, 15, 30},
	models.KernelStorageIOError:     {axisKernel, 5, 15},
	models.KernelSuspendResumeError: {axisKernel, 2, 8},
	models.KernelSELinuxDenial:      {axisKernel, 2, 15},
}

var (
	anrTracePenalty  = penalty{axisResponsiveness, 10, 30}
	tombstonePenalty = penalty{axisStability, 10, 30}
)

// Flat penalties applied from dumpsys data on top of the damped ones.
const (
	memFreeCriticalRatio  = 0.05
	memFreeLowRatio       = 0.10
	memFreeCriticalPoints = 20
	memFreeLowPoints      = 10

	cpuCriticalLevel  = 90.0
	cpuHighLevel      = 80.0
	cpuCriticalPoints = 15
	cpuHighPoints     = 8

	iowaitCriticalLevel  = 30.0
	iowaitHighLevel      = 20.0
	iowaitCriticalPoints = 10
	iowaitHighPoints     = 5
)

// sumDamped computes the cumulative damped deduction of n occurrences at
// the given base: base + 0.5·base + 0.25·base + 0.1·base·(n-3), with the
// shorter prefixes for n < 3.
func sumDamped(n int, base float64) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return base
	case n == 2:
		return base * 1.5
	case n == 3:
		return base * 1.75
	default:
		return base*1.75 + 0.1*base*float64(n-3)
	}
}

func applyPenalty(scores *[4]float64, p penalty, count int) {
	if count <= 0 {
		return
	}
	d := sumDamped(count, p.base)
	if d > p.cap {
		d = p.cap
	}
	scores[p.axis] -= d
}

// computeHealthScore derives the four sub-scores and the weighted
// overall. All breakdown values are clamped to [0,100] and rounded;
// overall = round(0.30·stability + 0.25·memory + 0.25·responsiveness + 0.20·kernel).
func computeHealthScore(in Input) models.SystemHealthScore {
	scores := [4]float64{100, 100, 100, 100}

	if in.LogcatResult != nil {
		counts := make(map[models.AnomalyType]int)
		for i := range in.LogcatResult.Anomalies {
			counts[in.LogcatResult.Anomalies[i].Type]++
		}
		for typ, n := range counts {
			if p, ok := anomalyPenalties[typ]; ok {
				applyPenalty(&scores, p, n)
			}
		}
	}

	if in.KernelResult != nil {
		counts := make(map[models.KernelEventType]int)
		for i := range in.KernelResult.Events {
			counts[in.KernelResult.Events[i].Type]++
		}
		for typ, n := range counts {
			if p, ok := kernelPenalties[typ]; ok {
				applyPenalty(&scores, p, n)
			}
		}
	}

	applyPenalty(&scores, anrTracePenalty, len(in.ANRAnalyses))
	applyPenalty(&scores, tombstonePenalty, len(in.TombstoneAnalyses))

	if mi := in.MemInfo; mi != nil && mi.TotalRAMKB > 0 {
		ratio := float64(mi.FreeRAMKB) / float64(mi.TotalRAMKB)
		switch {
		case ratio < memFreeCriticalRatio:
			scores[axisMemory] -= memFreeCriticalPoints
		case ratio < memFreeLowRatio:
			scores[axisMemory] -= memFreeLowPoints
		}
	}
	if ci := in.CPUInfo; ci != nil {
		switch {
		case ci.TotalPercent > cpuCriticalLevel:
			scores[axisResponsiveness] -= cpuCriticalPoints
		case ci.TotalPercent > cpuHighLevel:
			scores[axisResponsiveness] -= cpuHighPoints
		}
		switch {
		case ci.IOWaitPercent > iowaitCriticalLevel:
			scores[axisResponsiveness] -= iowaitCriticalPoints
		case ci.IOWaitPercent > iowaitHighLevel:
			scores[axisResponsiveness] -= iowaitHighPoints
		}
	}

	breakdown := models.HealthBreakdown{
		Stability:      clampRound(scores[axisStability]),
		Memory:         clampRound(scores[axisMemory]),
		Responsiveness: clampRound(scores[axisResponsiveness]),
		Kernel:         clampRound(scores[axisKernel]),
	}

	overall := 0.30*float64(breakdown.Stability) +
		0.25*float64(breakdown.Memory) +
		0.25*float64(breakdown.Responsiveness) +
		0.20*float64(breakdown.Kernel)

	return models.SystemHealthScore{
		Overall:   int(math.Round(overall)),
		Breakdown: breakdown,
	}
}

func clampRound(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return int(math.Round(v))
}
