package analyzer

import (
	"math"
	"testing"

	"github.com/nordlys/bugsight/pkg/models"
)

func TestSumDamped(t *testing.T) {
	tests := []struct {
		n    int
		base float64
		want float64
	}{
		{0, 10, 0},
		{1, 10, 10},
		{2, 10, 15},
		{3, 10, 17.5},
		{4, 10, 18.5},
		{10, 10, 24.5},
	}
	for _, tt := range tests {
		if got := sumDamped(tt.n, tt.base); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("sumDamped(%d, %v) = %v, want %v", tt.n, tt.base, got, tt.want)
		}
	}
}

func TestSELinuxDenialCapReach(t *testing.T) {
	// base 2, cap 15: the damped sum reaches the cap only at the 61st
	// denial (3.5 + 0.2*(n-3) >= 15 => n >= 60.5).
	p := kernelPenalties[models.KernelSELinuxDenial]
	if p.base != 2 || p.cap != 15 {
		t.Fatalf("selinux penalty = %+v, want base 2 cap 15", p)
	}
	if d := sumDamped(60, p.base); d >= p.cap {
		t.Errorf("sumDamped(60) = %v, expected below cap %v", d, p.cap)
	}
	if d := sumDamped(61, p.base); d < p.cap {
		t.Errorf("sumDamped(61) = %v, expected to reach cap %v", d, p.cap)
	}
}

func TestHealthScorePerfectWithNoFindings(t *testing.T) {
	score := computeHealthScore(Input{})
	if score.Overall != 100 {
		t.Errorf("overall = %d, want 100", score.Overall)
	}
	b := score.Breakdown
	if b.Stability != 100 || b.Memory != 100 || b.Responsiveness != 100 || b.Kernel != 100 {
		t.Errorf("breakdown = %+v, want all 100", b)
	}
}

func TestHealthScoreSingleANRAnomaly(t *testing.T) {
	in := Input{
		LogcatResult: &models.LogcatResult{
			Anomalies: []models.LogcatAnomaly{{Type: models.AnomalyANR}},
		},
	}
	score := computeHealthScore(in)
	if score.Breakdown.Responsiveness != 90 {
		t.Errorf("responsiveness = %d, want 90", score.Breakdown.Responsiveness)
	}
	// overall = round(0.30*100 + 0.25*100 + 0.25*90 + 0.20*100) = 98
	if score.Overall != 98 {
		t.Errorf("overall = %d, want 98", score.Overall)
	}
}

func TestHealthScoreDampingLimitsFloods(t *testing.T) {
	// 500 identical SELinux denials deduct only the 15-point cap.
	events := make([]models.KernelEvent, 500)
	for i := range events {
		events[i] = models.KernelEvent{Type: models.KernelSELinuxDenial}
	}
	score := computeHealthScore(Input{KernelResult: &models.KernelResult{Events: events}})
	if score.Breakdown.Kernel != 85 {
		t.Errorf("kernel = %d, want 85", score.Breakdown.Kernel)
	}
}

func TestHealthScoreNeverNegative(t *testing.T) {
	var anomalies []models.LogcatAnomaly
	for _, typ := range []models.AnomalyType{
		models.AnomalyANR,
		models.AnomalyBinderTimeout,
		models.AnomalySlowOperation,
		models.AnomalyInputDispatchingTimeout,
		models.AnomalyStrictMode,
	} {
		for i := 0; i < 50; i++ {
			anomalies = append(anomalies, models.LogcatAnomaly{Type: typ})
		}
	}
	in := Input{
		LogcatResult: &models.LogcatResult{Anomalies: anomalies},
		ANRAnalyses:  make([]*models.ANRTraceAnalysis, 20),
		CPUInfo:      &models.CPUInfo{TotalPercent: 99, IOWaitPercent: 40},
	}
	score := computeHealthScore(in)
	if score.Breakdown.Responsiveness < 0 || score.Breakdown.Responsiveness > 100 {
		t.Errorf("responsiveness = %d, out of [0,100]", score.Breakdown.Responsiveness)
	}
	if score.Overall < 0 || score.Overall > 100 {
		t.Errorf("overall = %d, out of [0,100]", score.Overall)
	}
}

func TestHealthScoreFlatResourcePenalties(t *testing.T) {
	in := Input{
		MemInfo: &models.MemInfo{TotalRAMKB: 1000000, FreeRAMKB: 40000}, // 4% free
		CPUInfo: &models.CPUInfo{TotalPercent: 85},
	}
	score := computeHealthScore(in)
	if score.Breakdown.Memory != 80 {
		t.Errorf("memory = %d, want 80 (critical free-RAM deduction)", score.Breakdown.Memory)
	}
	if score.Breakdown.Responsiveness != 92 {
		t.Errorf("responsiveness = %d, want 92 (high CPU deduction)", score.Breakdown.Responsiveness)
	}
}
