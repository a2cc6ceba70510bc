// Package pipeline drives one bugreport analysis: unpack, run the five
// parsers concurrently, then merge their outputs through the analyzer.
package pipeline

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nordlys/bugsight/internal/analyzer"
	"github.com/nordlys/bugsight/internal/bugreport"
	"github.com/nordlys/bugsight/internal/parser/anrtrace"
	"github.com/nordlys/bugsight/internal/parser/dumpsys"
	"github.com/nordlys/bugsight/internal/parser/kernel"
	"github.com/nordlys/bugsight/internal/parser/logcat"
	"github.com/nordlys/bugsight/internal/parser/tombstone"
	"github.com/nordlys/bugsight/pkg/models"
)

// Stage names one phase of the run, reported through the progress callback.
type Stage string

const (
	StageUnpack     Stage = "unpack"
	StageLogcat     Stage = "logcat"
	StageKernel     Stage = "kernel"
	StageDumpsys    Stage = "dumpsys"
	StageTraces     Stage = "anr_traces"
	StageTombstones Stage = "tombstones"
	StageAggregate  Stage = "aggregate"
)

// ProgressFunc receives stage transitions. done=false marks the start of
// a stage, done=true its completion. Calls may arrive from multiple
// goroutines; implementations must be safe for concurrent use.
type ProgressFunc func(stage Stage, done bool)

// Pipeline runs bugreport analyses.
type Pipeline struct {
	log *logrus.Logger

	// resolveManufacturer maps the reported manufacturer string to the
	// canonical name used in vendor HAL namespaces. Optional.
	resolveManufacturer func(string) string
}

func New(log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{log: log}
}

// SetManufacturerResolver installs an alias resolver for OEM/BSP HAL
// classification, typically config.Rules.CanonicalManufacturer.
func (p *Pipeline) SetManufacturerResolver(fn func(string) string) {
	p.resolveManufacturer = fn
}

// Run analyzes one bugreport.zip. The only returned errors are structural
// (unreadable archive, missing main text); individual parser failures
// degrade to partial results instead.
func (p *Pipeline) Run(ctx context.Context, r io.ReaderAt, size int64, progress ProgressFunc) (*models.AnalysisResult, error) {
	if progress == nil {
		progress = func(Stage, bool) {}
	}

	progress(StageUnpack, false)
	bundle, err := bugreport.Unpack(r, size)
	if err != nil {
		return nil, err
	}
	progress(StageUnpack, true)
	p.log.WithFields(logrus.Fields{
		"sections":   len(bundle.Sections),
		"anr_traces": len(bundle.ANRTraces),
		"tombstones": len(bundle.Tombstones),
	}).Info("bugreport unpacked")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := analyzer.Input{
		Metadata: bundle.Metadata,
		SysProps: bundle.Props,
	}

	var wg sync.WaitGroup
	stage := func(s Stage, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			progress(s, false)
			fn()
			progress(s, true)
		}()
	}

	stage(StageLogcat, func() {
		text := logcatText(bundle)
		entries, parseErrors := logcat.Parse(text)
		in.LogcatEntries = entries
		in.LogcatResult = &models.LogcatResult{
			Anomalies:   logcat.DetectAnomalies(entries),
			EntryCount:  len(entries),
			ParseErrors: parseErrors,
		}
		in.TagStats = logcat.TagStats(entries)
		p.log.WithFields(logrus.Fields{
			"entries":   len(entries),
			"anomalies": len(in.LogcatResult.Anomalies),
		}).Debug("logcat parsed")
	})

	stage(StageKernel, func() {
		in.KernelResult = kernel.Parse(kernelText(bundle))
		p.log.WithField("events", len(in.KernelResult.Events)).Debug("kernel log parsed")
	})

	stage(StageDumpsys, func() {
		dumps := serviceDumps(bundle)
		in.MemInfo = dumpsys.ParseMemInfo(dumps["meminfo"])
		in.CPUInfo = dumpsys.ParseCpuInfo(dumps["cpuinfo"])
		manufacturer := bundle.Metadata.Manufacturer
		if p.resolveManufacturer != nil {
			manufacturer = p.resolveManufacturer(manufacturer)
		}
		in.HALStatus = dumpsys.ParseLshal(lshalText(bundle), manufacturer)
	})

	stage(StageTraces, func() {
		in.ANRAnalyses = anrtrace.ParseBatch(bundle.ANRTraces)
		p.log.WithField("traces", len(in.ANRAnalyses)).Debug("anr traces parsed")
	})

	stage(StageTombstones, func() {
		in.TombstoneAnalyses = tombstone.ParseBatch(bundle.Tombstones)
		p.log.WithField("tombstones", len(in.TombstoneAnalyses)).Debug("tombstones parsed")
	})

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(StageAggregate, false)
	res := analyzer.Analyze(in)
	progress(StageAggregate, true)
	p.log.WithFields(logrus.Fields{
		"insights": len(res.Insights),
		"score":    res.HealthScore.Overall,
	}).Info("analysis complete")

	return res, nil
}

// logcatText joins the main and event log sections; the anomaly rules
// only trigger on main-log tags so concatenation order is immaterial.
func logcatText(b *bugreport.Bundle) string {
	var parts []string
	for _, name := range []string{"SYSTEM LOG", "EVENT LOG"} {
		if s := b.Section(name); s != nil {
			parts = append(parts, s.Content)
		}
	}
	if len(parts) == 0 {
		if s := b.SectionByCommand("logcat"); s != nil {
			parts = append(parts, s.Content)
		}
	}
	return join(parts)
}

func kernelText(b *bugreport.Bundle) string {
	if s := b.Section("KERNEL LOG"); s != nil {
		return s.Content
	}
	if s := b.SectionByCommand("dmesg"); s != nil {
		return s.Content
	}
	return ""
}

func lshalText(b *bugreport.Bundle) string {
	if s := b.Section("HAL"); s != nil {
		return s.Content
	}
	if s := b.SectionByCommand("lshal"); s != nil {
		return s.Content
	}
	return ""
}

func serviceDumps(b *bugreport.Bundle) map[string]string {
	out := map[string]string{}
	for i := range b.Sections {
		s := &b.Sections[i]
		if s.Name != "DUMPSYS" && !strings.Contains(s.Content, "DUMP OF SERVICE") {
			continue
		}
		for name, content := range bugreport.ServiceDumps(s.Content) {
			out[name] = content
		}
	}
	return out
}

func join(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}
