package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nordlys/bugsight/internal/parser/kernel"
	"github.com/nordlys/bugsight/pkg/models"
)

// Resource thresholds. Fixed by design, not tunable at runtime.
const (
	lowFreeRAMRatio = 0.10
	highCPUPercent  = 80.0
	highIOWaitLevel = 20.0
)

// buildInsights produces one card per finding, merges duplicates in two
// passes, sorts by severity and assigns sequential ids last so they are
// stable and unique.
func buildInsights(in Input) []*models.InsightCard {
	var cards []*models.InsightCard

	if in.LogcatResult != nil {
		for i := range in.LogcatResult.Anomalies {
			cards = append(cards, anomalyCard(&in.LogcatResult.Anomalies[i]))
		}
	}
	if in.KernelResult != nil {
		for i := range in.KernelResult.Events {
			cards = append(cards, kernelCard(&in.KernelResult.Events[i]))
		}
	}
	for _, anr := range in.ANRAnalyses {
		cards = append(cards, anrCard(anr))
	}
	for _, t := range in.TombstoneAnalyses {
		cards = append(cards, tombstoneCard(t))
	}
	cards = append(cards, resourceCards(in)...)
	cards = append(cards, halCards(in.HALStatus)...)

	cards = mergeSELinuxCards(cards)
	cards = mergeDuplicateCards(cards)

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Severity.Rank() < cards[j].Severity.Rank()
	})
	for i, c := range cards {
		c.ID = i + 1
	}
	return cards
}

func anomalyCard(a *models.LogcatAnomaly) *models.InsightCard {
	tpl := anomalyTemplate(a.Type)

	title := tpl.title
	if a.ProcessName != "" {
		title += ": " + a.ProcessName
	}

	desc := a.Summary
	if desc == "" {
		desc = tpl.description
	} else {
		desc += ". " + tpl.description
	}

	var trace strings.Builder
	for i := range a.Entries {
		trace.WriteString(a.Entries[i].Raw)
		trace.WriteByte('\n')
	}

	return &models.InsightCard{
		Severity:      a.Severity,
		Category:      string(a.Type),
		Title:         title,
		Description:   desc,
		Source:        "logcat",
		StackTrace:    strings.TrimRight(trace.String(), "\n"),
		DebugCommands: tpl.debugCommands,
	}
}

func kernelCard(e *models.KernelEvent) *models.InsightCard {
	tpl := kernelTemplate(e.Type)

	card := &models.InsightCard{
		Severity:      e.Severity,
		Category:      string(e.Type),
		Title:         tpl.title,
		Description:   e.Summary + ". " + tpl.description,
		Source:        "kernel",
		DebugCommands: tpl.debugCommands,
	}

	if e.Type == models.KernelSELinuxDenial {
		// Titles carry the context pair so identical denials merge in
		// the dedup pass.
		card.Title = e.Summary
		if rule, ok := kernel.GenerateSELinuxAllowRule(e.Details); ok {
			card.SuggestedAllowRule = rule
		}
	}

	if len(e.Entries) > 0 {
		card.StackTrace = e.Entries[0].Raw
	}
	return card
}

func anrCard(a *models.ANRTraceAnalysis) *models.InsightCard {
	// The Subject-named blocked thread is preferred over the main thread.
	analysis := a.BlockedThread
	if analysis == nil {
		analysis = a.MainThread
	}

	title := "ANR"
	if a.ProcessName != "" {
		title += " in " + a.ProcessName
	}

	var desc strings.Builder
	var trace string
	if analysis != nil {
		fmt.Fprintf(&desc, "Blocked thread %q: %s (confidence %s).",
			analysis.Thread.Name, analysis.BlockReason, analysis.Confidence)
		if len(analysis.BlockingChain) > 0 {
			fmt.Fprintf(&desc, " Blocked behind: %s.", strings.Join(analysis.BlockingChain, " -> "))
		}
		if analysis.BinderTarget != nil {
			fmt.Fprintf(&desc, " Outgoing call target: %s.", analysis.BinderTarget.Interface)
		}
		for _, s := range analysis.SuspectedBinderTargets {
			fmt.Fprintf(&desc, " Suspected stuck binder call: %s.", s.Interface)
		}
		trace = analysis.Thread.Raw
	} else {
		desc.WriteString("Thread dump parsed but no main thread could be resolved.")
	}
	if a.Deadlocks.Detected {
		fmt.Fprintf(&desc, " Deadlock detected across %d cycle(s).", len(a.Deadlocks.Cycles))
	}

	return &models.InsightCard{
		Severity:      models.SeverityCritical,
		Category:      "anr",
		Title:         title,
		Description:   desc.String(),
		Source:        "anr",
		StackTrace:    trace,
		DebugCommands: anomalyTemplates[models.AnomalyANR].debugCommands,
	}
}

func tombstoneCard(t *models.TombstoneAnalysis) *models.InsightCard {
	title := "Native crash"
	if t.ProcessName != "" {
		title += " in " + t.ProcessName
	}
	if t.SignalName != "" {
		title += " (" + t.SignalName + ")"
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Process %s (pid %d) received signal %d", t.ProcessName, t.Pid, t.Signal)
	if t.SignalName != "" {
		fmt.Fprintf(&desc, " (%s)", t.SignalName)
	}
	if t.FaultAddr != "" {
		fmt.Fprintf(&desc, ", fault addr %s", t.FaultAddr)
	}
	desc.WriteByte('.')
	if t.IsVendorCrash {
		fmt.Fprintf(&desc, " Crashed inside vendor code: %s.", t.CrashedInBinary)
	}
	if t.AbortMessage != "" {
		fmt.Fprintf(&desc, " Abort message: %q.", t.AbortMessage)
	}

	var trace strings.Builder
	for _, f := range t.Backtrace {
		fmt.Fprintf(&trace, "#%02d pc %s %s", f.Number, f.PC, f.Binary)
		if f.Function != "" {
			fmt.Fprintf(&trace, " (%s", f.Function)
			if f.Offset != "" {
				fmt.Fprintf(&trace, "+%s", f.Offset)
			}
			trace.WriteByte(')')
		}
		trace.WriteByte('\n')
	}

	return &models.InsightCard{
		Severity:    models.SeverityCritical,
		Category:    "native_crash",
		Title:       title,
		Description: desc.String(),
		Source:      "tombstone",
		StackTrace:  strings.TrimRight(trace.String(), "\n"),
		DebugCommands: []string{
			"adb pull /data/tombstones/",
			"ndk-stack -sym <symbols> -dump tombstone",
		},
	}
}

func resourceCards(in Input) []*models.InsightCard {
	var cards []*models.InsightCard

	if mi := in.MemInfo; mi != nil && mi.TotalRAMKB > 0 {
		ratio := float64(mi.FreeRAMKB) / float64(mi.TotalRAMKB)
		if ratio < lowFreeRAMRatio {
			cards = append(cards, &models.InsightCard{
				Severity: models.SeverityWarning,
				Category: "memory_pressure",
				Title:    "Low free memory",
				Description: fmt.Sprintf("Only %.1f%% of RAM is free (%d of %d KB). Expect aggressive process killing.",
					ratio*100, mi.FreeRAMKB, mi.TotalRAMKB),
				Source:        "dumpsys",
				DebugCommands: []string{"adb shell dumpsys meminfo", "adb shell cat /proc/meminfo"},
			})
		}
	}

	if ci := in.CPUInfo; ci != nil {
		if ci.TotalPercent > highCPUPercent {
			cards = append(cards, &models.InsightCard{
				Severity: models.SeverityWarning,
				Category: "cpu_load",
				Title:    "High CPU load",
				Description: fmt.Sprintf("Total CPU usage was %.1f%% over the sample window.",
					ci.TotalPercent),
				Source:        "dumpsys",
				DebugCommands: []string{"adb shell dumpsys cpuinfo", "adb shell top -n 1"},
			})
		}
		if ci.IOWaitPercent > highIOWaitLevel {
			cards = append(cards, &models.InsightCard{
				Severity: models.SeverityWarning,
				Category: "io_wait",
				Title:    "High I/O wait",
				Description: fmt.Sprintf("CPU spent %.1f%% of time waiting on I/O; storage is a bottleneck.",
					ci.IOWaitPercent),
				Source:        "dumpsys",
				DebugCommands: []string{"adb shell dumpsys cpuinfo", "adb shell iostat 1 5"},
			})
		}
	}

	return cards
}

func halCards(hal *models.HALStatus) []*models.InsightCard {
	if hal == nil {
		return nil
	}
	var cards []*models.InsightCard

	if hal.Truncated {
		cards = append(cards, &models.InsightCard{
			Severity:    models.SeverityInfo,
			Category:    "hal_status",
			Title:       "lshal output truncated",
			Description: "lshal was killed before finishing its scan; non-responsive/declared statuses of BSP HALs are unreliable and were suppressed.",
			Source:      "hal",
			DebugCommands: []string{
				"adb shell lshal",
			},
		})
	}

	for i := range hal.Families {
		f := &hal.Families[i]
		if !f.IsVendor {
			continue
		}
		if f.HighestStatus != models.HALNonResponsive && f.HighestStatus != models.HALDeclared {
			continue
		}
		// A truncated scan makes BSP statuses artifacts of the kill, not
		// real signal; OEM rows remain trustworthy.
		if !f.IsOem && hal.Truncated {
			continue
		}

		severity := models.SeverityInfo
		if f.IsOem {
			severity = models.SeverityWarning
		}
		cards = append(cards, &models.InsightCard{
			Severity: severity,
			Category: "hal_status",
			Title:    fmt.Sprintf("HAL %s is %s", f.FamilyName, f.HighestStatus),
			Description: fmt.Sprintf("Interface %s@%s reports status %q.",
				f.FamilyName, f.HighestVersion, f.HighestStatus),
			Source: "hal",
			DebugCommands: []string{
				"adb shell lshal | grep " + f.ShortName,
				"adb shell dumpsys hwservicemanager",
			},
		})
	}

	return cards
}

// mergeSELinuxCards collapses denial cards sharing an identical title
// (same source/target context pair) into one card with a count suffix.
func mergeSELinuxCards(cards []*models.InsightCard) []*models.InsightCard {
	type group struct {
		card  *models.InsightCard
		count int
	}
	groups := make(map[string]*group)
	var out []*models.InsightCard

	for _, c := range cards {
		if c.Category != string(models.KernelSELinuxDenial) {
			out = append(out, c)
			continue
		}
		if g, ok := groups[c.Title]; ok {
			g.count++
			continue
		}
		g := &group{card: c, count: 1}
		groups[c.Title] = g
		out = append(out, c)
	}

	for _, g := range groups {
		if g.count > 1 {
			g.card.Title = fmt.Sprintf("%s (×%d)", g.card.Title, g.count)
		}
	}
	return out
}

// mergeDuplicateCards collapses remaining cards with identical
// (severity, category, source, title), appending the occurrence count to
// the description.
func mergeDuplicateCards(cards []*models.InsightCard) []*models.InsightCard {
	type group struct {
		card  *models.InsightCard
		count int
	}
	groups := make(map[string]*group)
	var out []*models.InsightCard

	for _, c := range cards {
		key := string(c.Severity) + "\x00" + c.Category + "\x00" + c.Source + "\x00" + c.Title
		if g, ok := groups[key]; ok {
			g.count++
			continue
		}
		g := &group{card: c, count: 1}
		groups[key] = g
		out = append(out, c)
	}

	for _, g := range groups {
		if g.count > 1 {
			g.card.Description = fmt.Sprintf("%s (%d occurrences)", g.card.Description, g.count)
		}
	}
	return out
}
