package analyzer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// buildTimeline concatenates events from all sources, sorts them by a
// normalized key and aggregates adjacent duplicates in a single pass.
func buildTimeline(in Input) []models.TimelineEvent {
	type keyed struct {
		event models.TimelineEvent
		key   string
	}
	var items []keyed

	add := func(e models.TimelineEvent) {
		items = append(items, keyed{event: e, key: sortKey(e.Timestamp)})
	}

	if in.LogcatResult != nil {
		for i := range in.LogcatResult.Anomalies {
			a := &in.LogcatResult.Anomalies[i]
			add(models.TimelineEvent{
				Timestamp: a.Timestamp,
				Source:    "logcat",
				Severity:  a.Severity,
				Label:     a.Summary,
			})
		}
	}
	if in.KernelResult != nil {
		for i := range in.KernelResult.Events {
			e := &in.KernelResult.Events[i]
			add(models.TimelineEvent{
				Timestamp: e.Timestamp,
				Source:    "kernel",
				Severity:  e.Severity,
				Label:     e.Summary,
			})
		}
	}
	for _, anr := range in.ANRAnalyses {
		label := "ANR"
		if anr.ProcessName != "" {
			label += " in " + anr.ProcessName
		}
		add(models.TimelineEvent{
			Timestamp: "unknown",
			Source:    "anr",
			Severity:  models.SeverityCritical,
			Label:     label,
			Details:   anr.Subject,
		})
	}
	for _, t := range in.TombstoneAnalyses {
		ts := t.Timestamp
		if ts == "" {
			ts = "unknown"
		}
		label := "Native crash"
		if t.ProcessName != "" {
			label += " in " + t.ProcessName
		}
		add(models.TimelineEvent{
			Timestamp: ts,
			Source:    "tombstone",
			Severity:  models.SeverityCritical,
			Label:     label,
			Details:   t.SignalName,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })

	events := make([]models.TimelineEvent, len(items))
	for i := range items {
		events[i] = items[i].event
	}
	return AggregateAdjacent(events)
}

// sortKey normalizes timestamps from different sources into one sortable
// string space: logcat's native "MM-DD HH:MM:SS.mmm" strings sort as-is,
// kernel "boot+N.NNNs" keys are prefixed with '~' (sorts after every
// digit-led logcat key) and zero-padded so they order numerically, and
// unknown timestamps sort last.
func sortKey(ts string) string {
	if ts == "" || ts == "unknown" {
		return "\x7f"
	}
	if rest, ok := strings.CutPrefix(ts, "boot+"); ok {
		secs := strings.TrimSuffix(rest, "s")
		if v, err := strconv.ParseFloat(secs, 64); err == nil {
			return fmt.Sprintf("~%015.3f", v)
		}
		return "~" + rest
	}
	return ts
}

// AggregateAdjacent merges runs of adjacent events sharing identical
// (label, source, severity) into one event carrying a count and the
// time range of the run. Non-adjacent repeats are left alone: this is a
// streaming single-pass aggregation, not a global group-by, and it is
// idempotent over already-aggregated input.
func AggregateAdjacent(events []models.TimelineEvent) []models.TimelineEvent {
	if len(events) == 0 {
		return events
	}

	out := make([]models.TimelineEvent, 0, len(events))
	cur := events[0]

	for i := 1; i < len(events); i++ {
		e := &events[i]
		if e.Label == cur.Label && e.Source == cur.Source && e.Severity == cur.Severity {
			if cur.Count == 0 {
				cur.Count = 1
			}
			cur.Count += max(1, e.Count)
			cur.TimeRange = &models.TimeRange{Start: cur.Timestamp, End: lastTimestamp(e)}
			continue
		}
		out = append(out, cur)
		cur = *e
	}
	out = append(out, cur)

	return out
}

func lastTimestamp(e *models.TimelineEvent) string {
	if e.TimeRange != nil {
		return e.TimeRange.End
	}
	return e.Timestamp
}
