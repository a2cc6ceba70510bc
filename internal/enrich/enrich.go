package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// Evidence bounds. The prompt stays small even for pathological reports;
// the model sees the worst findings, not all of them.
const (
	defaultMaxInsights = 10
	maxStackLines      = 12
	maxDescriptionLen  = 500
)

// Enricher attaches model-written deep analysis to a finished result.
type Enricher struct {
	client      *Client
	maxInsights int
}

// New builds an Enricher. maxInsights <= 0 selects the default bound.
func New(client *Client, maxInsights int) *Enricher {
	if maxInsights <= 0 {
		maxInsights = defaultMaxInsights
	}
	return &Enricher{client: client, maxInsights: maxInsights}
}

// Enrich sends the most severe findings to the model and writes back
// InsightCard.DeepAnalysis (matched by id) and DeepAnalysisOverview.
// The result is mutated in place; on error it is left untouched.
func (e *Enricher) Enrich(ctx context.Context, res *models.AnalysisResult) error {
	selected := selectInsights(res.Insights, e.maxInsights)
	if len(selected) == 0 {
		return nil
	}

	prompt := buildPrompt(res, selected)
	reply, err := e.client.complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("enriching analysis: %w", err)
	}

	byID := make(map[int]*models.InsightCard, len(res.Insights))
	for _, card := range res.Insights {
		byID[card.ID] = card
	}
	for _, f := range reply.Findings {
		if card, ok := byID[f.ID]; ok && strings.TrimSpace(f.Analysis) != "" {
			card.DeepAnalysis = strings.TrimSpace(f.Analysis)
		}
	}
	res.DeepAnalysisOverview = strings.TrimSpace(reply.Overview)
	return nil
}

// selectInsights keeps critical and warning cards, already in severity
// order, up to the bound.
func selectInsights(cards []*models.InsightCard, max int) []*models.InsightCard {
	var out []*models.InsightCard
	for _, c := range cards {
		if c.Severity != models.SeverityCritical && c.Severity != models.SeverityWarning {
			continue
		}
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}

func buildPrompt(res *models.AnalysisResult, cards []*models.InsightCard) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Device: %s %s, Android %s (SDK %d)\n",
		res.Metadata.Manufacturer, res.Metadata.Model,
		res.Metadata.AndroidVersion, res.Metadata.SdkLevel)
	fmt.Fprintf(&b, "Health score: %d/100 (stability %d, memory %d, responsiveness %d, kernel %d)\n\n",
		res.HealthScore.Overall,
		res.HealthScore.Breakdown.Stability,
		res.HealthScore.Breakdown.Memory,
		res.HealthScore.Breakdown.Responsiveness,
		res.HealthScore.Breakdown.Kernel)

	b.WriteString("Findings:\n")
	for _, c := range cards {
		fmt.Fprintf(&b, "\n[id=%d] %s (%s, source=%s)\n", c.ID, c.Title, c.Severity, c.Source)
		if d := c.Description; d != "" {
			if len(d) > maxDescriptionLen {
				d = d[:maxDescriptionLen] + "..."
			}
			b.WriteString(d + "\n")
		}
		if c.StackTrace != "" {
			b.WriteString(truncateLines(c.StackTrace, maxStackLines))
		}
	}

	for _, anr := range res.ANRAnalyses {
		if anr == nil {
			continue
		}
		ta := anr.BlockedThread
		if ta == nil {
			ta = anr.MainThread
		}
		if ta == nil || ta.Thread == nil {
			continue
		}
		fmt.Fprintf(&b, "\nANR in %s: thread %q %s, reason=%s (%s confidence)",
			anr.ProcessName, ta.Thread.Name, ta.Thread.State, ta.BlockReason, ta.Confidence)
		if len(ta.BlockingChain) > 0 {
			fmt.Fprintf(&b, ", blocked behind: %s", strings.Join(ta.BlockingChain, ", "))
		}
		b.WriteString("\n")
		if anr.Deadlocks.Detected {
			fmt.Fprintf(&b, "Deadlock detected across %d thread cycle(s)\n", len(anr.Deadlocks.Cycles))
		}
	}

	return b.String()
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > max {
		lines = lines[:max]
	}
	return strings.Join(lines, "\n") + "\n"
}
