package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordlys/bugsight/pkg/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// chatServer returns an httptest server speaking just enough of the chat
// completions API to hand back the given model content.
func chatServer(t *testing.T, content string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if gotPrompt != nil && len(req.Messages) == 2 {
			*gotPrompt = req.Messages[1].Content
		}

		reply := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(reply)
	}))
}

func sampleResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Metadata:    models.DeviceMetadata{Manufacturer: "Google", Model: "Pixel 6 Pro", AndroidVersion: "14", SdkLevel: 34},
		HealthScore: models.SystemHealthScore{Overall: 72},
		Insights: []*models.InsightCard{
			{ID: 1, Severity: models.SeverityCritical, Title: "ANR in com.example.app", Source: "anr", Description: "blocked on binder"},
			{ID: 2, Severity: models.SeverityWarning, Title: "Low free memory", Source: "dumpsys"},
			{ID: 3, Severity: models.SeverityInfo, Title: "SELinux denial", Source: "kernel"},
		},
	}
}

func TestEnrichWritesDeepAnalysisByID(t *testing.T) {
	var prompt string
	reply := `{"overview": "Device under memory pressure.", "findings": [{"id": 1, "analysis": "Main thread stuck in a binder call."}, {"id": 99, "analysis": "unknown id is dropped"}]}`
	srv := chatServer(t, reply, &prompt)
	defer srv.Close()

	client := NewClient([]Endpoint{{URL: srv.URL, Model: "test-model"}}, 5*time.Second, quietLogger())
	res := sampleResult()

	if err := New(client, 0).Enrich(context.Background(), res); err != nil {
		t.Fatal(err)
	}

	if res.DeepAnalysisOverview != "Device under memory pressure." {
		t.Errorf("overview = %q", res.DeepAnalysisOverview)
	}
	if res.Insights[0].DeepAnalysis != "Main thread stuck in a binder call." {
		t.Errorf("deep analysis = %q", res.Insights[0].DeepAnalysis)
	}
	if res.Insights[1].DeepAnalysis != "" || res.Insights[2].DeepAnalysis != "" {
		t.Error("unmatched cards must stay untouched")
	}

	// The prompt carries device context and the selected findings, but not
	// the info-severity card.
	if !strings.Contains(prompt, "Pixel 6 Pro") || !strings.Contains(prompt, "[id=1] ANR in com.example.app") {
		t.Errorf("prompt = %q", prompt)
	}
	if strings.Contains(prompt, "SELinux denial") {
		t.Errorf("info card leaked into prompt: %q", prompt)
	}
}

func TestEnrichFallsBackWhenEndpointDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := chatServer(t, `{"overview": "ok", "findings": []}`, nil)
	defer up.Close()

	client := NewClient([]Endpoint{
		{URL: down.URL, Model: "primary"},
		{URL: up.URL, Model: "fallback"},
	}, 5*time.Second, quietLogger())

	res := sampleResult()
	if err := New(client, 0).Enrich(context.Background(), res); err != nil {
		t.Fatal(err)
	}
	if res.DeepAnalysisOverview != "ok" {
		t.Errorf("overview = %q", res.DeepAnalysisOverview)
	}
}

func TestEnrichAllEndpointsDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	client := NewClient([]Endpoint{{URL: down.URL}, {URL: down.URL}}, 5*time.Second, quietLogger())
	err := New(client, 0).Enrich(context.Background(), sampleResult())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestEnrichAuthErrorDoesNotFallBack(t *testing.T) {
	calls := 0
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()

	client := NewClient([]Endpoint{{URL: bad.URL}, {URL: bad.URL}}, 5*time.Second, quietLogger())
	err := New(client, 0).Enrich(context.Background(), sampleResult())
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want a non-availability failure", err)
	}
	if calls != 1 {
		t.Errorf("endpoint called %d times, want 1 (no fallback on auth errors)", calls)
	}
}

func TestEnrichNoActionableInsights(t *testing.T) {
	// Info-only results never hit the network.
	client := NewClient([]Endpoint{{URL: "http://127.0.0.1:1"}}, time.Second, quietLogger())
	res := &models.AnalysisResult{
		Insights: []*models.InsightCard{{ID: 1, Severity: models.SeverityInfo, Title: "SELinux denial"}},
	}
	if err := New(client, 0).Enrich(context.Background(), res); err != nil {
		t.Fatal(err)
	}
}

func TestEnrichCodeFencedReply(t *testing.T) {
	srv := chatServer(t, "```json\n{\"overview\": \"fenced\", \"findings\": []}\n```", nil)
	defer srv.Close()

	client := NewClient([]Endpoint{{URL: srv.URL}}, 5*time.Second, quietLogger())
	res := sampleResult()
	if err := New(client, 0).Enrich(context.Background(), res); err != nil {
		t.Fatal(err)
	}
	if res.DeepAnalysisOverview != "fenced" {
		t.Errorf("overview = %q", res.DeepAnalysisOverview)
	}
}

func TestSelectInsights(t *testing.T) {
	var cards []*models.InsightCard
	for i := 0; i < 15; i++ {
		sev := models.SeverityCritical
		if i%3 == 0 {
			sev = models.SeverityInfo
		}
		cards = append(cards, &models.InsightCard{ID: i + 1, Severity: sev})
	}

	got := selectInsights(cards, 5)
	if len(got) != 5 {
		t.Fatalf("got %d cards, want 5", len(got))
	}
	for _, c := range got {
		if c.Severity == models.SeverityInfo {
			t.Errorf("info card %d selected", c.ID)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPromptIncludesANRContext(t *testing.T) {
	res := sampleResult()
	res.ANRAnalyses = []*models.ANRTraceAnalysis{
		{
			ProcessName: "com.example.app",
			BlockedThread: &models.ThreadBlockAnalysis{
				Thread:        &models.ThreadInfo{Name: "main", State: models.ThreadStateBlocked},
				BlockReason:   models.BlockLockContention,
				Confidence:    models.ConfidenceHigh,
				BlockingChain: []string{"Worker"},
			},
			Deadlocks: models.DeadlockInfo{Detected: true, Cycles: []models.DeadlockCycle{{}}},
		},
	}

	prompt := buildPrompt(res, selectInsights(res.Insights, 10))
	for _, want := range []string{
		`thread "main" Blocked`,
		"reason=lock_contention",
		"blocked behind: Worker",
		"Deadlock detected across 1 thread cycle(s)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
