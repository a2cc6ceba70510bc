package logcat

import (
	"strings"
	"testing"

	"github.com/nordlys/bugsight/pkg/models"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantOK  bool
		wantPid int
		wantTid int
		wantLvl string
		wantTag string
		wantMsg string
	}{
		{
			name:    "threadtime format",
			line:    "03-15 10:23:45.123  1234  5678 E ActivityManager: ANR in com.example.app",
			wantOK:  true,
			wantPid: 1234,
			wantTid: 5678,
			wantLvl: "E",
			wantTag: "ActivityManager",
			wantMsg: "ANR in com.example.app",
		},
		{
			name:    "uid column format",
			line:    "03-15 10:23:45.123  1000  1234  5678 W Looper: Slow dispatch took 420ms",
			wantOK:  true,
			wantPid: 1234,
			wantTid: 5678,
			wantLvl: "W",
			wantTag: "Looper",
			wantMsg: "Slow dispatch took 420ms",
		},
		{
			name:    "empty message after colon",
			line:    "03-15 10:23:45.123  1234  5678 I chatty:",
			wantOK:  true,
			wantPid: 1234,
			wantTid: 5678,
			wantLvl: "I",
			wantTag: "chatty",
			wantMsg: "",
		},
		{
			name:   "garbage line",
			line:   "--------- beginning of main",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := parseLine(tt.line, 1)
			if ok != tt.wantOK {
				t.Fatalf("parseLine() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if e.Pid != tt.wantPid || e.Tid != tt.wantTid {
				t.Errorf("pid/tid = %d/%d, want %d/%d", e.Pid, e.Tid, tt.wantPid, tt.wantTid)
			}
			if e.Level != tt.wantLvl {
				t.Errorf("level = %q, want %q", e.Level, tt.wantLvl)
			}
			if e.Tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", e.Tag, tt.wantTag)
			}
			if e.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func TestParseContinuationLines(t *testing.T) {
	text := strings.Join([]string{
		"03-15 10:00:00.000  100  100 E AndroidRuntime: FATAL EXCEPTION: main",
		"\tat com.example.app.MainActivity.onCreate(MainActivity.java:42)",
		"\tat android.app.Activity.performCreate(Activity.java:8000)",
		"03-15 10:00:01.000  100  100 I ActivityManager: Process died",
	}, "\n")

	entries, parseErrors := Parse(text)
	if parseErrors != 0 {
		t.Fatalf("parseErrors = %d, want 0", parseErrors)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !strings.Contains(entries[0].Message, "MainActivity.onCreate") {
		t.Errorf("continuation lines not folded into message: %q", entries[0].Message)
	}
}

func TestParseCountsUnattributableLines(t *testing.T) {
	text := strings.Join([]string{
		"not a logcat line at all",
		"03-15 10:00:00.000  100  100 I Tag: hello",
	}, "\n")

	entries, parseErrors := Parse(text)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if parseErrors != 1 {
		t.Errorf("parseErrors = %d, want 1", parseErrors)
	}
}

func TestDetectAnomaliesANR(t *testing.T) {
	text := "03-15 10:23:45.123  1234  5678 E ActivityManager: ANR in com.example.app (com.example.app/.MainActivity)"
	entries, _ := Parse(text)

	anomalies := DetectAnomalies(entries)
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Type != models.AnomalyANR {
		t.Errorf("type = %q, want %q", a.Type, models.AnomalyANR)
	}
	if a.Severity != models.SeverityCritical {
		t.Errorf("severity = %q, want critical", a.Severity)
	}
	if a.ProcessName != "com.example.app" {
		t.Errorf("process = %q, want com.example.app", a.ProcessName)
	}
	if len(a.Entries) == 0 {
		t.Error("anomaly has no context entries")
	}
}

func TestDetectAnomaliesRulePriority(t *testing.T) {
	// A FATAL EXCEPTION line also mentioning OutOfMemoryError must
	// classify by rule order as fatal_exception, not oom.
	text := "03-15 10:00:00.000  200  200 E AndroidRuntime: FATAL EXCEPTION: main caused by java.lang.OutOfMemoryError"
	entries, _ := Parse(text)

	anomalies := DetectAnomalies(entries)
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	if anomalies[0].Type != models.AnomalyFatalException {
		t.Errorf("type = %q, want %q", anomalies[0].Type, models.AnomalyFatalException)
	}
}

func TestDetectAnomaliesMergesWithinWindow(t *testing.T) {
	text := strings.Join([]string{
		"03-15 10:00:00.000  300  300 F DEBUG: *** *** *** *** *** *** ***",
		"03-15 10:00:00.500  300  300 F DEBUG: *** Fatal signal 11 (SIGSEGV)",
		"03-15 10:00:05.000  300  300 F DEBUG: *** another crash far later",
	}, "\n")
	entries, _ := Parse(text)

	anomalies := DetectAnomalies(entries)
	if len(anomalies) != 2 {
		t.Fatalf("got %d anomalies, want 2 (first two merged, third separate)", len(anomalies))
	}
	if anomalies[0].Type != models.AnomalyNativeCrash {
		t.Errorf("type = %q, want %q", anomalies[0].Type, models.AnomalyNativeCrash)
	}
}

func TestDetectAnomaliesDoesNotMergeAcrossPids(t *testing.T) {
	text := strings.Join([]string{
		"03-15 10:00:00.000  300  300 F DEBUG: Fatal signal 11 (SIGSEGV)",
		"03-15 10:00:00.200  400  400 F DEBUG: Fatal signal 11 (SIGSEGV)",
	}, "\n")
	entries, _ := Parse(text)

	if got := len(DetectAnomalies(entries)); got != 2 {
		t.Fatalf("got %d anomalies, want 2", got)
	}
}

func TestClassifyTag(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"ActivityManager", "framework"},
		{"WindowManager", "framework"},
		{"vendor.qti.hardware.display", "vendor"},
		{"adreno_gpu", "vendor"},
		{"SensorsHalProxy", "vendor"},
		{"MyAppLogger", "app"},
	}
	for _, tt := range tests {
		if got := ClassifyTag(tt.tag); got != tt.want {
			t.Errorf("ClassifyTag(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestTagStats(t *testing.T) {
	var lines []string
	for i := 0; i < 3; i++ {
		lines = append(lines, "03-15 10:00:00.000  100  100 E Noisy: err")
	}
	lines = append(lines,
		"03-15 10:00:01.000  100  100 F Quiet: fatal",
		"03-15 10:00:02.000  100  100 I Quiet: info only counts E/F",
	)
	entries, _ := Parse(strings.Join(lines, "\n"))

	stats := TagStats(entries)
	if len(stats) != 2 {
		t.Fatalf("got %d tags, want 2", len(stats))
	}
	if stats[0].Tag != "Noisy" || stats[0].ErrorCount != 3 {
		t.Errorf("top tag = %+v, want Noisy with 3 errors", stats[0])
	}
	if stats[1].Tag != "Quiet" || stats[1].ErrorCount != 1 {
		t.Errorf("second tag = %+v, want Quiet with 1 error", stats[1])
	}
}
