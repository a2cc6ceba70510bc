package bugreport

import (
	"strings"
	"testing"
)

func TestSplitSections(t *testing.T) {
	text := strings.Join([]string{
		"== dumpstate: 2024-03-15 10:23:45",
		"Build fingerprint: 'google/raven/raven:14/XX/1:user/release-keys'",
		"------ SYSTEM LOG (logcat -v threadtime -d *:v) ------",
		"03-15 10:23:45.123  1000  1234  1234 I tag: hello",
		"------ 1.234s was the duration of 'SYSTEM LOG' ------",
		"------ KERNEL LOG (dmesg) ------",
		"<6>[   12.345678] init: starting service",
	}, "\n")

	sections := SplitSections(text)
	if len(sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(sections))
	}

	// Text before the first delimiter is the unnamed header section.
	if sections[0].Name != "" || !strings.Contains(sections[0].Content, "dumpstate") {
		t.Errorf("header section = %+v", sections[0])
	}

	log := sections[1]
	if log.Name != "SYSTEM LOG" || log.Command != "logcat -v threadtime -d *:v" {
		t.Errorf("section = %q (%q)", log.Name, log.Command)
	}
	if !strings.Contains(log.Content, "hello") {
		t.Errorf("content = %q", log.Content)
	}
	// Duration footers are not part of any section body.
	if strings.Contains(log.Content, "was the duration of") {
		t.Errorf("footer leaked into content: %q", log.Content)
	}

	if sections[2].Name != "KERNEL LOG" || sections[2].Command != "dmesg" {
		t.Errorf("section = %q (%q)", sections[2].Name, sections[2].Command)
	}
}

func TestSplitSectionsNoCommand(t *testing.T) {
	sections := SplitSections("------ SYSTEM PROPERTIES ------\n[ro.product.model]: [Pixel]")
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].Name != "SYSTEM PROPERTIES" || sections[0].Command != "" {
		t.Errorf("section = %+v", sections[0])
	}
}

func TestServiceDumps(t *testing.T) {
	text := strings.Join([]string{
		"DUMP OF SERVICE meminfo:",
		"Total RAM: 7,947,164K",
		"DUMP OF SERVICE cpuinfo:",
		"61% TOTAL: 45% user + 13% kernel + 3% iowait",
	}, "\n")

	dumps := ServiceDumps(text)
	if len(dumps) != 2 {
		t.Fatalf("got %d dumps, want 2", len(dumps))
	}
	if !strings.Contains(dumps["meminfo"], "Total RAM") {
		t.Errorf("meminfo dump = %q", dumps["meminfo"])
	}
	if strings.Contains(dumps["meminfo"], "TOTAL") {
		t.Errorf("meminfo dump bleeds into cpuinfo: %q", dumps["meminfo"])
	}
	if !strings.Contains(dumps["cpuinfo"], "61% TOTAL") {
		t.Errorf("cpuinfo dump = %q", dumps["cpuinfo"])
	}
}

func TestParseProps(t *testing.T) {
	text := strings.Join([]string{
		"[ro.product.model]: [Pixel 6 Pro]",
		"[ro.build.version.sdk]: [34]",
		"[persist.sys.empty]: []",
		"not a property line",
	}, "\n")

	props := ParseProps(text)
	if len(props) != 3 {
		t.Fatalf("got %d props, want 3", len(props))
	}
	if props["ro.product.model"] != "Pixel 6 Pro" {
		t.Errorf("model = %q", props["ro.product.model"])
	}
	if v, ok := props["persist.sys.empty"]; !ok || v != "" {
		t.Errorf("empty prop = %q, %v", v, ok)
	}
}
