// Package tombstone extracts signal, registers and backtrace information
// from Android native crash dumps.
package tombstone

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

var (
	fingerprintRe = regexp.MustCompile(`Build fingerprint: '([^']+)'`)
	abiRe         = regexp.MustCompile(`ABI: '([^']+)'`)
	timestampRe   = regexp.MustCompile(`Timestamp: (.+)`)

	// "pid: 1234, tid: 1234, name: composer  >>> /vendor/bin/hw/composer <<<"
	pidLineRe = regexp.MustCompile(`pid: (\d+), tid: (\d+), name: (\S+)\s+>>> (.+?) <<<`)

	// "signal 11 (SIGSEGV), code 1 (SEGV_MAPERR), fault addr 0x0000000000000000"
	signalRe = regexp.MustCompile(`signal (\d+) \((\w+)\), code (-?\d+) \(([^)]+)\)(?:, fault addr (\S+))?`)

	abortRe = regexp.MustCompile(`Abort message: '(.*)'`)

	// "      #00 pc 00000000000846a8  /vendor/lib64/hw/gralloc.raven.so (allocate+120) (BuildId: abc)"
	frameRe = regexp.MustCompile(`^\s*#(\d+)\s+pc\s+([0-9a-fA-F]+)\s+(\S+)(.*)$`)

	// Register dumps are rows of name/value pairs. Older dumps have no
	// "registers:" header, so a line of this shape outside an active
	// backtrace section is treated as registers anyway.
	registerRowRe = regexp.MustCompile(`^\s+(?:[a-z][a-z0-9]{0,4}\s+[0-9a-fA-F]{8,16}\s*){2,}$`)
	registerPair  = regexp.MustCompile(`([a-z][a-z0-9]{0,4})\s+([0-9a-fA-F]{8,16})`)
)

// Parse extracts one tombstone. Total function: unrecognized content
// degrades to zero-valued fields.
func Parse(text string) *models.TombstoneAnalysis {
	t := &models.TombstoneAnalysis{}

	if m := fingerprintRe.FindStringSubmatch(text); m != nil {
		t.BuildFingerprint = m[1]
	}
	if m := abiRe.FindStringSubmatch(text); m != nil {
		t.ABI = m[1]
	}
	if m := timestampRe.FindStringSubmatch(text); m != nil {
		t.Timestamp = strings.TrimSpace(m[1])
	}
	if m := pidLineRe.FindStringSubmatch(text); m != nil {
		t.Pid, _ = strconv.Atoi(m[1])
		t.Tid, _ = strconv.Atoi(m[2])
		t.ThreadName = m[3]
		t.ProcessName = m[4]
	}
	if m := signalRe.FindStringSubmatch(text); m != nil {
		t.Signal, _ = strconv.Atoi(m[1])
		t.SignalName = m[2]
		t.SignalCode = m[4]
		if m[5] != "" {
			t.FaultAddr = m[5]
		}
	}
	if m := abortRe.FindStringSubmatch(text); m != nil {
		t.AbortMessage = m[1]
	}

	parseBody(text, t)

	if len(t.Backtrace) > 0 {
		first := t.Backtrace[0].Binary
		t.CrashedInBinary = first
		t.IsVendorCrash = strings.HasPrefix(first, "/vendor/") || strings.HasPrefix(first, "/odm/")
	}

	return t
}

// parseBody walks the dump as a small state machine toggled by the
// literal "backtrace:" and "registers:" markers.
func parseBody(text string, t *models.TombstoneAnalysis) {
	inBacktrace := false
	registers := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "backtrace:":
			inBacktrace = true
			continue
		case trimmed == "registers:":
			inBacktrace = false
			continue
		}

		if inBacktrace {
			if f, ok := parseFrame(line); ok {
				t.Backtrace = append(t.Backtrace, f)
				continue
			}
			if trimmed != "" {
				// A non-frame line ends the backtrace section.
				inBacktrace = false
			}
			continue
		}

		if registerRowRe.MatchString(line) {
			for _, m := range registerPair.FindAllStringSubmatch(line, -1) {
				registers[m[1]] = m[2]
			}
		}
	}

	if len(registers) > 0 {
		t.Registers = registers
	}
}

func parseFrame(line string) (models.BacktraceFrame, bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return models.BacktraceFrame{}, false
	}

	num, _ := strconv.Atoi(m[1])
	f := models.BacktraceFrame{
		Number: num,
		PC:     m[2],
		Binary: m[3],
	}

	rest := strings.TrimSpace(m[4])
	if i := strings.LastIndex(rest, "(BuildId: "); i >= 0 {
		f.BuildID = strings.TrimSuffix(rest[i+len("(BuildId: "):], ")")
		rest = strings.TrimSpace(rest[:i])
	}
	// "(func+offset)" splits at the last '+' so C++ symbols containing
	// parentheses or '+' survive.
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		inner := rest[1 : len(rest)-1]
		if i := strings.LastIndex(inner, "+"); i > 0 {
			f.Function = inner[:i]
			f.Offset = inner[i+1:]
		} else {
			f.Function = inner
		}
	}

	return f, true
}

// ParseBatch parses a set of tombstone files, isolating failures per
// file. Binary protobuf twins (".pb"), blank files and files yielding
// neither a nonzero signal nor any backtrace frame are skipped.
func ParseBatch(files map[string]string) []*models.TombstoneAnalysis {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*models.TombstoneAnalysis
	for _, name := range names {
		if strings.HasSuffix(name, ".pb") {
			continue
		}
		content := files[name]
		if strings.TrimSpace(content) == "" {
			continue
		}
		t := Parse(content)
		if t.Signal == 0 && len(t.Backtrace) == 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}
