// Package anrtrace parses ANR thread dumps, builds the wait-for lock
// graph, detects deadlocks and classifies why the blocked thread is not
// making progress.
package anrtrace

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

var (
	pidHeaderRe = regexp.MustCompile(`(?m)^----- pid (\d+) at `)
	cmdLineRe   = regexp.MustCompile(`(?m)^Cmd ?line: (.+)`)
	subjectRe   = regexp.MustCompile(`(?m)^Subject: (.+)`)

	// Standard ART header: "main" prio=5 tid=1 Blocked
	javaHeaderRe = regexp.MustCompile(`^"([^"]+)"( daemon)? prio=(\d+) tid=(\d+) (\w+)`)

	// Native-only header, used when a thread has no Java frames:
	// "HwBinder:584_1" sysTid=652
	nativeHeaderRe = regexp.MustCompile(`^"([^"]+)" sysTid=(\d+)`)

	sysTidRe  = regexp.MustCompile(`\|\s*sysTid=(\d+)`)
	waitingRe = regexp.MustCompile(`- waiting (?:to lock|on) <(0x[0-9a-fA-F]+)> \(a ([^)]+)\)(?: held by thread (\d+))?`)
	lockedRe  = regexp.MustCompile(`- locked <(0x[0-9a-fA-F]+)> \(a ([^)]+)\)`)

	// at com.example.app.Db.query(Db.java:42)
	javaFrameRe = regexp.MustCompile(`^\s*at ([\w.$<>\[\]]+)\.([\w<>$]+)\((.*?)\)`)

	// native: #01 pc 00000000000d8b38  /system/lib64/libutils.so (android::Looper::pollInner(int)+184)
	nativeFrameRe = regexp.MustCompile(`^\s*(?:native: )?#\d+ pc [0-9a-fA-F]+\s+(\S+)(?:\s+\((.+)\))?`)

	// OAT-compiled Java code shows up as a native frame inside a .oat
	// file with a "Class.method+offset" symbol.
	oatSymbolRe = regexp.MustCompile(`^([\w.$]+\.[\w$<>]+)(?:\+\d+)?$`)
)

// Parse parses one ANR trace text into a full analysis. Total function:
// unrecognized dumps yield an analysis with empty thread lists.
func Parse(text string) *models.ANRTraceAnalysis {
	a := &models.ANRTraceAnalysis{}

	if m := pidHeaderRe.FindStringSubmatch(text); m != nil {
		a.Pid, _ = strconv.Atoi(m[1])
	}
	if m := cmdLineRe.FindStringSubmatch(text); m != nil {
		a.ProcessName = strings.TrimSpace(m[1])
	}
	if m := subjectRe.FindStringSubmatch(text); m != nil {
		a.Subject = strings.TrimSpace(m[1])
	}

	a.Threads = parseThreads(text)
	a.LockGraph = BuildLockGraph(a.Threads)
	a.Deadlocks = DetectDeadlocks(a.Threads, a.LockGraph)
	a.BinderThreads = AnalyzeBinderPool(a.Threads)

	resolveAndClassify(a)
	return a
}

// threadBuilder accumulates one thread section until it is finalized into
// an immutable ThreadInfo on the next header or blank line.
type threadBuilder struct {
	info  models.ThreadInfo
	lines []string
}

func (b *threadBuilder) finish() models.ThreadInfo {
	b.info.Raw = strings.Join(b.lines, "\n")
	return b.info
}

func parseThreads(text string) []models.ThreadInfo {
	var threads []models.ThreadInfo
	var cur *threadBuilder

	flush := func() {
		if cur != nil {
			threads = append(threads, cur.finish())
			cur = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if m := javaHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			prio, _ := strconv.Atoi(m[3])
			tid, _ := strconv.Atoi(m[4])
			cur = &threadBuilder{
				info: models.ThreadInfo{
					Name:     m[1],
					Daemon:   m[2] != "",
					Priority: prio,
					Tid:      tid,
					State:    normalizeState(m[5]),
				},
				lines: []string{line},
			}
			continue
		}
		if m := nativeHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			sysTid, _ := strconv.Atoi(m[2])
			cur = &threadBuilder{
				info: models.ThreadInfo{
					Name: m[1],
					// Native-only dumps carry no Java tid; the kernel
					// tid stands in to keep tids unique in the trace.
					Tid:    sysTid,
					SysTid: sysTid,
					State:  models.ThreadStateNative,
				},
				lines: []string{line},
			}
			continue
		}

		if cur == nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		cur.lines = append(cur.lines, line)
		parseThreadLine(line, &cur.info)
	}
	flush()

	return threads
}

func parseThreadLine(line string, info *models.ThreadInfo) {
	if m := sysTidRe.FindStringSubmatch(line); m != nil {
		info.SysTid, _ = strconv.Atoi(m[1])
		return
	}
	if m := waitingRe.FindStringSubmatch(line); m != nil {
		lock := &models.LockInfo{Address: m[1], ClassName: m[2]}
		if m[3] != "" {
			lock.HeldByTid, _ = strconv.Atoi(m[3])
		}
		info.WaitingOnLock = lock
		return
	}
	if m := lockedRe.FindStringSubmatch(line); m != nil {
		info.HeldLocks = append(info.HeldLocks, models.LockInfo{Address: m[1], ClassName: m[2]})
		return
	}
	if f, ok := parseStackLine(line); ok {
		info.StackFrames = append(info.StackFrames, f)
	}
}

func parseStackLine(line string) (models.StackFrame, bool) {
	if m := javaFrameRe.FindStringSubmatch(line); m != nil {
		return models.StackFrame{
			Kind:   models.FrameJava,
			Symbol: m[1] + "." + m[2],
			Source: m[3],
			Raw:    strings.TrimSpace(line),
		}, true
	}
	if m := nativeFrameRe.FindStringSubmatch(line); m != nil {
		f := models.StackFrame{
			Kind:   models.FrameNative,
			Symbol: m[2],
			Source: m[1],
			Raw:    strings.TrimSpace(line),
		}
		if f.Symbol == "" {
			f.Symbol = m[1]
		}
		// Re-tag OAT-compiled Java frames so classification sees them
		// as Java code.
		if strings.HasSuffix(m[1], ".oat") {
			if sm := oatSymbolRe.FindStringSubmatch(m[2]); sm != nil {
				f.Kind = models.FrameJava
				f.Symbol = sm[1]
			}
		}
		return f, true
	}
	return models.StackFrame{}, false
}

func normalizeState(s string) models.ThreadState {
	switch s {
	case "Runnable", "R":
		return models.ThreadStateRunnable
	case "Blocked", "B":
		return models.ThreadStateBlocked
	case "Waiting", "WaitingPerformingGc", "WaitingForGcToComplete":
		return models.ThreadStateWaiting
	case "TimedWaiting":
		return models.ThreadStateTimedWaiting
	case "Sleeping":
		return models.ThreadStateSleeping
	case "Native":
		return models.ThreadStateNative
	case "Suspended":
		return models.ThreadStateSuspended
	default:
		return models.ThreadState(s)
	}
}

// ParseBatch parses a set of ANR trace files, isolating failures per
// file: traces producing no threads at all are dropped.
func ParseBatch(files map[string]string) []*models.ANRTraceAnalysis {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*models.ANRTraceAnalysis
	for _, name := range names {
		content := files[name]
		if strings.TrimSpace(content) == "" {
			continue
		}
		a := Parse(content)
		if len(a.Threads) == 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}
