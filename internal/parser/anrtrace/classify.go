package anrtrace

import (
	"regexp"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// Pattern substrings matched against stack frames, grouped per block
// cause. Checked in the classifier's strict priority order.
var (
	ioPatterns = []string{
		"android.database.sqlite.",
		"SQLiteDatabase",
		"SQLiteConnection",
		"SQLiteStatement",
		"SharedPreferencesImpl",
		"java.io.FileInputStream",
		"java.io.FileOutputStream",
		"java.io.FileReader",
		"java.io.FileWriter",
		"java.io.RandomAccessFile",
		"libcore.io.IoBridge",
		"ContentResolver.query",
		"ContentResolver.insert",
		"ContentResolver.update",
		"ContentResolver.delete",
		"AssetManager",
		"java.util.zip.ZipFile",
	}

	networkPatterns = []string{
		"HttpURLConnection",
		"com.android.okhttp",
		"okhttp3.",
		"java.net.Socket",
		"java.net.SocketInputStream",
		"javax.net.ssl.SSLSocket",
		"com.android.org.conscrypt",
		"com.android.volley",
		"retrofit2.",
		"java.net.InetAddress.getAllByName",
	}

	binderCallPatterns = []string{
		"android.os.BinderProxy.transact",
		"BinderProxy.transactNative",
		"IPCThreadState::transact",
		"IPCThreadState::waitForResponse",
	}

	renderingPatterns = []string{
		"android.view.View.draw",
		"android.view.View.measure",
		"android.view.View.layout",
		"android.view.ViewGroup.dispatchDraw",
		"ViewRootImpl.performTraversals",
		"ViewRootImpl.performDraw",
		"ViewRootImpl.performMeasure",
		"ViewRootImpl.performLayout",
	}

	contentProviderPatterns = []string{
		"ContentProvider$Transport.",
	}

	broadcastPatterns = []string{
		"BroadcastReceiver.onReceive",
		"ActivityThread.handleReceiver",
	}

	startupPatterns = []string{
		"ActivityThread.handleBindApplication",
		"Application.onCreate",
	}

	idlePatterns = []string{
		"MessageQueue.nativePollOnce",
		"MessageQueue.next",
		"nativePollOnce",
	}
)

// frameworkClassPrefixes mark Java frames that belong to the platform
// rather than the app under analysis.
var frameworkClassPrefixes = []string{
	"android.",
	"androidx.",
	"com.android.internal.",
	"com.android.server.",
	"java.",
	"javax.",
	"sun.",
	"dalvik.",
	"libcore.",
	"kotlin.",
	"kotlinx.",
}

var binderThreadNameRe = regexp.MustCompile(`^[Bb]inder[_:]`)

// AnalyzeBinderPool summarizes a process's binder thread pool. A binder
// thread is idle iff it sits in Native state polling inside
// nativePollOnce/IPCThreadState; the pool is exhausted iff it has threads
// and none of them is idle.
func AnalyzeBinderPool(threads []models.ThreadInfo) models.BinderPoolInfo {
	var pool models.BinderPoolInfo
	for i := range threads {
		t := &threads[i]
		if !binderThreadNameRe.MatchString(t.Name) {
			continue
		}
		pool.Total++
		if t.State == models.ThreadStateNative && (stackContains(t, "nativePollOnce") || stackContains(t, "IPCThreadState")) {
			pool.Idle++
		} else {
			pool.Busy++
		}
	}
	pool.Exhausted = pool.Total > 0 && pool.Idle == 0
	return pool
}

var subjectThreadRe = regexp.MustCompile(`thread \(([^)]+)\)`)

// resolveAndClassify picks the main and blocked threads and runs the
// block classifier over them.
func resolveAndClassify(a *models.ANRTraceAnalysis) {
	main := findMainThread(a.Threads, a.ProcessName)
	if main != nil {
		a.MainThread = classifyThread(main, a)
	}

	if a.Subject != "" {
		if m := subjectThreadRe.FindStringSubmatch(a.Subject); m != nil {
			a.BlockedThreadName = m[1]
			if main == nil || m[1] != main.Name {
				if blocked := findThreadByName(a.Threads, m[1]); blocked != nil {
					a.BlockedThread = classifyThread(blocked, a)
				}
			}
		}
	}
}

// findMainThread prefers a thread literally named "main", then tid 1,
// then (for native-only dumps) a thread named after the process.
func findMainThread(threads []models.ThreadInfo, processName string) *models.ThreadInfo {
	if t := findThreadByName(threads, "main"); t != nil {
		return t
	}
	for i := range threads {
		if threads[i].Tid == 1 {
			return &threads[i]
		}
	}
	if processName != "" {
		short := processName
		if i := strings.LastIndexAny(short, "/."); i >= 0 {
			short = short[i+1:]
		}
		for i := range threads {
			if threads[i].Name == processName || threads[i].Name == short {
				return &threads[i]
			}
		}
	}
	return nil
}

func findThreadByName(threads []models.ThreadInfo, name string) *models.ThreadInfo {
	for i := range threads {
		if threads[i].Name == name {
			return &threads[i]
		}
	}
	return nil
}

// classifyThread runs the strict priority-ordered decision list over one
// thread. The first matching rule wins; later rules are never consulted
// for tie-breaking.
func classifyThread(t *models.ThreadInfo, a *models.ANRTraceAnalysis) *models.ThreadBlockAnalysis {
	res := &models.ThreadBlockAnalysis{Thread: t}

	res.BlockReason = classifyBlockReason(t, a)
	res.Confidence = confidenceFor(res.BlockReason, len(t.StackFrames))
	res.BlockingChain = BlockingChain(t, a.Threads)

	if target, ok := ExtractBinderTarget(t); ok {
		res.BinderTarget = &target
	}

	switch res.BlockReason {
	case models.BlockIdleMainThread, models.BlockSystemOverloadCandidate, models.BlockUnknown:
		suspects := ScanSuspectedBinderTargets(t, a.Threads)
		if len(suspects) > 0 {
			res.SuspectedBinderTargets = suspects
			res.Confidence = models.ConfidenceMedium
		}
	}

	return res
}

func classifyBlockReason(t *models.ThreadInfo, a *models.ANRTraceAnalysis) models.BlockReason {
	// 1. Lock wait: deadlock beats plain contention.
	if t.State == models.ThreadStateBlocked && t.WaitingOnLock != nil {
		if isInDeadlockCycle(t.Tid, a.Deadlocks) {
			return models.BlockDeadlock
		}
		return models.BlockLockContention
	}

	switch {
	case stackMatchesAny(t, ioPatterns): // 2
		return models.BlockIOOnMainThread
	case stackMatchesAny(t, networkPatterns): // 3
		return models.BlockNetworkOnMainThread
	case stackMatchesAny(t, binderCallPatterns): // 4
		return models.BlockSlowBinderCall
	case stackMatchesAny(t, renderingPatterns): // 5
		return models.BlockExpensiveRendering
	case stackMatchesAny(t, contentProviderPatterns): // 6
		return models.BlockContentProviderSlow
	case stackMatchesAny(t, broadcastPatterns): // 7
		return models.BlockBroadcastBlocking
	case stackMatchesAny(t, startupPatterns): // 8
		return models.BlockSlowAppStartup
	case a.BinderThreads.Exhausted: // 9
		return models.BlockBinderPoolExhaustion
	case stackMatchesAny(t, idlePatterns): // 10, likely a false ANR
		return models.BlockIdleMainThread
	}

	if t.State == models.ThreadStateRunnable {
		if hasAppFrame(t) { // 11
			return models.BlockHeavyComputation
		}
		return models.BlockSystemOverloadCandidate // 12
	}
	if len(t.StackFrames) == 0 { // 13
		return models.BlockNoStackFrames
	}
	return models.BlockUnknown // 14
}

// confidenceFor is a fixed lookup from block reason to confidence.
func confidenceFor(reason models.BlockReason, stackDepth int) models.Confidence {
	switch reason {
	case models.BlockDeadlock,
		models.BlockLockContention,
		models.BlockNetworkOnMainThread,
		models.BlockIOOnMainThread,
		models.BlockSlowBinderCall,
		models.BlockBroadcastBlocking,
		models.BlockBinderPoolExhaustion,
		models.BlockContentProviderSlow:
		return models.ConfidenceHigh
	case models.BlockHeavyComputation,
		models.BlockExpensiveRendering,
		models.BlockSlowAppStartup:
		if stackDepth > 3 {
			return models.ConfidenceHigh
		}
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func stackContains(t *models.ThreadInfo, pattern string) bool {
	for i := range t.StackFrames {
		if strings.Contains(t.StackFrames[i].Raw, pattern) || strings.Contains(t.StackFrames[i].Symbol, pattern) {
			return true
		}
	}
	return false
}

func stackMatchesAny(t *models.ThreadInfo, patterns []string) bool {
	for _, p := range patterns {
		if stackContains(t, p) {
			return true
		}
	}
	return false
}

func isFrameworkClass(class string) bool {
	for _, p := range frameworkClassPrefixes {
		if strings.HasPrefix(class, p) {
			return true
		}
	}
	return false
}

func hasAppFrame(t *models.ThreadInfo) bool {
	for i := range t.StackFrames {
		f := &t.StackFrames[i]
		if f.Kind != models.FrameJava {
			continue
		}
		if !isFrameworkClass(f.Symbol) {
			return true
		}
	}
	return false
}
