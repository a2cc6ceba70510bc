package anrtrace

import (
	"regexp"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

var (
	// vendor.acme.light.V2_0.ILight.getService / ILight.castFrom
	hidlGetServiceRe = regexp.MustCompile(`^([\w.]+\.(I\w+))\.(getService|castFrom)$`)

	// android.media.IAudioService$Stub.asInterface
	aidlStubRe = regexp.MustCompile(`^([\w.]+\.I\w+)\$Stub\.(asInterface|getService)$`)

	// android.hardware.IFoo$Stub$Proxy.someMethod
	stubProxyRe = regexp.MustCompile(`^([\w.]+\.I\w+)\$Stub\$Proxy\.(\w+)$`)

	// HIDL packages embedded in native library names or symbols:
	// android.hardware.camera.provider@2.4, BpHwCameraProvider, _hidl_...
	hidlNativeRe = regexp.MustCompile(`((?:android|vendor)[\w.]*\.[\w.]+@\d+(?:\.\d+)*)`)
	bpHwRe       = regexp.MustCompile(`BpHw\w+|_hidl_`)

	// /vendor/lib64/hw/something.so
	vendorLibRe = regexp.MustCompile(`^/(?:vendor|odm)/.*/([\w.@-]+\.so)$`)
)

// callerSkipPrefixes are classes skipped when looking for the frame that
// initiated a binder call.
var callerSkipPrefixes = []string{"android.os.", "android.hidl."}

// ExtractBinderTarget identifies the HAL/Binder interface a thread is
// calling into. Ordered fallbacks, first success wins:
//
//  1. HIDL getService/castFrom Java frame
//  2. AIDL I*$Stub.asInterface/getService frame
//  3. BinderProxy.transact with an I*$Stub$Proxy caller frame
//  4. native HAL library frame (HIDL package / BpHw / _hidl_)
//  5. vendor HAL shared-library path
//  6. first non-system Java frame as a generic fallback
//
// Returns false when nothing matched at all.
func ExtractBinderTarget(t *models.ThreadInfo) (models.BinderTarget, bool) {
	if target, ok := extractStructuredTarget(t); ok {
		return target, true
	}

	// 6. Generic fallback: the first app-owned Java frame.
	for i := range t.StackFrames {
		f := &t.StackFrames[i]
		if f.Kind != models.FrameJava || isFrameworkClass(f.Symbol) {
			continue
		}
		class, method := splitSymbol(f.Symbol)
		return models.BinderTarget{Interface: class, Method: method}, true
	}

	return models.BinderTarget{Interface: "Unknown"}, false
}

// extractStructuredTarget runs fallback steps 1-5, which identify a
// concrete interface rather than a generic guess.
func extractStructuredTarget(t *models.ThreadInfo) (models.BinderTarget, bool) {
	frames := t.StackFrames

	// 1. HIDL getService / castFrom.
	for i := range frames {
		if frames[i].Kind != models.FrameJava {
			continue
		}
		if m := hidlGetServiceRe.FindStringSubmatch(frames[i].Symbol); m != nil {
			return models.BinderTarget{
				Interface: m[1],
				Method:    m[3],
				Caller:    callerAfter(frames, i, m[1]),
			}, true
		}
	}

	// 2. AIDL stub resolution.
	for i := range frames {
		if frames[i].Kind != models.FrameJava {
			continue
		}
		if m := aidlStubRe.FindStringSubmatch(frames[i].Symbol); m != nil {
			return models.BinderTarget{
				Interface: m[1],
				Method:    m[2],
				Caller:    callerAfter(frames, i, m[1]),
			}, true
		}
	}

	// 3. An in-flight transaction: BinderProxy.transact with the proxy
	// class naming the interface.
	for i := range frames {
		if !strings.Contains(frames[i].Symbol, "BinderProxy.transact") {
			continue
		}
		for j := i + 1; j < len(frames); j++ {
			if m := stubProxyRe.FindStringSubmatch(frames[j].Symbol); m != nil {
				return models.BinderTarget{Interface: m[1], Method: m[2]}, true
			}
		}
		break
	}

	// 4. Native HAL frame.
	for i := range frames {
		if frames[i].Kind != models.FrameNative {
			continue
		}
		if m := hidlNativeRe.FindStringSubmatch(frames[i].Raw); m != nil {
			return models.BinderTarget{
				Interface: m[1],
				Caller:    firstAppJavaFrame(frames),
			}, true
		}
		if bpHwRe.MatchString(frames[i].Symbol) {
			return models.BinderTarget{
				Interface: frames[i].Symbol,
				Caller:    firstAppJavaFrame(frames),
			}, true
		}
	}

	// 5. Vendor HAL shared library.
	for i := range frames {
		if frames[i].Kind != models.FrameNative {
			continue
		}
		if m := vendorLibRe.FindStringSubmatch(frames[i].Source); m != nil {
			return models.BinderTarget{Interface: m[1]}, true
		}
	}

	return models.BinderTarget{}, false
}

// callerAfter finds the nearest frame below idx that is not android.os.*,
// android.hidl.* or the interface class itself.
func callerAfter(frames []models.StackFrame, idx int, iface string) string {
	for j := idx + 1; j < len(frames); j++ {
		if frames[j].Kind != models.FrameJava {
			continue
		}
		class, _ := splitSymbol(frames[j].Symbol)
		if class == iface {
			continue
		}
		if hasAnyPrefix(class, callerSkipPrefixes) {
			continue
		}
		return frames[j].Symbol
	}
	return ""
}

func firstAppJavaFrame(frames []models.StackFrame) string {
	for i := range frames {
		if frames[i].Kind == models.FrameJava && !isFrameworkClass(frames[i].Symbol) {
			return frames[i].Symbol
		}
	}
	return ""
}

// ScanSuspectedBinderTargets inspects every other thread that is not
// waiting or sleeping for binder-stuck signatures. Used when the primary
// thread's classification is inconclusive (idle/overload/unknown). Hits
// are deduplicated by interface+method.
func ScanSuspectedBinderTargets(primary *models.ThreadInfo, threads []models.ThreadInfo) []models.BinderTarget {
	seen := make(map[string]bool)
	var out []models.BinderTarget

	for i := range threads {
		t := &threads[i]
		if t.Tid == primary.Tid {
			continue
		}
		switch t.State {
		case models.ThreadStateWaiting, models.ThreadStateTimedWaiting, models.ThreadStateSleeping:
			continue
		}
		if !stackMatchesAny(t, binderCallPatterns) && !stackContains(t, "_hidl_") && !stackContains(t, "BpHw") {
			continue
		}

		target, ok := extractStructuredTarget(t)
		if !ok {
			continue
		}
		key := target.Interface + "#" + target.Method
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, target)
	}

	return out
}

func splitSymbol(symbol string) (class, method string) {
	if i := strings.LastIndex(symbol, "."); i > 0 {
		return symbol[:i], symbol[i+1:]
	}
	return symbol, ""
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
