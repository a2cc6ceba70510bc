package logcat

import (
	"regexp"
	"sort"

	"github.com/nordlys/bugsight/pkg/models"
)

// maxTagStats bounds the tag statistics to the noisiest tags.
const maxTagStats = 20

// frameworkTags is the set of tags emitted by AOSP framework components.
var frameworkTags = map[string]struct{}{
	"ActivityManager":    {},
	"ActivityTaskManager": {},
	"AndroidRuntime":     {},
	"ART":                {},
	"Binder":             {},
	"BroadcastQueue":     {},
	"Choreographer":      {},
	"ConnectivityService": {},
	"DEBUG":              {},
	"InputDispatcher":    {},
	"InputReader":        {},
	"JobScheduler":       {},
	"Looper":             {},
	"NotificationService": {},
	"PackageManager":     {},
	"PowerManagerService": {},
	"StrictMode":         {},
	"SurfaceFlinger":     {},
	"System":             {},
	"SystemServer":       {},
	"SystemServiceManager": {},
	"Watchdog":           {},
	"WindowManager":      {},
	"Zygote":             {},
	"art":                {},
	"dalvikvm":           {},
	"libc":               {},
	"system_server":      {},
}

// vendorTagRe matches tags that clearly originate from vendor/BSP code.
var vendorTagRe = regexp.MustCompile(`(?i)^(vendor\.|qti|qcom|qualcomm|mtk|mediatek|sprd|unisoc|exynos|sec[_.]|samsung|mali|adreno|kgsl|sdm|camx|chi|nxp|goodix|synaptics|fpc)|hal|hidl`)

// ClassifyTag buckets a tag as "framework", "vendor" or "app".
// Exact framework membership is checked first so framework tags that
// happen to contain vendor keywords stay framework.
func ClassifyTag(tag string) string {
	if _, ok := frameworkTags[tag]; ok {
		return "framework"
	}
	if vendorTagRe.MatchString(tag) {
		return "vendor"
	}
	return "app"
}

// TagStats counts E/F level entries per tag and returns the top 20,
// sorted by count descending (ties broken by tag name for determinism).
func TagStats(entries []models.LogEntry) []models.TagStat {
	counts := make(map[string]int)
	for i := range entries {
		switch entries[i].Level {
		case "E", "F":
			counts[entries[i].Tag]++
		}
	}

	stats := make([]models.TagStat, 0, len(counts))
	for tag, n := range counts {
		stats = append(stats, models.TagStat{Tag: tag, ErrorCount: n, Origin: ClassifyTag(tag)})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ErrorCount != stats[j].ErrorCount {
			return stats[i].ErrorCount > stats[j].ErrorCount
		}
		return stats[i].Tag < stats[j].Tag
	})

	if len(stats) > maxTagStats {
		stats = stats[:maxTagStats]
	}
	return stats
}
