package dumpsys

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// statusPriority orders duplicate rows for the same interface version;
// the liveliest report wins.
var statusPriority = map[models.HALStatusValue]int{
	models.HALAlive:         3,
	models.HALNonResponsive: 2,
	models.HALDeclared:      1,
	models.HALStatusNA:      0,
}

// bspVendorPrefixes are namespace segments identifying chipset/BSP-bundled
// HALs as opposed to device-maker (OEM) ones.
var bspVendorPrefixes = []string{
	"qti", "qualcomm", "qcom", "quic",
	"mtk", "mediatek",
	"sprd", "unisoc",
	"samsung", "slsi", "sec",
	"nxp",
	"google",
	"display", "graphics", "camera", "gnss", "media",
	"broadcom", "synaptics", "goodix", "fpc", "cirrus",
	"ims", "data", "bt", "wifi",
}

// AddBSPVendorPrefixes extends the BSP prefix list, typically from a
// site rules file. Not safe to call concurrently with ParseLshal.
func AddBSPVendorPrefixes(prefixes ...string) {
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			bspVendorPrefixes = append(bspVendorPrefixes, p)
		}
	}
}

// "vendor.acme.hardware.light@2.0::ILight/default"
var interfaceRe = regexp.MustCompile(`^([\w.]+)@(\d+(?:\.\d+)*)::([\w]+)(?:/(\S+))?$`)

var (
	truncatedRe = regexp.MustCompile(`(?i)(exit code|duration of lshal)`)
	numericRe   = regexp.MustCompile(`^\d+$`)
	threadsRe   = regexp.MustCompile(`^\d+/\d+$`)
)

// ParseLshal parses an lshal service table into HAL families, grouped by
// interface with the @version and /instance suffix stripped. A family
// always reports the status of its numerically highest version; the
// state of older versions is irrelevant to whether the current interface
// is reachable.
//
// manufacturer drives OEM-vs-BSP classification of vendor families.
func ParseLshal(text, manufacturer string) *models.HALStatus {
	type versionEntry struct {
		version string
		status  models.HALStatusValue
	}
	type familyAcc struct {
		name     string
		short    string
		isVendor bool
		versions map[string]models.HALStatusValue
	}

	families := make(map[string]*familyAcc)
	serviceCount := 0

	for _, line := range strings.Split(text, "\n") {
		svc, ok := parseRow(line)
		if !ok {
			continue
		}
		serviceCount++

		m := interfaceRe.FindStringSubmatch(svc.InterfaceName)
		if m == nil {
			continue
		}
		pkg, version, iface := m[1], m[2], m[3]
		key := pkg + "::" + iface

		acc, ok := families[key]
		if !ok {
			acc = &familyAcc{
				name:     key,
				short:    iface,
				isVendor: svc.IsVendor,
				versions: make(map[string]models.HALStatusValue),
			}
			families[key] = acc
		}

		// Duplicate rows for the same version come from multiple lshal
		// sources; keep the one with higher status priority.
		if prev, seen := acc.versions[version]; !seen || statusPriority[svc.Status] > statusPriority[prev] {
			acc.versions[version] = svc.Status
		}
	}

	result := &models.HALStatus{
		ServiceCount: serviceCount,
		Truncated:    truncatedRe.MatchString(text),
	}

	for _, acc := range families {
		var entries []versionEntry
		for v, s := range acc.versions {
			entries = append(entries, versionEntry{version: v, status: s})
		}
		sort.Slice(entries, func(i, j int) bool {
			return compareVersions(entries[i].version, entries[j].version) < 0
		})
		highest := entries[len(entries)-1]

		result.Families = append(result.Families, models.HALFamily{
			FamilyName:     acc.name,
			ShortName:      acc.short,
			HighestVersion: highest.version,
			HighestStatus:  highest.status,
			IsVendor:       acc.isVendor,
			IsOem:          acc.isVendor && isOemFamily(acc.name, manufacturer),
			VersionCount:   len(entries),
		})
	}

	sort.Slice(result.Families, func(i, j int) bool {
		return result.Families[i].FamilyName < result.Families[j].FamilyName
	})
	return result
}

// parseRow extracts one service row from a pipe- or space-delimited lshal
// table line. Non-table lines (headers, notes) return false.
func parseRow(line string) (models.HALService, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, "::") {
		return models.HALService{}, false
	}

	var fields []string
	if strings.Contains(line, "|") {
		for _, f := range strings.Split(line, "|") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	} else {
		fields = strings.Fields(line)
	}
	if len(fields) == 0 || !strings.Contains(fields[0], "::") {
		return models.HALService{}, false
	}

	svc := models.HALService{
		InterfaceName: fields[0],
		IsVendor:      strings.HasPrefix(fields[0], "vendor."),
		Status:        models.HALDeclared,
	}

	rest := fields[1:]
	if len(rest) > 0 && (rest[0] == "hwbinder" || rest[0] == "passthrough") {
		svc.Transport = rest[0]
		rest = rest[1:]
	}

	// Explicit status keyword wins; otherwise infer from the server PID
	// column: "N/A" means declared but not running, a number means alive.
	for _, f := range rest {
		switch strings.ToLower(f) {
		case "alive":
			svc.Status = models.HALAlive
			return svc, true
		case "non-responsive":
			svc.Status = models.HALNonResponsive
			return svc, true
		case "declared":
			svc.Status = models.HALDeclared
			return svc, true
		}
	}

	for _, f := range rest {
		if f == "32" || f == "64" || f == "32+64" || threadsRe.MatchString(f) {
			continue // arch and thread-usage columns
		}
		if strings.EqualFold(f, "N/A") {
			svc.Status = models.HALDeclared
			return svc, true
		}
		if numericRe.MatchString(f) {
			svc.Status = models.HALAlive
			return svc, true
		}
	}

	return svc, true
}

// isOemFamily reports whether a vendor.* family belongs to the device
// maker rather than the chipset BSP. Manufacturer match wins, then the
// known BSP prefix list excludes, and anything left defaults to OEM.
func isOemFamily(familyName, manufacturer string) bool {
	segments := strings.Split(strings.ToLower(familyName), ".")
	man := strings.ToLower(strings.TrimSpace(manufacturer))

	if man != "" {
		for _, seg := range segments {
			if seg == "" {
				continue
			}
			if strings.Contains(seg, man) || strings.Contains(man, seg) {
				return true
			}
		}
	}

	for _, seg := range segments {
		for _, prefix := range bspVendorPrefixes {
			if seg == prefix {
				return false
			}
		}
	}

	return true
}

func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
