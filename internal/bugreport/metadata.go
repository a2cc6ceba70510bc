package bugreport

import (
	"regexp"
	"strconv"

	"github.com/nordlys/bugsight/pkg/models"
)

var (
	// "Build fingerprint: 'google/raven/raven:14/AP1A.240505.004/11583682:user/release-keys'"
	fingerprintLineRe = regexp.MustCompile(`Build fingerprint: '([^']+)'`)

	// "Linux version 5.10.149-android13-4-..." from the KERNEL VERSION section.
	kernelVersionRe = regexp.MustCompile(`Linux version (\S+)`)
)

// extractMetadata fills DeviceMetadata from the dump header and the
// getprop section. Properties win over header lines when both exist.
func extractMetadata(mainText string, props map[string]string) models.DeviceMetadata {
	md := models.DeviceMetadata{
		AndroidVersion:   props["ro.build.version.release"],
		BuildFingerprint: props["ro.build.fingerprint"],
		Model:            props["ro.product.model"],
		Manufacturer:     props["ro.product.manufacturer"],
	}

	if v, ok := props["ro.build.version.sdk"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			md.SdkLevel = n
		}
	}

	// The header repeats the fingerprint even when getprop is truncated.
	if md.BuildFingerprint == "" {
		if m := fingerprintLineRe.FindStringSubmatch(header(mainText)); m != nil {
			md.BuildFingerprint = m[1]
		}
	}

	if m := kernelVersionRe.FindStringSubmatch(mainText); m != nil {
		md.KernelVersion = m[1]
	}

	return md
}

// header returns the first few KB of the dump, enough to cover the
// pre-section banner without scanning megabytes of logs.
func header(text string) string {
	const headerLen = 8192
	if len(text) > headerLen {
		return text[:headerLen]
	}
	return text
}
