package kernel

import (
	"fmt"
	"strings"
)

// GenerateSELinuxAllowRule synthesizes a policy allow rule from the
// details of an selinux_denial event:
//
//	allow <source type> <target type>:<class> { <permissions> };
//
// The type is the third colon-separated field of a full context string
// ("user:role:type:level"). Returns false when scontext, tcontext or
// permission is missing, or when a context has fewer than three fields.
func GenerateSELinuxAllowRule(details map[string]string) (string, bool) {
	scontext := details["scontext"]
	tcontext := details["tcontext"]
	tclass := details["tclass"]
	permission := strings.TrimSpace(details["permission"])

	if scontext == "" || tcontext == "" || permission == "" {
		return "", false
	}

	srcType, ok := contextType(scontext)
	if !ok {
		return "", false
	}
	tgtType, ok := contextType(tcontext)
	if !ok {
		return "", false
	}

	return fmt.Sprintf("allow %s %s:%s { %s };", srcType, tgtType, tclass, permission), true
}

func contextType(ctx string) (string, bool) {
	fields := strings.Split(ctx, ":")
	if len(fields) < 3 {
		return "", false
	}
	return fields[2], true
}
