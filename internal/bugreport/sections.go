// Package bugreport unpacks a bugreport.zip into the named text sections,
// ANR trace files, tombstone files and device metadata the analysis
// pipeline consumes.
package bugreport

import (
	"regexp"
	"strings"
)

// Section is one named block of the monolithic bugreport text.
type Section struct {
	Name    string
	Command string
	Content string
}

// "------ SYSTEM LOG (logcat -v threadtime -d *:v) ------"
var sectionHeaderRe = regexp.MustCompile(`^------ ([A-Z][A-Z0-9 /_.-]*?)(?: \((.*)\))? ------$`)

// "------ 1.234s was the duration of 'SYSTEM LOG' ------"
var sectionFooterRe = regexp.MustCompile(`^------ [\d.]+s was the duration of '`)

// SplitSections splits the monolithic dump on its section delimiters.
// Text before the first delimiter becomes the unnamed header section "".
func SplitSections(text string) []Section {
	var sections []Section
	cur := Section{}
	var body []string

	flush := func() {
		cur.Content = strings.Join(body, "\n")
		if cur.Name != "" || strings.TrimSpace(cur.Content) != "" {
			sections = append(sections, cur)
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = Section{Name: m[1], Command: m[2]}
			continue
		}
		if sectionFooterRe.MatchString(line) {
			continue
		}
		body = append(body, line)
	}
	flush()

	return sections
}

var serviceDumpRe = regexp.MustCompile(`(?m)^DUMP OF SERVICE (\S+?):?$`)

// ServiceDumps splits a combined dumpsys section into per-service blocks
// keyed by service name.
func ServiceDumps(text string) map[string]string {
	out := make(map[string]string)

	locs := serviceDumpRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		name := text[loc[2]:loc[3]]
		start := loc[1]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out[name] = text[start:end]
	}
	return out
}

// propRe matches getprop output: "[ro.product.model]: [Pixel 6 Pro]"
var propRe = regexp.MustCompile(`^\[([^\]]+)\]:\s*\[(.*)\]$`)

// ParseProps parses "getprop"-style output into a map. Unparseable lines
// are skipped.
func ParseProps(text string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		if m := propRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			props[m[1]] = m[2]
		}
	}
	return props
}
