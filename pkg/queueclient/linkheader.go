package queueclient

import (
	"regexp"
	"strings"
)

// linkPattern matches one RFC8288 candidate of the form <url>; rel="name".
// The parser is intentionally minimal: extension parameters and continuation
// across repeated headers are unsupported, and only the first rel token of a
// candidate is considered.
var linkPattern = regexp.MustCompile(`<([^>]*)>\s*;\s*rel="([^"]+)"`)

// MonitorURL extracts the monitor/status URL from a raw Link header value.
// Candidates are comma-separated; ones that fail to match are skipped rather
// than failing the whole header. The first rel="monitor" URL wins, else the
// first rel="status" URL, else the empty string.
func MonitorURL(header string) string {
	if header == "" {
		return ""
	}

	var statusURL string
	for _, candidate := range strings.Split(header, ",") {
		m := linkPattern.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		rel := strings.Fields(m[2])
		if len(rel) == 0 {
			continue
		}
		switch rel[0] {
		case "monitor":
			return m[1]
		case "status":
			if statusURL == "" {
				statusURL = m[1]
			}
		}
	}
	return statusURL
}
