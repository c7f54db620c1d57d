package transport

import "strings"

// InstanceAllowed checks the running instance's own base URL against the
// comma-separated allow-list. Empty allow-list means every instance may
// send; staging copies restored from a production dump are the reason
// this guard exists.
func InstanceAllowed(baseURL, allowList string) bool {
	allowList = strings.TrimSpace(allowList)
	if allowList == "" {
		return true
	}

	own := normalizeURL(baseURL)
	for _, entry := range strings.Split(allowList, ",") {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		if normalizeURL(entry) == own {
			return true
		}
	}
	return false
}

func normalizeURL(u string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(u), "/")) + "/"
}
