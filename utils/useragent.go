// api/utils/useragent.go
package utils

import (
	"regexp"
	"strings"

	"github.com/nottinghamcompanions/website-api/models"
)

// Ordered first-match-wins. Chrome is checked before Edge on purpose:
// Chromium-based Edge user agents contain both "Chrome" and "Edg" tokens and
// the dashboard has always bucketed them under Chrome. Do not reorder
// without checking the admin panel's historical data first.
var browserMatchers = []struct {
	token   string
	name    string
	version *regexp.Regexp
}{
	{"chrome", "Chrome", regexp.MustCompile(`chrome/(\d+)`)},
	{"firefox", "Firefox", regexp.MustCompile(`firefox/(\d+)`)},
	{"safari", "Safari", regexp.MustCompile(`version/(\d+)`)},
	{"edge", "Edge", regexp.MustCompile(`edge/(\d+)`)},
}

var osMatchers = []struct {
	token string
	name  string
}{
	{"windows", "Windows"},
	{"mac", "macOS"},
	{"linux", "Linux"},
	{"android", "Android"},
	{"ios", "iOS"},
}

// ParseUserAgent classifies a raw user-agent string into browser, browser
// version, operating system and device type. It never fails: anything it
// cannot match comes back as "Unknown" (device type defaults to desktop).
func ParseUserAgent(userAgent string) models.DeviceInfo {
	ua := strings.ToLower(userAgent)

	info := models.DeviceInfo{
		Browser:         "Unknown",
		BrowserVersion:  "Unknown",
		OperatingSystem: "Unknown",
		DeviceType:      "desktop",
	}

	for _, m := range browserMatchers {
		if strings.Contains(ua, m.token) {
			info.Browser = m.name
			if match := m.version.FindStringSubmatch(ua); match != nil {
				info.BrowserVersion = match[1]
			}
			break
		}
	}

	for _, m := range osMatchers {
		if strings.Contains(ua, m.token) {
			info.OperatingSystem = m.name
			break
		}
	}

	if strings.Contains(ua, "mobile") {
		info.DeviceType = "mobile"
	} else if strings.Contains(ua, "tablet") {
		info.DeviceType = "tablet"
	}

	return info
}
