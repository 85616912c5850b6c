// api/models/session.go
package models

import "time"

// Session is one visitor session, keyed by the client-generated session ID.
// Location, device, referrer, entry page and UTM fields are captured once at
// creation and never rewritten by later beacons.
type Session struct {
	SessionID string `json:"sessionId"`
	IPAddress string `json:"ipAddress"`

	// Location data (from IP geolocation at creation)
	Country   string   `json:"country"`
	Region    string   `json:"region"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// Browser and device information (from the first event's user agent)
	UserAgent       string `json:"userAgent"`
	Browser         string `json:"browser"`
	BrowserVersion  string `json:"browserVersion"`
	OperatingSystem string `json:"operatingSystem"`
	DeviceType      string `json:"deviceType"` // mobile, tablet, desktop

	// Page and session data
	Referrer    string `json:"referrer"`
	EntryPage   string `json:"entryPage"`
	CurrentPage string `json:"currentPage"`
	PageViews   int64  `json:"pageViews"`

	// Cookie consent
	CookiesAccepted bool `json:"cookiesAccepted"`
	CookiesDeclined bool `json:"cookiesDeclined"`

	// Timestamps
	FirstVisit time.Time  `json:"firstVisit"`
	LastVisit  time.Time  `json:"lastVisit"`
	SessionEnd *time.Time `json:"sessionEnd,omitempty"`

	// Additional analytics
	TimeOnSite int64 `json:"timeOnSite"` // seconds
	BounceRate bool  `json:"bounceRate"` // true while the session has a single page view

	// UTM parameters
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMTerm     string `json:"utmTerm,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`
}

// TrackRequest is the body of a tracking beacon. CookiesAccepted and
// CookiesDeclined are pointers so an absent field can be told apart from an
// explicit false: only non-nil values overwrite the stored flags.
type TrackRequest struct {
	SessionID       string     `json:"sessionId" binding:"required"`
	Page            string     `json:"page" binding:"required"`
	Referrer        string     `json:"referrer"`
	UTMSource       string     `json:"utmSource"`
	UTMMedium       string     `json:"utmMedium"`
	UTMCampaign     string     `json:"utmCampaign"`
	UTMTerm         string     `json:"utmTerm"`
	UTMContent      string     `json:"utmContent"`
	CookiesAccepted *bool      `json:"cookiesAccepted"`
	CookiesDeclined *bool      `json:"cookiesDeclined"`
	SessionEnd      *time.Time `json:"sessionEnd"`
	TimeOnSite      *int64     `json:"timeOnSite"`
}

// IsSessionEnd reports whether the beacon marks the end of a session rather
// than a page view.
func (r TrackRequest) IsSessionEnd() bool {
	return r.SessionEnd != nil
}

// DeviceInfo is the result of classifying a raw user-agent string.
type DeviceInfo struct {
	Browser         string `json:"browser"`
	BrowserVersion  string `json:"browserVersion"`
	OperatingSystem string `json:"operatingSystem"`
	DeviceType      string `json:"deviceType"`
}

// GeoLocation is an approximate location resolved from a client IP.
// Latitude and Longitude stay nil when the lookup fails or the IP is local.
type GeoLocation struct {
	Country   string   `json:"country"`
	Region    string   `json:"region"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// FieldCount is one row of a group-and-count aggregation, shaped to match
// the admin dashboard's expectations.
type FieldCount struct {
	ID    string `json:"_id"`
	Count int64  `json:"count"`
}

// Summary is the point-in-time statistics block served to the admin panel.
type Summary struct {
	TotalUsers      int64        `json:"totalUsers"`
	TodayUsers      int64        `json:"todayUsers"`
	CookiesAccepted int64        `json:"cookiesAccepted"`
	CookiesDeclined int64        `json:"cookiesDeclined"`
	TopCountries    []FieldCount `json:"topCountries"`
	TopBrowsers     []FieldCount `json:"topBrowsers"`
}
