// api/models/event.go
package models

import "time"

// Beacon event types recorded in the raw event log.
const (
	EventTypePageView   = "page_view"
	EventTypeSessionEnd = "session_end"
)

// BeaconEvent is one raw tracking beacon as appended to the ClickHouse
// event log. Sessions in Postgres are the source of truth; this log only
// feeds the time-series dashboards.
type BeaconEvent struct {
	EventID   string    `json:"eventId"`
	SessionID string    `json:"sessionId"`
	EventType string    `json:"eventType"`
	Page      string    `json:"page"`
	Referrer  string    `json:"referrer"`
	UserAgent string    `json:"userAgent"`
	IPAddress string    `json:"ipAddress"`
	Timestamp time.Time `json:"timestamp"`
}

// TimeCount is one time bucket of an over-time aggregation.
type TimeCount struct {
	Time  time.Time `json:"time"`
	Count uint64    `json:"count"`
}

// PageCount is one page path with its view count.
type PageCount struct {
	Page  string `json:"page"`
	Count uint64 `json:"count"`
}
