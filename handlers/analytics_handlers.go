// api/handlers/analytics_handlers.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nottinghamcompanions/website-api/geoip"
	"github.com/nottinghamcompanions/website-api/models"
	"github.com/nottinghamcompanions/website-api/tracker"
)

const recentSessionsLimit = 20

// SessionReader is the read-only slice of the session store used for the
// admin reporting endpoints.
type SessionReader interface {
	Recent(ctx context.Context, limit int) ([]models.Session, error)
	CountSessions(ctx context.Context) (int64, error)
	CountSessionsSince(ctx context.Context, t time.Time) (int64, error)
	CountCookiesAccepted(ctx context.Context) (int64, error)
	CountCookiesDeclined(ctx context.Context) (int64, error)
	TopCountries(ctx context.Context, n int) ([]models.FieldCount, error)
	TopBrowsers(ctx context.Context, n int) ([]models.FieldCount, error)
}

// EventLog is the append/query surface of the raw beacon event log.
type EventLog interface {
	RecordEvent(ctx context.Context, event models.BeaconEvent) error
	PageViewCounts(ctx context.Context, interval string, start, end time.Time) ([]models.TimeCount, error)
	TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.PageCount, error)
}

type AnalyticsHandlers struct {
	Tracker  *tracker.Tracker
	Sessions SessionReader
	Events   EventLog
}

func NewAnalyticsHandlers(t *tracker.Tracker, sessions SessionReader, events EventLog) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		Tracker:  t,
		Sessions: sessions,
		Events:   events,
	}
}

// Track handles POST /api/analytics/track.
func (h *AnalyticsHandlers) Track(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding tracking beacon JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and page are required"})
		return
	}

	ipAddress := resolveClientIP(c)
	userAgent := c.Request.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	sessionID, err := h.Tracker.Track(ctx, req, ipAddress, userAgent)
	if err != nil {
		log.Printf("Analytics tracking error for session %q: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track analytics"})
		return
	}

	h.recordBeacon(ctx, req, ipAddress, userAgent)

	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sessionID})
}

// recordBeacon appends the raw event to ClickHouse. Best effort: the session
// row is already persisted, so a failed append only costs chart history.
func (h *AnalyticsHandlers) recordBeacon(ctx context.Context, req models.TrackRequest, ipAddress, userAgent string) {
	eventType := models.EventTypePageView
	if req.IsSessionEnd() {
		eventType = models.EventTypeSessionEnd
	}

	event := models.BeaconEvent{
		EventID:   uuid.New().String(),
		SessionID: req.SessionID,
		EventType: eventType,
		Page:      req.Page,
		Referrer:  req.Referrer,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		Timestamp: time.Now().UTC(),
	}

	if err := h.Events.RecordEvent(ctx, event); err != nil {
		log.Printf("Error appending beacon to event log (session %q): %v", req.SessionID, err)
	}
}

// Recent handles GET /api/analytics/recent: the 20 most recently active
// sessions, newest first.
func (h *AnalyticsHandlers) Recent(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sessions, err := h.Sessions.Recent(ctx, recentSessionsLimit)
	if err != nil {
		log.Printf("Error fetching recent sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": sessions})
}

// Summary handles GET /api/analytics/summary.
func (h *AnalyticsHandlers) Summary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	summary, err := h.buildSummary(ctx)
	if err != nil {
		log.Printf("Error building analytics summary: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

func (h *AnalyticsHandlers) buildSummary(ctx context.Context) (*models.Summary, error) {
	totalUsers, err := h.Sessions.CountSessions(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayUsers, err := h.Sessions.CountSessionsSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}

	accepted, err := h.Sessions.CountCookiesAccepted(ctx)
	if err != nil {
		return nil, err
	}
	declined, err := h.Sessions.CountCookiesDeclined(ctx)
	if err != nil {
		return nil, err
	}

	topCountries, err := h.Sessions.TopCountries(ctx, 5)
	if err != nil {
		return nil, err
	}
	topBrowsers, err := h.Sessions.TopBrowsers(ctx, 5)
	if err != nil {
		return nil, err
	}
	if topCountries == nil {
		topCountries = []models.FieldCount{}
	}
	if topBrowsers == nil {
		topBrowsers = []models.FieldCount{}
	}

	return &models.Summary{
		TotalUsers:      totalUsers,
		TodayUsers:      todayUsers,
		CookiesAccepted: accepted,
		CookiesDeclined: declined,
		TopCountries:    topCountries,
		TopBrowsers:     topBrowsers,
	}, nil
}

// PageViewStats handles GET /api/analytics/stats/page-views.
func (h *AnalyticsHandlers) PageViewStats(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}

	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Events.PageViewCounts(ctx, interval, start, end)
	if err != nil {
		log.Printf("Error getting page view counts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve page view statistics"})
		return
	}
	if results == nil {
		results = []models.TimeCount{}
	}

	c.JSON(http.StatusOK, results)
}

// TopPages handles GET /api/analytics/stats/top-pages.
func (h *AnalyticsHandlers) TopPages(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsedLimit, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsedLimit == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsedLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Events.TopPages(ctx, start, end, limit)
	if err != nil {
		log.Printf("Error getting top pages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top page statistics"})
		return
	}
	if results == nil {
		results = []models.PageCount{}
	}

	c.JSON(http.StatusOK, results)
}

// parseTimeRange reads optional RFC3339 start/end query parameters,
// defaulting to the last 7 days. On a malformed value it writes the 400
// response itself and returns ok=false.
func parseTimeRange(c *gin.Context) (start, end time.Time, ok bool) {
	var err error

	if startParam := c.Query("start"); startParam != "" {
		start, err = time.Parse(time.RFC3339, startParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
	} else {
		start = time.Now().UTC().Add(-7 * 24 * time.Hour)
	}

	if endParam := c.Query("end"); endParam != "" {
		end, err = time.Parse(time.RFC3339, endParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
	} else {
		end = time.Now().UTC()
	}

	return start, end, true
}

// resolveClientIP picks the direct connection IP first, then the forwarded
// header, then the unknown sentinel.
func resolveClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return geoip.UnknownIP
}
