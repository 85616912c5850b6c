package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nottinghamcompanions/website-api/models"
	"github.com/nottinghamcompanions/website-api/tracker"
)

type fakeSessionStore struct {
	sessions map[string]*models.Session

	recent       []models.Session
	total        int64
	today        int64
	accepted     int64
	declined     int64
	topCountries []models.FieldCount
	topBrowsers  []models.FieldCount

	readErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionStore) FindBySessionID(ctx context.Context, id string) (*models.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (f *fakeSessionStore) Insert(ctx context.Context, sess *models.Session) error {
	cp := *sess
	f.sessions[sess.SessionID] = &cp
	return nil
}

func (f *fakeSessionStore) Update(ctx context.Context, sess *models.Session) error {
	cp := *sess
	f.sessions[sess.SessionID] = &cp
	return nil
}

func (f *fakeSessionStore) Recent(ctx context.Context, limit int) ([]models.Session, error) {
	return f.recent, f.readErr
}

func (f *fakeSessionStore) CountSessions(ctx context.Context) (int64, error) {
	return f.total, f.readErr
}

func (f *fakeSessionStore) CountSessionsSince(ctx context.Context, t time.Time) (int64, error) {
	return f.today, f.readErr
}

func (f *fakeSessionStore) CountCookiesAccepted(ctx context.Context) (int64, error) {
	return f.accepted, f.readErr
}

func (f *fakeSessionStore) CountCookiesDeclined(ctx context.Context) (int64, error) {
	return f.declined, f.readErr
}

func (f *fakeSessionStore) TopCountries(ctx context.Context, n int) ([]models.FieldCount, error) {
	return f.topCountries, f.readErr
}

func (f *fakeSessionStore) TopBrowsers(ctx context.Context, n int) ([]models.FieldCount, error) {
	return f.topBrowsers, f.readErr
}

type fakeEventLog struct {
	recorded  []models.BeaconEvent
	recordErr error
}

func (f *fakeEventLog) RecordEvent(ctx context.Context, event models.BeaconEvent) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, event)
	return nil
}

func (f *fakeEventLog) PageViewCounts(ctx context.Context, interval string, start, end time.Time) ([]models.TimeCount, error) {
	return []models.TimeCount{{Time: start, Count: 3}}, nil
}

func (f *fakeEventLog) TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.PageCount, error) {
	return []models.PageCount{{Page: "/", Count: 7}}, nil
}

type stubGeo struct{}

func (stubGeo) Lookup(ctx context.Context, ip string) models.GeoLocation {
	return models.GeoLocation{Country: "Unknown", Region: "Unknown", City: "Unknown"}
}

func newAnalyticsRouter(st *fakeSessionStore, events *fakeEventLog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAnalyticsHandlers(tracker.New(st, stubGeo{}), st, events)

	r := gin.New()
	r.POST("/api/analytics/track", h.Track)
	r.GET("/api/analytics/recent", h.Recent)
	r.GET("/api/analytics/summary", h.Summary)
	r.GET("/api/analytics/stats/page-views", h.PageViewStats)
	r.GET("/api/analytics/stats/top-pages", h.TopPages)
	return r
}

func postJSON(r http.Handler, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/118.0.0.0 Safari/537.36")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTrackEndpoint(t *testing.T) {
	st := newFakeSessionStore()
	events := &fakeEventLog{}
	r := newAnalyticsRouter(st, events)

	w := postJSON(r, "/api/analytics/track", `{"sessionId":"s1","page":"/"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "s1", resp["sessionId"])

	require.Contains(t, st.sessions, "s1")
	assert.Equal(t, int64(1), st.sessions["s1"].PageViews)

	require.Len(t, events.recorded, 1)
	assert.Equal(t, models.EventTypePageView, events.recorded[0].EventType)
	assert.Equal(t, "s1", events.recorded[0].SessionID)
	assert.NotEmpty(t, events.recorded[0].EventID)
}

func TestTrackEndpointTwoBeaconsOneSession(t *testing.T) {
	st := newFakeSessionStore()
	r := newAnalyticsRouter(st, &fakeEventLog{})

	w := postJSON(r, "/api/analytics/track", `{"sessionId":"s1","page":"/"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = postJSON(r, "/api/analytics/track", `{"sessionId":"s1","page":"/about"}`)
	require.Equal(t, http.StatusOK, w.Code)

	sess := st.sessions["s1"]
	require.NotNil(t, sess)
	assert.Equal(t, int64(2), sess.PageViews)
	assert.Equal(t, "/about", sess.CurrentPage)
	assert.False(t, sess.BounceRate)
}

func TestTrackEndpointValidation(t *testing.T) {
	r := newAnalyticsRouter(newFakeSessionStore(), &fakeEventLog{})

	for _, body := range []string{
		`{}`,
		`{"page":"/"}`,
		`{"sessionId":"s1"}`,
		`not json`,
	} {
		w := postJSON(r, "/api/analytics/track", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestTrackEndpointEventLogFailureIsNotFatal(t *testing.T) {
	st := newFakeSessionStore()
	events := &fakeEventLog{recordErr: errors.New("clickhouse down")}
	r := newAnalyticsRouter(st, events)

	w := postJSON(r, "/api/analytics/track", `{"sessionId":"s1","page":"/"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, st.sessions, "s1")
}

func TestRecentEndpoint(t *testing.T) {
	st := newFakeSessionStore()
	st.recent = []models.Session{
		{SessionID: "s2", CurrentPage: "/about"},
		{SessionID: "s1", CurrentPage: "/"},
	}
	r := newAnalyticsRouter(st, &fakeEventLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/recent", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Users   []models.Session `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, "s2", resp.Users[0].SessionID)
}

func TestSummaryEndpoint(t *testing.T) {
	st := newFakeSessionStore()
	st.total = 3
	st.today = 2
	st.accepted = 1
	st.topCountries = []models.FieldCount{{ID: "UK", Count: 2}, {ID: "US", Count: 1}}
	st.topBrowsers = []models.FieldCount{{ID: "Chrome", Count: 3}}
	r := newAnalyticsRouter(st, &fakeEventLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool           `json:"success"`
		Summary models.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(3), resp.Summary.TotalUsers)
	assert.Equal(t, int64(2), resp.Summary.TodayUsers)
	assert.Equal(t, int64(1), resp.Summary.CookiesAccepted)
	assert.Equal(t, int64(0), resp.Summary.CookiesDeclined)
	require.Len(t, resp.Summary.TopCountries, 2)
	assert.Equal(t, models.FieldCount{ID: "UK", Count: 2}, resp.Summary.TopCountries[0])
	assert.Equal(t, models.FieldCount{ID: "US", Count: 1}, resp.Summary.TopCountries[1])
}

func TestSummaryEndpointStoreFailure(t *testing.T) {
	st := newFakeSessionStore()
	st.readErr = errors.New("connection refused")
	r := newAnalyticsRouter(st, &fakeEventLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPageViewStatsRequiresInterval(t *testing.T) {
	r := newAnalyticsRouter(newFakeSessionStore(), &fakeEventLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/stats/page-views", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/analytics/stats/page-views?interval=Day", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTopPagesRejectsBadLimit(t *testing.T) {
	r := newAnalyticsRouter(newFakeSessionStore(), &fakeEventLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/stats/top-pages?limit=0", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
