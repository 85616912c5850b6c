package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nottinghamcompanions/website-api/models"
	"github.com/nottinghamcompanions/website-api/store"
)

type fakeStore struct {
	sessions map[string]*models.Session

	insertErr   error
	findErr     error
	updateErr   error
	insertCalls int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeStore) FindBySessionID(ctx context.Context, id string) (*models.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	sess, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (f *fakeStore) Insert(ctx context.Context, sess *models.Session) error {
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, exists := f.sessions[sess.SessionID]; exists {
		return store.ErrDuplicateSession
	}
	cp := *sess
	f.sessions[sess.SessionID] = &cp
	return nil
}

func (f *fakeStore) Update(ctx context.Context, sess *models.Session) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *sess
	f.sessions[sess.SessionID] = &cp
	return nil
}

type fakeGeo struct {
	location models.GeoLocation
	calls    int
}

func (f *fakeGeo) Lookup(ctx context.Context, ip string) models.GeoLocation {
	f.calls++
	return f.location
}

func f64(v float64) *float64 { return &v }

func newTestTracker(st *fakeStore, geo *fakeGeo, now time.Time) *Tracker {
	tr := New(st, geo)
	tr.now = func() time.Time { return now }
	return tr
}

func boolPtr(b bool) *bool { return &b }

func TestTrackCreatesSessionOnFirstEvent(t *testing.T) {
	st := newFakeStore()
	geo := &fakeGeo{location: models.GeoLocation{
		Country: "United Kingdom", Region: "England", City: "Nottingham",
		Latitude: f64(52.95), Longitude: f64(-1.15),
	}}
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tr := newTestTracker(st, geo, now)

	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/118.0.0.0 Safari/537.36"
	req := models.TrackRequest{
		SessionID:   "s1",
		Page:        "/",
		Referrer:    "https://google.com",
		UTMSource:   "newsletter",
		UTMCampaign: "spring",
	}

	id, err := tr.Track(context.Background(), req, "81.2.69.142", ua)
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	sess := st.sessions["s1"]
	require.NotNil(t, sess)
	assert.Equal(t, "81.2.69.142", sess.IPAddress)
	assert.Equal(t, "United Kingdom", sess.Country)
	assert.Equal(t, "Nottingham", sess.City)
	assert.Equal(t, "Chrome", sess.Browser)
	assert.Equal(t, "118", sess.BrowserVersion)
	assert.Equal(t, "Windows", sess.OperatingSystem)
	assert.Equal(t, "desktop", sess.DeviceType)
	assert.Equal(t, "/", sess.EntryPage)
	assert.Equal(t, "/", sess.CurrentPage)
	assert.Equal(t, int64(1), sess.PageViews)
	assert.True(t, sess.BounceRate)
	assert.Equal(t, "https://google.com", sess.Referrer)
	assert.Equal(t, "newsletter", sess.UTMSource)
	assert.Equal(t, "spring", sess.UTMCampaign)
	assert.Equal(t, now, sess.FirstVisit)
	assert.Equal(t, now, sess.LastVisit)
	assert.False(t, sess.CookiesAccepted)
	assert.False(t, sess.CookiesDeclined)
	assert.Equal(t, 1, geo.calls)
}

func TestTrackSecondEventUpdatesSession(t *testing.T) {
	st := newFakeStore()
	geo := &fakeGeo{location: models.GeoLocation{Country: "United Kingdom", Region: "England", City: "Nottingham"}}
	first := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tr := newTestTracker(st, geo, first)

	_, err := tr.Track(context.Background(), models.TrackRequest{SessionID: "s1", Page: "/"}, "81.2.69.142", "Chrome/118")
	require.NoError(t, err)

	second := first.Add(2 * time.Minute)
	tr.now = func() time.Time { return second }

	// A different user agent and IP on a later beacon must not rewrite the
	// creation-time fields.
	_, err = tr.Track(context.Background(), models.TrackRequest{SessionID: "s1", Page: "/about"}, "203.0.113.9", "Firefox/119")
	require.NoError(t, err)

	sess := st.sessions["s1"]
	assert.Equal(t, "/about", sess.CurrentPage)
	assert.Equal(t, "/", sess.EntryPage)
	assert.Equal(t, int64(2), sess.PageViews)
	assert.False(t, sess.BounceRate)
	assert.Equal(t, second, sess.LastVisit)
	assert.Equal(t, first, sess.FirstVisit)
	assert.Equal(t, "81.2.69.142", sess.IPAddress)
	assert.Equal(t, "Chrome", sess.Browser)
	assert.Equal(t, "United Kingdom", sess.Country)
	assert.Equal(t, 1, geo.calls, "enrichment only happens at creation")
}

func TestTrackPageViewsMatchEventCount(t *testing.T) {
	st := newFakeStore()
	tr := newTestTracker(st, &fakeGeo{}, time.Now())

	pages := []string{"/", "/about", "/services", "/contact", "/"}
	for _, page := range pages {
		_, err := tr.Track(context.Background(), models.TrackRequest{SessionID: "s1", Page: page}, "1.2.3.4", "chrome/100")
		require.NoError(t, err)
	}

	sess := st.sessions["s1"]
	assert.Equal(t, int64(len(pages)), sess.PageViews)
	assert.Equal(t, "/", sess.CurrentPage)
	assert.False(t, sess.BounceRate)
}

func TestTrackExplicitFalseOverwritesCookieChoice(t *testing.T) {
	st := newFakeStore()
	tr := newTestTracker(st, &fakeGeo{}, time.Now())
	ctx := context.Background()

	_, err := tr.Track(ctx, models.TrackRequest{
		SessionID: "s1", Page: "/", CookiesAccepted: boolPtr(true),
	}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)
	assert.True(t, st.sessions["s1"].CookiesAccepted)

	// Absent fields leave the stored flags alone.
	_, err = tr.Track(ctx, models.TrackRequest{SessionID: "s1", Page: "/about"}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)
	assert.True(t, st.sessions["s1"].CookiesAccepted)

	// An explicit false must still overwrite.
	_, err = tr.Track(ctx, models.TrackRequest{
		SessionID: "s1", Page: "/services", CookiesAccepted: boolPtr(false), CookiesDeclined: boolPtr(true),
	}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)
	assert.False(t, st.sessions["s1"].CookiesAccepted)
	assert.True(t, st.sessions["s1"].CookiesDeclined)
}

func TestTrackSessionEndEvent(t *testing.T) {
	st := newFakeStore()
	first := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tr := newTestTracker(st, &fakeGeo{}, first)
	ctx := context.Background()

	_, err := tr.Track(ctx, models.TrackRequest{SessionID: "s1", Page: "/"}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)
	_, err = tr.Track(ctx, models.TrackRequest{SessionID: "s1", Page: "/about"}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)

	endAt := first.Add(5 * time.Minute)
	elapsed := int64(300)
	later := first.Add(6 * time.Minute)
	tr.now = func() time.Time { return later }

	_, err = tr.Track(ctx, models.TrackRequest{
		SessionID: "s1", Page: "/about", SessionEnd: &endAt, TimeOnSite: &elapsed,
	}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)

	sess := st.sessions["s1"]
	assert.Equal(t, int64(2), sess.PageViews, "session-end beacons are not page views")
	assert.Equal(t, "/about", sess.CurrentPage)
	require.NotNil(t, sess.SessionEnd)
	assert.Equal(t, endAt, *sess.SessionEnd)
	assert.Equal(t, elapsed, sess.TimeOnSite)
	assert.Equal(t, later, sess.LastVisit)
}

// racingStore simulates losing the first-insert race: the initial lookup
// misses, the insert hits the unique constraint, the second lookup finds the
// competing writer's row.
type racingStore struct {
	*fakeStore
	existing *models.Session
	lookups  int
}

func (r *racingStore) FindBySessionID(ctx context.Context, id string) (*models.Session, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, nil
	}
	cp := *r.existing
	return &cp, nil
}

func (r *racingStore) Insert(ctx context.Context, sess *models.Session) error {
	return store.ErrDuplicateSession
}

func TestTrackDuplicateInsertRetriesAsUpdate(t *testing.T) {
	st := newFakeStore()
	rs := &racingStore{
		fakeStore: st,
		existing: &models.Session{
			SessionID: "s1", EntryPage: "/", CurrentPage: "/", PageViews: 1, BounceRate: true,
		},
	}
	tr := New(rs, &fakeGeo{})

	id, err := tr.Track(context.Background(), models.TrackRequest{SessionID: "s1", Page: "/about"}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
	assert.Equal(t, 2, rs.lookups)
	assert.Equal(t, 1, st.updateCalls)

	sess := st.sessions["s1"]
	require.NotNil(t, sess)
	assert.Equal(t, int64(2), sess.PageViews)
	assert.Equal(t, "/about", sess.CurrentPage)
	assert.False(t, sess.BounceRate)
}

func TestTrackStoreFailurePropagates(t *testing.T) {
	st := newFakeStore()
	st.findErr = errors.New("connection reset")
	tr := newTestTracker(st, &fakeGeo{}, time.Now())

	_, err := tr.Track(context.Background(), models.TrackRequest{SessionID: "s1", Page: "/"}, "1.2.3.4", "chrome/100")
	assert.Error(t, err)
}

func TestTrackCreationWithCookieChoice(t *testing.T) {
	st := newFakeStore()
	tr := newTestTracker(st, &fakeGeo{}, time.Now())

	_, err := tr.Track(context.Background(), models.TrackRequest{
		SessionID: "s1", Page: "/", CookiesDeclined: boolPtr(true),
	}, "1.2.3.4", "chrome/100")
	require.NoError(t, err)

	assert.False(t, st.sessions["s1"].CookiesAccepted)
	assert.True(t, st.sessions["s1"].CookiesDeclined)
}
