// Package tracker holds the session merge logic behind the tracking
// endpoint: one beacon either creates a session (with device and location
// enrichment) or folds into the existing one.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nottinghamcompanions/website-api/geoip"
	"github.com/nottinghamcompanions/website-api/models"
	"github.com/nottinghamcompanions/website-api/store"
	"github.com/nottinghamcompanions/website-api/utils"
)

// SessionStore is the slice of the session store the tracker needs.
type SessionStore interface {
	FindBySessionID(ctx context.Context, id string) (*models.Session, error)
	Insert(ctx context.Context, sess *models.Session) error
	Update(ctx context.Context, sess *models.Session) error
}

type Tracker struct {
	store SessionStore
	geo   geoip.Enricher
	now   func() time.Time
}

func New(sessions SessionStore, geo geoip.Enricher) *Tracker {
	return &Tracker{
		store: sessions,
		geo:   geo,
		now:   time.Now,
	}
}

// Track processes one beacon and returns the session id it was folded into.
// Enrichment failures never surface here; store failures do.
func (t *Tracker) Track(ctx context.Context, req models.TrackRequest, ipAddress, userAgent string) (string, error) {
	sess, err := t.store.FindBySessionID(ctx, req.SessionID)
	if err != nil {
		return "", err
	}

	if sess != nil {
		return sess.SessionID, t.applyEvent(ctx, sess, req)
	}

	sess = t.newSession(req, ipAddress, userAgent)
	if err := t.store.Insert(ctx, sess); err != nil {
		if !errors.Is(err, store.ErrDuplicateSession) {
			return "", err
		}
		// Lost the first-insert race; the other writer's row wins and this
		// beacon becomes an update against it.
		sess, err = t.store.FindBySessionID(ctx, req.SessionID)
		if err != nil {
			return "", err
		}
		if sess == nil {
			return "", fmt.Errorf("session %q vanished after duplicate insert", req.SessionID)
		}
		return sess.SessionID, t.applyEvent(ctx, sess, req)
	}

	return sess.SessionID, nil
}

// applyEvent merges a beacon into an existing session. Page-view beacons
// move current_page and the counters; session-end beacons only close the
// session out. Cookie flags are overwritten only when the request carried
// them: a present false still applies, an absent field leaves the stored
// value alone.
func (t *Tracker) applyEvent(ctx context.Context, sess *models.Session, req models.TrackRequest) error {
	now := t.now()

	if !req.IsSessionEnd() {
		sess.CurrentPage = req.Page
		sess.PageViews++
		sess.BounceRate = false
	}
	sess.LastVisit = now

	if req.CookiesAccepted != nil {
		sess.CookiesAccepted = *req.CookiesAccepted
	}
	if req.CookiesDeclined != nil {
		sess.CookiesDeclined = *req.CookiesDeclined
	}
	if req.SessionEnd != nil {
		sess.SessionEnd = req.SessionEnd
	}
	if req.TimeOnSite != nil {
		sess.TimeOnSite = *req.TimeOnSite
	}

	return t.store.Update(ctx, sess)
}

// newSession builds a fully-formed session from the first beacon. The
// geolocation lookup runs on its own deadline detached from the request
// context, so a disconnecting client still gets its session persisted
// intact.
func (t *Tracker) newSession(req models.TrackRequest, ipAddress, userAgent string) *models.Session {
	now := t.now()
	device := utils.ParseUserAgent(userAgent)

	geoCtx, cancel := context.WithTimeout(context.Background(), geoip.LookupTimeout)
	defer cancel()
	location := t.geo.Lookup(geoCtx, ipAddress)

	sess := &models.Session{
		SessionID:       req.SessionID,
		IPAddress:       ipAddress,
		Country:         location.Country,
		Region:          location.Region,
		City:            location.City,
		Latitude:        location.Latitude,
		Longitude:       location.Longitude,
		UserAgent:       userAgent,
		Browser:         device.Browser,
		BrowserVersion:  device.BrowserVersion,
		OperatingSystem: device.OperatingSystem,
		DeviceType:      device.DeviceType,
		Referrer:        req.Referrer,
		EntryPage:       req.Page,
		CurrentPage:     req.Page,
		PageViews:       1,
		FirstVisit:      now,
		LastVisit:       now,
		BounceRate:      true,
		UTMSource:       req.UTMSource,
		UTMMedium:       req.UTMMedium,
		UTMCampaign:     req.UTMCampaign,
		UTMTerm:         req.UTMTerm,
		UTMContent:      req.UTMContent,
	}

	if req.CookiesAccepted != nil {
		sess.CookiesAccepted = *req.CookiesAccepted
	}
	if req.CookiesDeclined != nil {
		sess.CookiesDeclined = *req.CookiesDeclined
	}
	if req.SessionEnd != nil {
		sess.SessionEnd = req.SessionEnd
	}
	if req.TimeOnSite != nil {
		sess.TimeOnSite = *req.TimeOnSite
	}

	return sess
}
