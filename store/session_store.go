// api/store/session_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nottinghamcompanions/website-api/models"
)

// ErrDuplicateSession is returned by Insert when another writer created the
// same session first. The unique constraint on session_id is the backstop
// for the find-then-insert race; callers retry as an update.
var ErrDuplicateSession = errors.New("session already exists")

const uniqueViolation = "23505"

type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SessionStore instance.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// InitSchema creates the sessions table and its indexes if they are missing.
// Called once from the process entry point before the server starts.
func (s *SessionStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id       TEXT PRIMARY KEY,
			ip_address       TEXT NOT NULL,
			country          TEXT NOT NULL DEFAULT '',
			region           TEXT NOT NULL DEFAULT '',
			city             TEXT NOT NULL DEFAULT '',
			latitude         DOUBLE PRECISION,
			longitude        DOUBLE PRECISION,
			user_agent       TEXT NOT NULL,
			browser          TEXT NOT NULL DEFAULT '',
			browser_version  TEXT NOT NULL DEFAULT '',
			operating_system TEXT NOT NULL DEFAULT '',
			device_type      TEXT NOT NULL DEFAULT '',
			referrer         TEXT NOT NULL DEFAULT '',
			entry_page       TEXT NOT NULL,
			current_page     TEXT NOT NULL,
			page_views       BIGINT NOT NULL DEFAULT 1,
			cookies_accepted BOOLEAN NOT NULL DEFAULT FALSE,
			cookies_declined BOOLEAN NOT NULL DEFAULT FALSE,
			first_visit      TIMESTAMPTZ NOT NULL,
			last_visit       TIMESTAMPTZ NOT NULL,
			session_end      TIMESTAMPTZ,
			time_on_site     BIGINT NOT NULL DEFAULT 0,
			bounce_rate      BOOLEAN NOT NULL DEFAULT TRUE,
			utm_source       TEXT NOT NULL DEFAULT '',
			utm_medium       TEXT NOT NULL DEFAULT '',
			utm_campaign     TEXT NOT NULL DEFAULT '',
			utm_term         TEXT NOT NULL DEFAULT '',
			utm_content      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_last_visit ON sessions (last_visit DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_country ON sessions (country);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create sessions schema: %w", err)
	}
	return nil
}

const sessionColumns = `
	session_id, ip_address, country, region, city, latitude, longitude,
	user_agent, browser, browser_version, operating_system, device_type,
	referrer, entry_page, current_page, page_views,
	cookies_accepted, cookies_declined,
	first_visit, last_visit, session_end, time_on_site, bounce_rate,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.Session, error) {
	sess := &models.Session{}
	var sessionEnd sql.NullTime
	err := row.Scan(
		&sess.SessionID, &sess.IPAddress,
		&sess.Country, &sess.Region, &sess.City, &sess.Latitude, &sess.Longitude,
		&sess.UserAgent, &sess.Browser, &sess.BrowserVersion, &sess.OperatingSystem, &sess.DeviceType,
		&sess.Referrer, &sess.EntryPage, &sess.CurrentPage, &sess.PageViews,
		&sess.CookiesAccepted, &sess.CookiesDeclined,
		&sess.FirstVisit, &sess.LastVisit, &sessionEnd, &sess.TimeOnSite, &sess.BounceRate,
		&sess.UTMSource, &sess.UTMMedium, &sess.UTMCampaign, &sess.UTMTerm, &sess.UTMContent,
	)
	if err != nil {
		return nil, err
	}
	if sessionEnd.Valid {
		sess.SessionEnd = &sessionEnd.Time
	}
	return sess, nil
}

// FindBySessionID returns the session for id, or nil when none exists.
func (s *SessionStore) FindBySessionID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE session_id = $1;`, sessionColumns)
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session %q: %w", id, err)
	}
	return sess, nil
}

// Insert writes a fully-formed new session row. A unique-key violation on
// session_id comes back as ErrDuplicateSession.
func (s *SessionStore) Insert(ctx context.Context, sess *models.Session) error {
	query := fmt.Sprintf(`
		INSERT INTO sessions (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28);
	`, sessionColumns)

	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID, sess.IPAddress,
		sess.Country, sess.Region, sess.City, sess.Latitude, sess.Longitude,
		sess.UserAgent, sess.Browser, sess.BrowserVersion, sess.OperatingSystem, sess.DeviceType,
		sess.Referrer, sess.EntryPage, sess.CurrentPage, sess.PageViews,
		sess.CookiesAccepted, sess.CookiesDeclined,
		sess.FirstVisit, sess.LastVisit, sess.SessionEnd, sess.TimeOnSite, sess.BounceRate,
		sess.UTMSource, sess.UTMMedium, sess.UTMCampaign, sess.UTMTerm, sess.UTMContent,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSession
		}
		return fmt.Errorf("failed to insert session %q: %w", sess.SessionID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing session. Creation-time
// fields (location, device, referrer, entry page, UTM) are deliberately not
// part of the statement.
func (s *SessionStore) Update(ctx context.Context, sess *models.Session) error {
	query := `
		UPDATE sessions
		SET current_page = $2, page_views = $3, last_visit = $4, bounce_rate = $5,
		    cookies_accepted = $6, cookies_declined = $7, session_end = $8, time_on_site = $9
		WHERE session_id = $1;
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID, sess.CurrentPage, sess.PageViews, sess.LastVisit, sess.BounceRate,
		sess.CookiesAccepted, sess.CookiesDeclined, sess.SessionEnd, sess.TimeOnSite,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %q: %w", sess.SessionID, err)
	}
	return nil
}

// Recent returns the most recently active sessions, newest first.
func (s *SessionStore) Recent(ctx context.Context, limit int) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		ORDER BY last_visit DESC
		LIMIT $1;
	`, sessionColumns)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recent session row: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during recent sessions query: %w", err)
	}
	return sessions, nil
}

// CountSessions returns the total number of session records.
func (s *SessionStore) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions;`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// CountSessionsSince returns the number of sessions last active at or after t.
func (s *SessionStore) CountSessionsSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE last_visit >= $1;`, t).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions since %s: %w", t.Format(time.RFC3339), err)
	}
	return count, nil
}

// CountCookiesAccepted returns the number of sessions that accepted cookies.
func (s *SessionStore) CountCookiesAccepted(ctx context.Context) (int64, error) {
	return s.countWhereFlag(ctx, "cookies_accepted")
}

// CountCookiesDeclined returns the number of sessions that declined cookies.
func (s *SessionStore) CountCookiesDeclined(ctx context.Context) (int64, error) {
	return s.countWhereFlag(ctx, "cookies_declined")
}

func (s *SessionStore) countWhereFlag(ctx context.Context, column string) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM sessions WHERE %s = TRUE;`, column)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions by %s: %w", column, err)
	}
	return count, nil
}

// TopCountries groups sessions by country and returns the top n by count.
func (s *SessionStore) TopCountries(ctx context.Context, n int) ([]models.FieldCount, error) {
	return s.groupAndCount(ctx, "country", n)
}

// TopBrowsers groups sessions by browser and returns the top n by count.
func (s *SessionStore) TopBrowsers(ctx context.Context, n int) ([]models.FieldCount, error) {
	return s.groupAndCount(ctx, "browser", n)
}

// groupAndCount only ever receives column names from the wrappers above, so
// the fmt.Sprintf is safe. Ties are broken by the group key ascending to
// keep the ordering stable between requests.
func (s *SessionStore) groupAndCount(ctx context.Context, column string, n int) ([]models.FieldCount, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS count
		FROM sessions
		GROUP BY %s
		ORDER BY count DESC, %s ASC
		LIMIT $1;
	`, column, column, column)

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to group sessions by %s: %w", column, err)
	}
	defer rows.Close()

	var results []models.FieldCount
	for rows.Next() {
		var fc models.FieldCount
		if err := rows.Scan(&fc.ID, &fc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s group row: %w", column, err)
		}
		results = append(results, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during %s grouping query: %w", column, err)
	}
	return results, nil
}
