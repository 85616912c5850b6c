// api/store/event_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nottinghamcompanions/website-api/database"
	"github.com/nottinghamcompanions/website-api/models"
)

// EventStore appends raw tracking beacons to ClickHouse and serves the
// time-series admin dashboards. Sessions in Postgres remain the source of
// truth; losing rows here loses history charts, nothing else.
type EventStore struct {
	DB *database.ClickHouseClient
}

func NewEventStore(chClient *database.ClickHouseClient) *EventStore {
	return &EventStore{DB: chClient}
}

// InitSchema creates the beacon_events table if it is missing.
func (s *EventStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS beacon_events (
			event_id   String,
			session_id String,
			event_type LowCardinality(String),
			page       String,
			referrer   String,
			user_agent String,
			ip_address String,
			timestamp  DateTime64(3, 'UTC')
		)
		ENGINE = MergeTree()
		ORDER BY (timestamp, session_id)
	`
	if err := s.DB.Conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create beacon_events schema: %w", err)
	}
	return nil
}

// RecordEvent appends one beacon to the event log.
func (s *EventStore) RecordEvent(ctx context.Context, event models.BeaconEvent) error {
	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO beacon_events (
			event_id, session_id, event_type, page, referrer, user_agent, ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare beacon insert: %w", err)
	}

	err = batch.Append(
		event.EventID,
		event.SessionID,
		event.EventType,
		event.Page,
		event.Referrer,
		event.UserAgent,
		event.IPAddress,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append beacon to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send beacon batch: %w", err)
	}
	return nil
}

// IsValidInterval reports whether interval names a supported ClickHouse
// toStartOf* bucket size.
func IsValidInterval(interval string) bool {
	switch interval {
	case "Minute", "Hour", "Day", "Week", "Month", "Quarter", "Year":
		return true
	default:
		return false
	}
}

// PageViewCounts returns page-view beacon counts bucketed by interval.
func (s *EventStore) PageViewCounts(ctx context.Context, interval string, start, end time.Time) ([]models.TimeCount, error) {
	if !IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, count() AS total_views
		FROM beacon_events
		WHERE event_type = 'page_view' AND timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query page view counts: %w", err)
	}
	defer rows.Close()

	var results []models.TimeCount
	for rows.Next() {
		var bucket time.Time
		var count uint64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan page view count row: %w", err)
		}
		results = append(results, models.TimeCount{Time: bucket, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during page view counts query: %w", err)
	}
	return results, nil
}

// TopPages returns the most viewed page paths within [start, end].
func (s *EventStore) TopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.PageCount, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT page, count() AS view_count
		FROM beacon_events
		WHERE event_type = 'page_view' AND timestamp >= ? AND timestamp <= ?
		GROUP BY page
		ORDER BY view_count DESC, page ASC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}
	defer rows.Close()

	var results []models.PageCount
	for rows.Next() {
		var pc models.PageCount
		if err := rows.Scan(&pc.Page, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top page row: %w", err)
		}
		results = append(results, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during top pages query: %w", err)
	}
	return results, nil
}
