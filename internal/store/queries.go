package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/invisible-tech/network-event-observer/internal/types"
)

// Bucket is one group of a count query.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// TimelinePoint counts records within one second.
type TimelinePoint struct {
	Timestamp string `json:"timestamp"`
	Count     int64  `json:"count"`
}

// RiskTrendPoint counts records per risk level within one second.
type RiskTrendPoint struct {
	Timestamp string `json:"timestamp"`
	High      int64  `json:"high"`
	Medium    int64  `json:"medium"`
	Low       int64  `json:"low"`
}

// RecentEvent is a row of the recent events table.
type RecentEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	EventType string `json:"event_type,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Stats is a full dashboard snapshot.
type Stats struct {
	Total      int64            `json:"total"`
	Succeeded  int64            `json:"succeeded"`
	Failed     int64            `json:"failed"`
	EventTypes []Bucket         `json:"event_types"`
	RiskLevels []Bucket         `json:"risk_levels"`
	Protocols  []Bucket         `json:"protocols"`
	Timeline   []TimelinePoint  `json:"timeline"`
	RiskTrend  []RiskTrendPoint `json:"risk_trend"`
	Recent     []RecentEvent    `json:"recent"`
}

// Count returns the total and failed record counts.
func (s *Store) Count(ctx context.Context) (total, failed int64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(error) FROM `+TableName).Scan(&total, &failed)
	return total, failed, err
}

// CountBy groups records on one event property. Records without the property
// are excluded. Only event_type, risk_level and protocol are accepted.
func (s *Store) CountBy(ctx context.Context, property string) ([]Bucket, error) {
	if !groupable[property] {
		return nil, fmt.Errorf("cannot group by %q", property)
	}
	path := "$." + property

	rows, err := s.db.QueryContext(ctx, `
SELECT json_extract(properties, ?) AS v, COUNT(*) AS n
FROM `+TableName+`
WHERE properties IS NOT NULL AND json_extract(properties, ?) IS NOT NULL
GROUP BY v
ORDER BY n DESC, v ASC`, path, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Timeline counts records per second, oldest first.
func (s *Store) Timeline(ctx context.Context) ([]TimelinePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT substr(timestamp, 1, 19) AS ts, COUNT(*)
FROM `+TableName+`
GROUP BY ts
ORDER BY ts ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TimelinePoint{}
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.Timestamp, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RiskTrend counts records per second and risk level, oldest first. Records
// without a risk level are excluded; unknown levels are ignored.
func (s *Store) RiskTrend(ctx context.Context) ([]RiskTrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT substr(timestamp, 1, 19) AS ts, json_extract(properties, '$.risk_level') AS r, COUNT(*)
FROM `+TableName+`
WHERE properties IS NOT NULL AND json_extract(properties, '$.risk_level') IS NOT NULL
GROUP BY ts, r
ORDER BY ts ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RiskTrendPoint{}
	for rows.Next() {
		var (
			ts, risk string
			n        int64
		)
		if err := rows.Scan(&ts, &risk, &n); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Timestamp != ts {
			out = append(out, RiskTrendPoint{Timestamp: ts})
		}
		p := &out[len(out)-1]
		switch types.RiskLevel(risk) {
		case types.RiskHigh:
			p.High += n
		case types.RiskMedium:
			p.Medium += n
		case types.RiskLow:
			p.Low += n
		}
	}
	return out, rows.Err()
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RecentEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, model,
  json_extract(properties, '$.event_type'),
  json_extract(properties, '$.risk_level'),
  json_extract(properties, '$.protocol'),
  error
FROM `+TableName+`
ORDER BY timestamp DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecentEvent{}
	for rows.Next() {
		var (
			e                                  RecentEvent
			eventType, risk, protocol, errText sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Model, &eventType, &risk, &protocol, &errText); err != nil {
			return nil, err
		}
		e.EventType = eventType.String
		e.RiskLevel = risk.String
		e.Protocol = protocol.String
		e.Error = errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats collects every dashboard query into one snapshot.
func (s *Store) Stats(ctx context.Context, recentLimit int) (*Stats, error) {
	st := &Stats{}
	var err error

	if st.Total, st.Failed, err = s.Count(ctx); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	st.Succeeded = st.Total - st.Failed
	if st.EventTypes, err = s.CountBy(ctx, PropertyEventType); err != nil {
		return nil, fmt.Errorf("event types: %w", err)
	}
	if st.RiskLevels, err = s.CountBy(ctx, PropertyRiskLevel); err != nil {
		return nil, fmt.Errorf("risk levels: %w", err)
	}
	if st.Protocols, err = s.CountBy(ctx, PropertyProtocol); err != nil {
		return nil, fmt.Errorf("protocols: %w", err)
	}
	if st.Timeline, err = s.Timeline(ctx); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	if st.RiskTrend, err = s.RiskTrend(ctx); err != nil {
		return nil, fmt.Errorf("risk trend: %w", err)
	}
	if st.Recent, err = s.Recent(ctx, recentLimit); err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	return st, nil
}
