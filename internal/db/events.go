package db

import (
	"context"
	"time"

	"raspimon/internal/models"
)

// InsertEvent appends an audit record
func (s *Store) InsertEvent(ctx context.Context, e models.SystemEvent) (int64, error) {
	return s.Insert(ctx, "system_events", e.Record())
}

// ListSystemEvents pages through audit records newest first. An empty
// eventType matches all types. The total count ignores limit and offset.
func (s *Store) ListSystemEvents(ctx context.Context, eventType string, since time.Time, limit, offset int) ([]models.SystemEvent, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := `WHERE timestamp >= ?`
	args := []any{since.UTC()}
	if eventType != "" {
		where += ` AND event_type = ?`
		args = append(args, eventType)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM system_events `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	recs, err := s.query(ctx, `SELECT * FROM system_events `+where+`
		ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.SystemEvent, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.SystemEventFromRecord(r))
	}
	return out, total, nil
}
