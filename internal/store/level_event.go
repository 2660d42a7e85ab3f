package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var levelEventFields = []string{
	"id", "sequence", "timestamp", "session_id", "level_id",
	"kind", "segment", "correct", "detail",
}

// eventRepo implements EventRepo backed by the level_events table and the
// global sequence counter.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *eventRepo) AppendLevelEvent(ctx context.Context, data LevelEventData) error {
	if data.SessionID == "" || data.Kind == "" {
		return fmt.Errorf("append level event: session id and kind are required")
	}
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	var detail any
	if len(data.Detail) > 0 {
		b, err := json.Marshal(data.Detail)
		if err != nil {
			return fmt.Errorf("marshal event detail: %w", err)
		}
		detail = string(b)
	}

	query, args := builder().Insert(levelEventsTable).
		Columns("sequence", "timestamp", "session_id", "level_id", "kind", "segment", "correct", "detail").
		Values(seqNum, time.Now().UTC(), data.SessionID, data.LevelID, string(data.Kind), data.Segment, data.Correct, detail).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save level event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLevelEvents(ctx context.Context, opts QueryOpts) ([]LevelEventRecord, error) {
	sel := builder().Select(levelEventFields...).
		From(entsql.Table(levelEventsTable))

	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.SessionID != "" {
		preds = append(preds, entsql.EQ("session_id", opts.SessionID))
	}
	if opts.LevelID > 0 {
		preds = append(preds, entsql.EQ("level_id", opts.LevelID))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query level events: %w", err)
	}
	defer rows.Close()

	var out []LevelEventRecord
	for rows.Next() {
		var (
			rec    LevelEventRecord
			kind   string
			detail sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.LevelID,
			&kind, &rec.Segment, &rec.Correct, &detail); err != nil {
			return nil, fmt.Errorf("scan level event: %w", err)
		}
		rec.Kind = EventKind(kind)
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &rec.Detail); err != nil {
				return nil, fmt.Errorf("decode event detail: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query level events: %w", err)
	}
	return out, nil
}

func (r *eventRepo) LevelActivity(ctx context.Context, limit int) ([]LevelActivity, error) {
	events, err := r.QueryLevelEvents(ctx, QueryOpts{})
	if err != nil {
		return nil, err
	}

	byLevel := make(map[int]*LevelActivity)
	for _, ev := range events {
		a, ok := byLevel[ev.LevelID]
		if !ok {
			a = &LevelActivity{LevelID: ev.LevelID}
			byLevel[ev.LevelID] = a
		}
		if ev.Timestamp.After(a.LastPlayed) {
			a.LastPlayed = ev.Timestamp
		}
		switch ev.Kind {
		case EventSessionStarted:
			a.Sessions++
		case EventQuizAnswered:
			a.Answered++
			if ev.Correct {
				a.Correct++
			}
		}
	}

	out := make([]LevelActivity, 0, len(byLevel))
	for _, a := range byLevel {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastPlayed.Equal(out[j].LastPlayed) {
			return out[i].LastPlayed.After(out[j].LastPlayed)
		}
		return out[i].LevelID < out[j].LevelID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
