package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoCredentials is returned by CredentialRepo.Load when nobody is logged in.
var ErrNoCredentials = errors.New("no stored credentials")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	SessionID string    // exact session match
	LevelID   int       // exact level match (0 = any)
	From      time.Time // timestamp >= From
}

// Credentials is the persisted login state.
type Credentials struct {
	Token     string
	Username  string
	UpdatedAt time.Time
}

// CredentialRepo persists the bearer token between runs. At most one set of
// credentials exists at a time.
type CredentialRepo interface {
	Save(ctx context.Context, c Credentials) error

	// Load returns ErrNoCredentials when nothing is stored.
	Load(ctx context.Context) (Credentials, error)

	Clear(ctx context.Context) error
}

// EventKind names a level event.
type EventKind string

const (
	EventSessionStarted   EventKind = "session_started"
	EventSegmentComplete  EventKind = "segment_complete"
	EventQuizAnswered     EventKind = "quiz_answered"
	EventSegmentRestarted EventKind = "segment_restarted"
	EventVideoComplete    EventKind = "video_complete"
	EventPhaseChanged     EventKind = "phase_changed"
	EventPracticeGraded   EventKind = "practice_graded"
	EventProofSubmitted   EventKind = "proof_submitted"
	EventProgressReported EventKind = "progress_reported"
	EventSessionEnded     EventKind = "session_ended"
)

// LevelEventData is the payload for a new level event. Segment is -1 when
// the event is not tied to a segment.
type LevelEventData struct {
	SessionID string
	LevelID   int
	Kind      EventKind
	Segment   int
	Correct   bool
	Detail    map[string]any
}

// LevelEventRecord is a stored level event.
type LevelEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LevelEventData
}

// EventRepo is the append-only log of level sessions.
type EventRepo interface {
	AppendLevelEvent(ctx context.Context, data LevelEventData) error

	// QueryLevelEvents returns matching events, newest first.
	QueryLevelEvents(ctx context.Context, opts QueryOpts) ([]LevelEventRecord, error)

	// LevelActivity summarizes the log per level, most recent first.
	LevelActivity(ctx context.Context, limit int) ([]LevelActivity, error)
}

// LevelActivity summarizes what happened for one level.
type LevelActivity struct {
	LevelID    int
	Sessions   int
	Answered   int
	Correct    int
	LastPlayed time.Time
}

// Accuracy returns the share of correct segment answers, or 0.
func (a LevelActivity) Accuracy() float64 {
	if a.Answered == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Answered)
}

// SnapshotData is the last dashboard state fetched from the backend. It lets
// the dashboard render before the first network round trip completes.
type SnapshotData struct {
	Version int             `json:"version"`
	User    json.RawMessage `json:"user,omitempty"`
	Levels  json.RawMessage `json:"levels,omitempty"`
}

// Snapshot represents a point-in-time capture of dashboard state.
type Snapshot struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	Data      SnapshotData
}

// SnapshotRepo manages dashboard snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot, or nil if none exist.
	Latest(ctx context.Context) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots.
	Prune(ctx context.Context, keep int) error
}
