package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ecoloop/ecoloop/internal/quiz"
)

// DefaultDurationSeconds is used when the backend does not report a video
// length.
const DefaultDurationSeconds = 300

// Level is one lesson: a gated video, a recap, a practice quiz and a task.
type Level struct {
	ID              int             `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Order           int             `json:"order"`
	ThemeID         string          `json:"theme_id"`
	VideoSource     string          `json:"video_id"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	InfoContent     string          `json:"info_content"`
	TaskDescription string          `json:"task_description"`
	XPReward        int             `json:"xp_reward"`
	Questions       []quiz.Question `json:"questions"`
}

// TotalDuration returns the video length used for segmentation, falling
// back to fallback (or DefaultDurationSeconds) when unknown.
func (l Level) TotalDuration(fallback float64) float64 {
	if l.DurationSeconds > 0 {
		return l.DurationSeconds
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultDurationSeconds
}

// LevelStatus is the progress status of a level for the current user.
type LevelStatus string

const (
	StatusLocked    LevelStatus = "locked"
	StatusUnlocked  LevelStatus = "unlocked"
	StatusCompleted LevelStatus = "completed"
)

// ProgressEntry is one level entry of the user's progress list.
type ProgressEntry struct {
	ID      int    `json:"id,omitempty"`
	LevelID int    `json:"level_id"`
	Status  string `json:"status"`
	Score   int    `json:"score,omitempty"`
}

// User is the authoritative user record from /users/me.
type User struct {
	ID           int             `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	Coins        int             `json:"coins"`
	Streak       int             `json:"streak"`
	ProfileImage string          `json:"profile_image,omitempty"`
	Progress     []ProgressEntry `json:"progress"`
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	out := u
	out.Progress = append([]ProgressEntry(nil), u.Progress...)
	return out
}

// StatusOf returns the status of levelID. A level without an entry is
// unlocked when it is firstLevelID and locked otherwise.
func (u User) StatusOf(levelID, firstLevelID int) LevelStatus {
	for _, p := range u.Progress {
		if p.LevelID != levelID {
			continue
		}
		switch LevelStatus(strings.ToLower(p.Status)) {
		case StatusCompleted:
			return StatusCompleted
		case StatusLocked:
			return StatusLocked
		default:
			return StatusUnlocked
		}
	}
	if levelID == firstLevelID {
		return StatusUnlocked
	}
	return StatusLocked
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

// Registration is the register payload.
type Registration struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Token is returned by /login and /register.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ProgressRequest reports earned rewards for a level.
type ProgressRequest struct {
	LevelID           int  `json:"level_id"`
	CoinsEarned       int  `json:"coins_earned"`
	XPEarned          int  `json:"xp_earned"`
	IsLevelCompletion bool `json:"is_level_completion"`
}

// ProgressResult is the backend's reply to a progress report.
type ProgressResult struct {
	Message    string `json:"message"`
	NewBalance int    `json:"new_balance"`
}

func (r *ProgressResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message    string `json:"message"`
		NewBalance *int   `json:"new_balance"`
		Coins      *int   `json:"coins"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Message = raw.Message
	switch {
	case raw.NewBalance != nil:
		r.NewBalance = *raw.NewBalance
	case raw.Coins != nil:
		r.NewBalance = *raw.Coins
	}
	return nil
}

// TaskTypeLevel is the task type sent for a level's proof upload.
const TaskTypeLevel = "Level Challenge"

// Rewards granted by a verified proof.
type Rewards struct {
	Coins int `json:"coins"`
	XP    int `json:"xp"`
}

// Analysis is the backend's assessment of a proof upload.
type Analysis struct {
	Confidence    *float64 `json:"confidence,omitempty"`
	AIProbability *float64 `json:"ai_probability,omitempty"`
	Relevance     *float64 `json:"relevance,omitempty"`
	ProofDetected *bool    `json:"proof_detected,omitempty"`
}

// Verification is the /verify-task response.
type Verification struct {
	Success         bool      `json:"success"`
	Verified        bool      `json:"verified"`
	Message         string    `json:"message"`
	Rewards         *Rewards  `json:"rewards,omitempty"`
	NewCoinBalance  *int      `json:"new_coin_balance,omitempty"`
	Analysis        *Analysis `json:"analysis,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Suggestions     []string  `json:"suggestions,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Reason returns the most specific explanation of a rejection.
func (v Verification) Reason() string {
	switch {
	case v.RejectionReason != "":
		return v.RejectionReason
	case v.Message != "":
		return v.Message
	case v.Error != "":
		return v.Error
	default:
		return "proof could not be verified"
	}
}

// ChallengeType is daily or weekly.
type ChallengeType string

const (
	ChallengeDaily  ChallengeType = "daily"
	ChallengeWeekly ChallengeType = "weekly"
)

// Challenge is a side quest from /challenges.
type Challenge struct {
	ID                int           `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	CoinReward        int           `json:"coin_reward"`
	Type              ChallengeType `json:"type"`
	IsActive          bool          `json:"is_active"`
	VerificationLabel string        `json:"verification_label,omitempty"`
	IsCompleted       bool          `json:"is_completed"`
}

// ChallengeCompletion is the reply to completing a challenge.
type ChallengeCompletion struct {
	Message           string `json:"message"`
	NewBalance        int    `json:"new_balance"`
	StreakIncremented bool   `json:"streak_incremented"`
	NewStreak         int    `json:"new_streak"`
}

// LeaderboardEntry is one row of /leaderboard.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Coins    int    `json:"coins"`
	Streak   int    `json:"streak"`
}

// CommunityPost is one event of /community-feed.
type CommunityPost struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	ExternalLink string `json:"external_link"`

	// CreatedAt is kept as sent; the backend omits the zone offset.
	CreatedAt string `json:"created_at"`
}

// Created parses CreatedAt, with or without a zone offset.
func (p CommunityPost) Created() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, p.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
