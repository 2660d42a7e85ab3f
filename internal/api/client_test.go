package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu           sync.Mutex
	token        string
	unauthorized int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Unauthorized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.unauthorized++
}

// backend is a fake EcoLoop server counting every request it receives.
type backend struct {
	t     *testing.T
	calls atomic.Int32
	srv   *httptest.Server
}

func newBackend(t *testing.T, routes func(r chi.Router)) *backend {
	t.Helper()
	b := &backend{t: t}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.calls.Add(1)
			next.ServeHTTP(w, req)
		})
	})
	routes(r)
	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) client(t *testing.T, s Session, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(b.srv.URL, timeout, WithSession(s))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", 0)
	assert.Error(t, err)

	c, err := New("", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestLevels_DecodesBackendShape(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Get("/levels", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `[{
				"id": 1, "title": "What is Sustainability", "description": "Basics",
				"order": 1, "xp_reward": 100, "theme_id": "forest",
				"video_id": "https://cdn.example.com/l1.mp4",
				"task_description": "Plant a seed", "info_content": "Recap",
				"questions": [
					{"id": 1, "text": "What does sustainability aim to protect?",
					 "options": "Only humans|Future generations|Only animals|Only plants",
					 "correct_index": 1, "difficulty": 1}
				]
			}]`)
		})
	})

	levels, err := b.client(t, &fakeSession{token: "tok-1"}, time.Second).Levels(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 1)

	l := levels[0]
	assert.Equal(t, "https://cdn.example.com/l1.mp4", l.VideoSource)
	assert.Equal(t, 100, l.XPReward)
	assert.Equal(t, float64(DefaultDurationSeconds), l.TotalDuration(0))
	require.Len(t, l.Questions, 1)
	assert.Len(t, l.Questions[0].Options, 4)
	assert.Equal(t, "Future generations", l.Questions[0].Options[1])
}

func TestLevels_SchemaViolation(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Get("/levels", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[{"id": "one", "title": "x", "xp_reward": 5}]`)
		})
	})

	_, err := b.client(t, &fakeSession{}, time.Second).Levels(context.Background())
	var apiErr *ErrAPI
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusOK, apiErr.Status)
}

func TestMe_UnauthorizedClearsSession(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		})
	})
	s := &fakeSession{token: "stale"}

	_, err := b.client(t, s, time.Second).Me(context.Background())
	var authErr *ErrAuth
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, "Could not validate credentials", authErr.Detail)
	assert.Equal(t, 1, s.unauthorized)
	assert.Empty(t, s.Token())
	assert.True(t, IsAuth(err))
}

func TestLogin_ValidationMakesNoCall(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, Token{AccessToken: "x"})
		})
	})

	_, err := b.client(t, nil, time.Second).Login(context.Background(), Credentials{Username: "al", Password: "secret1"})
	var verr *ErrValidation
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "username", verr.Field)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestLogin_BackendDetail(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
			var creds Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds.Password != "correct-horse" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, Token{AccessToken: "fresh", TokenType: "bearer"})
		})
	})
	c := b.client(t, nil, time.Second)

	_, err := c.Login(context.Background(), Credentials{Username: "alice", Password: "wrong-pass"})
	assert.Equal(t, "Invalid credentials", UserMessage(err))

	tok, err := c.Login(context.Background(), Credentials{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}

func TestRegister_ValidationDetailList(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/register", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]any{{"loc": []string{"body", "email"}, "msg": "field required"}},
			})
		})
	})

	_, err := b.client(t, nil, time.Second).Register(context.Background(),
		Registration{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	var apiErr *ErrAPI
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "field required", apiErr.Detail)
	assert.False(t, IsRetryable(err))
}

func TestUpdateProgress_BalanceFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"new_balance", `{"new_balance": 250}`, 250},
		{"coins", `{"message": "Progress updated", "coins": 175}`, 175},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, func(r chi.Router) {
				r.Post("/users/progress", func(w http.ResponseWriter, r *http.Request) {
					var p ProgressRequest
					require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
					assert.Equal(t, ProgressRequest{LevelID: 3, CoinsEarned: 100, XPEarned: 100, IsLevelCompletion: true}, p)
					_, _ = io.WriteString(w, tt.body)
				})
			})
			res, err := b.client(t, &fakeSession{token: "t"}, time.Second).UpdateProgress(context.Background(),
				ProgressRequest{LevelID: 3, CoinsEarned: 100, XPEarned: 100, IsLevelCompletion: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.NewBalance)
		})
	}
}

func TestVerifyTask_Multipart(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/verify-task", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "Plant a seed", r.FormValue("task_description"))
			assert.Equal(t, TaskTypeLevel, r.FormValue("task_type"))
			assert.Equal(t, "4", r.FormValue("level_id"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, "proof.png", hdr.Filename)
			assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true, "verified": true, "message": "Task verified!",
				"rewards":  map[string]int{"coins": 25, "xp": 50},
				"analysis": map[string]any{"confidence": 0.92, "proof_detected": true},
			})
		})
	})

	v, err := b.client(t, &fakeSession{token: "t"}, time.Second).VerifyTask(context.Background(), 4, "Plant a seed",
		Upload{Filename: "proof.png", ContentType: "image/png", Body: strings.NewReader("png-bytes")})
	require.NoError(t, err)
	assert.True(t, v.Verified)
	require.NotNil(t, v.Rewards)
	assert.Equal(t, 25, v.Rewards.Coins)
	require.NotNil(t, v.Analysis)
	require.NotNil(t, v.Analysis.Confidence)
	assert.InDelta(t, 0.92, *v.Analysis.Confidence, 1e-9)
}

func TestVerifyTask_Rejected(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/verify-task", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false, "verified": false,
				"message":     "Image looks AI generated",
				"suggestions": []string{"Upload a real photo/video", "Ensure task is clearly visible"},
			})
		})
	})

	_, err := b.client(t, &fakeSession{token: "t"}, time.Second).VerifyTask(context.Background(), 1, "x",
		Upload{Filename: "p.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg")})
	var rejected *ErrVerificationRejected
	require.True(t, errors.As(err, &rejected), "got %v", err)
	assert.Equal(t, "Image looks AI generated", rejected.Reason())
	assert.Len(t, rejected.Suggestions(), 2)
	assert.Contains(t, UserMessage(err), "Ensure task is clearly visible")
}

func TestTimeout_MentionsColdStart(t *testing.T) {
	release := make(chan struct{})
	b := newBackend(t, func(r chi.Router) {
		r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
	})
	defer close(release)

	_, err := b.client(t, &fakeSession{}, 50*time.Millisecond).Leaderboard(context.Background())
	var timeout *ErrTimeout
	require.True(t, errors.As(err, &timeout), "got %T %v", err, err)
	assert.Contains(t, UserMessage(err), "cold-starting")
	assert.True(t, IsRetryable(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second)
	require.NoError(t, err)
	_, err = c.Challenges(context.Background())
	var netErr *ErrNetwork
	require.True(t, errors.As(err, &netErr), "got %T %v", err, err)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, UserMessage(err), "Network error")
}

func TestCompleteChallenge(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/challenges/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "9", chi.URLParam(r, "id"))
			writeJSON(w, http.StatusOK, ChallengeCompletion{Message: "Challenge completed!", NewBalance: 60, StreakIncremented: true, NewStreak: 4})
		})
	})

	res, err := b.client(t, &fakeSession{token: "t"}, time.Second).CompleteChallenge(context.Background(), 9,
		Upload{Filename: "p.webp", ContentType: "image/webp", Body: strings.NewReader("webp")})
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewStreak)
	assert.True(t, res.StreakIncremented)
}

func TestUserStatusOf(t *testing.T) {
	u := User{Progress: []ProgressEntry{
		{LevelID: 1, Status: "COMPLETED"},
		{LevelID: 2, Status: "unlocked"},
	}}
	assert.Equal(t, StatusCompleted, u.StatusOf(1, 1))
	assert.Equal(t, StatusUnlocked, u.StatusOf(2, 1))
	assert.Equal(t, StatusLocked, u.StatusOf(3, 1))
	assert.Equal(t, StatusUnlocked, User{}.StatusOf(5, 5))
}

func TestUserMessage_Fallbacks(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Contains(t, UserMessage(&ErrAPI{Op: "x", Status: 503}), "server ran into a problem")
	assert.Equal(t, "Your session has expired. Please log in again.", UserMessage(&ErrAuth{Op: "me"}))
	assert.Equal(t, "file: too large", UserMessage(&ErrValidation{Field: "file", Reason: "too large"}))
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetry_ColdStartGet(t *testing.T) {
	var hits atomic.Int32
	b := newBackend(t, func(r chi.Router) {
		r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				writeJSON(w, http.StatusBadGateway, map[string]string{"detail": "waking up"})
				return
			}
			writeJSON(w, http.StatusOK, []LeaderboardEntry{{Username: "sam", Coins: 5}})
		})
	})
	c, err := New(b.srv.URL, time.Second, WithRetry(fastRetry()))
	require.NoError(t, err)

	entries, err := c.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int32(3), b.calls.Load())
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Get("/challenges", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "down"})
		})
	})
	c, err := New(b.srv.URL, time.Second, WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = c.Challenges(context.Background())
	var apiErr *ErrAPI
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(3), b.calls.Load())
}

func TestRetry_SkipsWritesAndClientErrors(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Post("/users/progress", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
		})
		r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "missing"})
		})
	})
	c, err := New(b.srv.URL, time.Second, WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = c.UpdateProgress(context.Background(), ProgressRequest{LevelID: 1, XPEarned: 10})
	require.Error(t, err)
	assert.Equal(t, int32(1), b.calls.Load(), "progress reports are never repeated")

	_, err = c.Leaderboard(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), b.calls.Load(), "4xx is not retried")
}

func TestRetryBackoff(t *testing.T) {
	cfg := RetryConfig{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{5, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		got := cfg.backoff(tt.attempt)
		lo := time.Duration(float64(tt.base) * 0.8)
		hi := time.Duration(float64(tt.base) * 1.2)
		assert.True(t, got >= lo && got <= hi, "attempt %d: %v not in [%v, %v]", tt.attempt, got, lo, hi)
	}
}

func TestCommunityFeed(t *testing.T) {
	b := newBackend(t, func(r chi.Router) {
		r.Get("/community-feed", func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"id":1,"title":"Beach clean-up","description":"Bring gloves.",
				"category":"Waste","location":"Marina","external_link":"https://example.org/e/1",
				"created_at":"2025-03-01T09:30:00.123456"}]`)
		})
	})

	feed, err := b.client(t, &fakeSession{token: "t"}, time.Second).CommunityFeed(context.Background())
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Waste", feed[0].Category)
	assert.Equal(t, "https://example.org/e/1", feed[0].ExternalLink)

	created, ok := feed[0].Created()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 123456000, time.UTC), created)
}

func TestCommunityPostCreated(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2025-03-01T09:30:00Z", true},
		{"2025-03-01T09:30:00+02:00", true},
		{"2025-03-01T09:30:00", true},
		{"2025-03-01", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		_, ok := CommunityPost{CreatedAt: tt.in}.Created()
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
