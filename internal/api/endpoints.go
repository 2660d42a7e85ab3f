package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/ecoloop/ecoloop/internal/validation"
)

// Upload is a proof file that already passed local validation.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (Token, error) {
	if err := checkPayload(creds); err != nil {
		return Token{}, err
	}
	var tok Token
	r, err := jsonRequest("login", http.MethodPost, "/login", creds, false)
	if err != nil {
		return tok, err
	}
	return tok, c.do(ctx, r, &tok)
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, reg Registration) (Token, error) {
	if err := checkPayload(reg); err != nil {
		return Token{}, err
	}
	var tok Token
	r, err := jsonRequest("register", http.MethodPost, "/register", reg, false)
	if err != nil {
		return tok, err
	}
	return tok, c.do(ctx, r, &tok)
}

// Me fetches the current user record.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	r := request{op: "me", method: http.MethodGet, path: "/users/me", auth: true, schema: UserSchema}
	return u, c.do(ctx, r, &u)
}

// Levels fetches every level, ordered by the backend.
func (c *Client) Levels(ctx context.Context) ([]Level, error) {
	var levels []Level
	r := request{op: "levels", method: http.MethodGet, path: "/levels", auth: true, schema: LevelsSchema}
	return levels, c.do(ctx, r, &levels)
}

// UpdateProgress reports rewards earned on a level.
func (c *Client) UpdateProgress(ctx context.Context, p ProgressRequest) (ProgressResult, error) {
	var res ProgressResult
	if p.LevelID <= 0 {
		return res, &ErrValidation{Field: "level_id", Reason: "must be positive"}
	}
	r, err := jsonRequest("update_progress", http.MethodPost, "/users/progress", p, true)
	if err != nil {
		return res, err
	}
	return res, c.do(ctx, r, &res)
}

// VerifyTask uploads proof of a level task. A proof the backend processed
// but did not accept is returned as *ErrVerificationRejected.
func (c *Client) VerifyTask(ctx context.Context, levelID int, taskDescription string, up Upload) (Verification, error) {
	fields := map[string]string{
		"task_description": taskDescription,
		"task_type":        TaskTypeLevel,
	}
	if levelID > 0 {
		fields["level_id"] = strconv.Itoa(levelID)
	}
	body, contentType, err := multipartBody(fields, up)
	if err != nil {
		return Verification{}, err
	}

	var v Verification
	r := request{
		op: "verify_task", method: http.MethodPost, path: "/verify-task",
		body: body, contentType: contentType, auth: true, schema: VerificationSchema,
	}
	if err := c.do(ctx, r, &v); err != nil {
		return v, err
	}
	if !v.Verified {
		return v, &ErrVerificationRejected{Result: v}
	}
	return v, nil
}

// Challenges lists the daily and weekly challenges.
func (c *Client) Challenges(ctx context.Context) ([]Challenge, error) {
	var out []Challenge
	r := request{op: "challenges", method: http.MethodGet, path: "/challenges", auth: true}
	return out, c.do(ctx, r, &out)
}

// CompleteChallenge submits proof for a challenge.
func (c *Client) CompleteChallenge(ctx context.Context, challengeID int, up Upload) (ChallengeCompletion, error) {
	var out ChallengeCompletion
	if challengeID <= 0 {
		return out, &ErrValidation{Field: "challenge_id", Reason: "must be positive"}
	}
	body, contentType, err := multipartBody(nil, up)
	if err != nil {
		return out, err
	}
	r := request{
		op: "complete_challenge", method: http.MethodPost,
		path: fmt.Sprintf("/challenges/%d/complete", challengeID),
		body: body, contentType: contentType, auth: true,
	}
	return out, c.do(ctx, r, &out)
}

// Leaderboard fetches the ranking.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	r := request{op: "leaderboard", method: http.MethodGet, path: "/leaderboard", auth: true}
	return out, c.do(ctx, r, &out)
}

// CommunityFeed lists local sustainability events. The feed is public.
func (c *Client) CommunityFeed(ctx context.Context) ([]CommunityPost, error) {
	var out []CommunityPost
	r := request{op: "community feed", method: http.MethodGet, path: "/community-feed"}
	return out, c.do(ctx, r, &out)
}

func checkPayload(v any) error {
	err := validation.Struct(v)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validation.Errors); ok {
		first := verrs.First()
		return &ErrValidation{Field: first.Field, Reason: first.Message}
	}
	return &ErrValidation{Reason: err.Error()}
}

func multipartBody(fields map[string]string, up Upload) (io.Reader, string, error) {
	if up.Body == nil {
		return nil, "", &ErrValidation{Field: "file", Reason: "no file selected"}
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, up.Filename))
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return nil, "", fmt.Errorf("read proof file: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
