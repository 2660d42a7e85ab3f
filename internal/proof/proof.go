// Package proof checks task proof files locally and forwards them to the
// backend for verification.
package proof

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/ecoloop/ecoloop/internal/api"
)

// MaxSize is the largest proof file accepted.
const MaxSize = 10 << 20

// Allowed lists the accepted proof content types.
var Allowed = []string{"image/jpeg", "image/png", "image/webp", "video/mp4"}

// File is a proof file that passed local checks.
type File struct {
	Path string
	Name string
	MIME string
	Size int64
}

// Describe returns a short human description, e.g. "photo.jpg (2.0 MiB, image/jpeg)".
func (f File) Describe() string {
	return fmt.Sprintf("%s (%s, %s)", f.Name, humanize.IBytes(uint64(f.Size)), f.MIME)
}

// Inspect checks path without contacting the backend. The type is sniffed
// from the content, not taken from the extension.
func Inspect(path string) (File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return File{}, &api.ErrValidation{Field: "file", Reason: "no file selected"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, &api.ErrValidation{Field: "file", Reason: fmt.Sprintf("%s does not exist", path)}
		}
		return File{}, fmt.Errorf("stat proof file: %w", err)
	}
	if info.IsDir() {
		return File{}, &api.ErrValidation{Field: "file", Reason: fmt.Sprintf("%s is a directory", path)}
	}
	if info.Size() == 0 {
		return File{}, &api.ErrValidation{Field: "file", Reason: "file is empty"}
	}
	if info.Size() > MaxSize {
		return File{}, &api.ErrValidation{
			Field:  "file",
			Reason: fmt.Sprintf("file is %s, the limit is %s", humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxSize)),
		}
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect proof type: %w", err)
	}
	kind, ok := allowedType(mt)
	if !ok {
		return File{}, &api.ErrValidation{
			Field:  "file",
			Reason: fmt.Sprintf("%s is not supported, upload a JPEG, PNG, WebP or MP4", mt.String()),
		}
	}

	return File{Path: path, Name: filepath.Base(path), MIME: kind, Size: info.Size()}, nil
}

func allowedType(mt *mimetype.MIME) (string, bool) {
	for _, a := range Allowed {
		if mt.Is(a) {
			return a, true
		}
	}
	return "", false
}

// Verifier is the backend side of proof submission.
type Verifier interface {
	VerifyTask(ctx context.Context, levelID int, taskDescription string, up api.Upload) (api.Verification, error)
	CompleteChallenge(ctx context.Context, challengeID int, up api.Upload) (api.ChallengeCompletion, error)
}

// SubmitLevel checks path and uploads it as proof of a level task. A file
// that fails local checks is never sent.
func SubmitLevel(ctx context.Context, v Verifier, levelID int, taskDescription, path string) (api.Verification, File, error) {
	f, err := Inspect(path)
	if err != nil {
		return api.Verification{}, File{}, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return api.Verification{}, f, fmt.Errorf("open proof file: %w", err)
	}
	defer fh.Close()

	res, err := v.VerifyTask(ctx, levelID, taskDescription, api.Upload{Filename: f.Name, ContentType: f.MIME, Body: fh})
	return res, f, err
}

// SubmitChallenge checks path and uploads it as proof of a challenge.
func SubmitChallenge(ctx context.Context, v Verifier, challengeID int, path string) (api.ChallengeCompletion, File, error) {
	f, err := Inspect(path)
	if err != nil {
		return api.ChallengeCompletion{}, File{}, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return api.ChallengeCompletion{}, f, fmt.Errorf("open proof file: %w", err)
	}
	defer fh.Close()

	res, err := v.CompleteChallenge(ctx, challengeID, api.Upload{Filename: f.Name, ContentType: f.MIME, Body: fh})
	return res, f, err
}
