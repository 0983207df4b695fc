// Package storage archives published newsletter issues so a publish can be
// looked up, and replayed, by its idempotency key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ignite/newsletter/internal/config"
)

// ErrNotFound is returned by Get when no issue is archived under the key.
var ErrNotFound = errors.New("issue not archived")

// IssueRecord is one archived newsletter publish.
type IssueRecord struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	TextBody    string    `json:"text"`
	HTMLBody    string    `json:"html"`
	Delivered   int       `json:"delivered"`
	Skipped     int       `json:"skipped"`
	PublishedAt time.Time `json:"published_at"`
}

// Archive stores issue records by key. Save overwrites.
type Archive interface {
	Save(ctx context.Context, rec IssueRecord) error
	Get(ctx context.Context, key string) (*IssueRecord, error)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidKey reports whether key is safe to use as an archive key.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && key != "." && key != ".."
}

// New builds the archive selected by cfg.Type.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case "", "none":
		return NopArchive{}, nil
	case "local":
		return NewLocalArchive(cfg.LocalPath)
	case "aws":
		a, err := NewAWSArchive(ctx, cfg.S3Bucket, cfg.TableName, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS archive: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// NopArchive keeps nothing.
type NopArchive struct{}

func (NopArchive) Save(context.Context, IssueRecord) error { return nil }

func (NopArchive) Get(context.Context, string) (*IssueRecord, error) { return nil, ErrNotFound }
