// Package deploys3 archives generated sites to S3-compatible object storage.
package deploys3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/k11v/sitegen/internal/deploy"
	"github.com/k11v/sitegen/internal/site"
)

var _ deploy.Archive = (*Archive)(nil)

// Config holds the archive configuration.
type Config struct {
	ConnectionString string `env:"CONNECTION_STRING"` // optional, archiving is off when empty
	Bucket           string `env:"BUCKET"`            // default: "sitegen"
}

func (c *Config) BucketName() string {
	b := c.Bucket
	if b == "" {
		b = "sitegen"
	}
	return b
}

// Archive stores files under {task}/round-{round}/{name}.
type Archive struct {
	client *s3.Client
	bucket string

	// uploadPartSize should be greater than or equal 5MB.
	// See github.com/aws/aws-sdk-go-v2/feature/s3/manager.
	uploadPartSize int

	log *slog.Logger
}

func NewArchive(client *s3.Client, bucket string, log *slog.Logger) *Archive {
	return &Archive{
		client:         client,
		bucket:         bucket,
		uploadPartSize: 10 * 1024 * 1024, // 10MB
		log:            log.With("component", "archive"),
	}
}

func (a *Archive) Store(ctx context.Context, task string, round int, files site.FileSet) error {
	uploader := manager.NewUploader(a.client, func(u *manager.Uploader) {
		u.PartSize = int64(a.uploadPartSize)
	})

	prefix := Prefix(task, round)
	for _, name := range files.Names() {
		key := path.Join(prefix, name)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(files[name]),
			ContentType: aws.String(contentType(name)),
		})
		if err != nil {
			if apiErr := smithy.APIError(nil); errors.As(err, &apiErr) {
				return fmt.Errorf("deploys3.Archive: %s: %s: %w", key, apiErr.ErrorCode(), err)
			}
			return fmt.Errorf("deploys3.Archive: %s: %w", key, err)
		}
	}

	a.log.Info("archived files", "task", task, "round", round, "prefix", prefix, "count", len(files))
	return nil
}

// Prefix returns the key prefix of a task's round.
func Prefix(task string, round int) string {
	return path.Join(task, "round-"+strconv.Itoa(round))
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
