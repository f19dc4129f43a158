package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	ierr "github.com/flexprice/clockwork/internal/errors"
)

// Format is the artifact file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// UploadResult describes a stored artifact
type UploadResult struct {
	URL            string
	Bucket         string
	Key            string
	SizeBytes      int64
	CompressedSize int64
	UploadedAt     time.Time
}

// Upload stores data under {key_prefix}/{run_id}/{name}.{ext}
func (u *Uploader) Upload(ctx context.Context, runID, name string, format Format, data []byte) (*UploadResult, error) {
	if runID == "" || name == "" {
		return nil, ierr.NewError("run id and file name are required").
			Mark(ierr.ErrValidation)
	}
	if len(data) == 0 {
		return nil, ierr.NewError("artifact is empty").
			WithHintf("Nothing to upload for %s", name).
			Mark(ierr.ErrValidation)
	}

	compress := u.config.Compression == "gzip"
	body := data
	if compress {
		zipped, err := gzipBytes(data)
		if err != nil {
			return nil, err
		}
		body = zipped
	}

	key := u.objectKey(runID, name, format, compress)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType(format, compress)),
	}
	switch u.config.Encryption {
	case "AES256":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
	}

	if _, err := u.api.PutObject(ctx, input); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to upload artifact to S3").
			WithMessagef("bucket: %s, key: %s", u.config.Bucket, key).
			Mark(ierr.ErrHTTPClient)
	}

	u.logger.Infow("artifact uploaded",
		"bucket", u.config.Bucket,
		"key", key,
		"size", len(body),
	)

	return &UploadResult{
		URL:            u.fileURL(key),
		Bucket:         u.config.Bucket,
		Key:            key,
		SizeBytes:      int64(len(data)),
		CompressedSize: int64(len(body)),
		UploadedAt:     time.Now().UTC(),
	}, nil
}

func (u *Uploader) UploadJSON(ctx context.Context, runID, name string, data []byte) (*UploadResult, error) {
	return u.Upload(ctx, runID, name, FormatJSON, data)
}

func (u *Uploader) UploadCSV(ctx context.Context, runID, name string, data []byte) (*UploadResult, error) {
	return u.Upload(ctx, runID, name, FormatCSV, data)
}

func (u *Uploader) objectKey(runID, name string, format Format, compressed bool) string {
	ext := string(format)
	if compressed {
		ext += ".gz"
	}
	parts := []string{}
	if p := strings.Trim(u.config.KeyPrefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, runID, fmt.Sprintf("%s.%s", name, ext))
	return strings.Join(parts, "/")
}

func (u *Uploader) fileURL(key string) string {
	if u.config.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.config.EndpointURL, "/"), u.config.Bucket, key)
	}
	return fmt.Sprintf("s3://%s/%s", u.config.Bucket, key)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to compress artifact").
			Mark(ierr.ErrSystem)
	}
	if err := w.Close(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to close gzip writer").
			Mark(ierr.ErrSystem)
	}
	return buf.Bytes(), nil
}

func contentType(format Format, compressed bool) string {
	if compressed {
		return "application/gzip"
	}
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
