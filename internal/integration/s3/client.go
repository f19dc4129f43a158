package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/flexprice/clockwork/internal/config"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/logger"
)

// ObjectPutter is the slice of the S3 API the uploader needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes run artifacts to a bucket
type Uploader struct {
	api    ObjectPutter
	config config.S3Config
	logger *logger.Logger
}

// NewUploader builds an uploader backed by the AWS SDK
func NewUploader(ctx context.Context, cfg config.S3Config, logger *logger.Logger) (*Uploader, error) {
	if !cfg.Enabled {
		return nil, ierr.NewError("s3 export is disabled").
			WithHint("Set s3.enabled to upload run artifacts").
			Mark(ierr.ErrInvalidOperation)
	}

	awsCfg, err := config.LoadAwsConfig(ctx, cfg)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to load AWS config").
			Mark(ierr.ErrHTTPClient)
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
		},
	}
	// S3-compatible stores (minio, localstack) need path style
	if cfg.EndpointURL != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		})
	}

	logger.Infow("S3 uploader created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"key_prefix", cfg.KeyPrefix,
	)

	return NewUploaderWithAPI(s3.NewFromConfig(awsCfg, opts...), cfg, logger), nil
}

// NewUploaderWithAPI wires an existing client, used by tests
func NewUploaderWithAPI(api ObjectPutter, cfg config.S3Config, logger *logger.Logger) *Uploader {
	return &Uploader{
		api:    api,
		config: cfg,
		logger: logger,
	}
}
