package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/flexprice/clockwork/internal/config"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	mock.Mock
	body []byte
}

func (m *mockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(aws.ToString(params.Key), aws.ToString(params.ContentType))
	m.body, _ = io.ReadAll(params.Body)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestUploadPlain(t *testing.T) {
	api := &mockPutter{}
	api.On("PutObject", "runs/run_1/entities.json", "application/json").Return(nil)

	u := NewUploaderWithAPI(api, config.S3Config{Bucket: "bucket", KeyPrefix: "/runs/"}, logger.NewNoopLogger())
	res, err := u.UploadJSON(context.Background(), "run_1", "entities", []byte(`[]`))
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/runs/run_1/entities.json", res.URL)
	assert.Equal(t, []byte(`[]`), api.body)
	api.AssertExpectations(t)
}

func TestUploadGzip(t *testing.T) {
	api := &mockPutter{}
	api.On("PutObject", "run_2/entities.csv.gz", "application/gzip").Return(nil)

	u := NewUploaderWithAPI(api, config.S3Config{Bucket: "bucket", Compression: "gzip"}, logger.NewNoopLogger())
	res, err := u.UploadCSV(context.Background(), "run_2", "entities", []byte("id,email\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.SizeBytes)

	zr, err := gzip.NewReader(bytes.NewReader(api.body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "id,email\n", string(plain))
}

func TestUploadRejectsEmpty(t *testing.T) {
	u := NewUploaderWithAPI(&mockPutter{}, config.S3Config{Bucket: "bucket"}, logger.NewNoopLogger())
	_, err := u.UploadJSON(context.Background(), "run_3", "entities", nil)
	assert.True(t, ierr.IsValidation(err))
}

func TestUploadWrapsPutFailure(t *testing.T) {
	api := &mockPutter{}
	api.On("PutObject", "run_4/entities.json", "application/json").Return(assert.AnError)

	u := NewUploaderWithAPI(api, config.S3Config{Bucket: "bucket"}, logger.NewNoopLogger())
	_, err := u.UploadJSON(context.Background(), "run_4", "entities", []byte(`{}`))
	assert.True(t, ierr.Is(err, ierr.ErrHTTPClient))
}
