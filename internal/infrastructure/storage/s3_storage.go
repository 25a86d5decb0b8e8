// Package storage provides object storage backends for rendered report PDFs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	infraconfig "github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

// Ensure S3ArtifactStore implements printing.ArtifactStore
var (
	_ printing.ArtifactStore  = (*S3ArtifactStore)(nil)
	_ printing.ArtifactLister = (*S3ArtifactStore)(nil)
)

// S3ArtifactStore keeps report PDFs in an S3 bucket under
// {prefix}/{clinic_id}/{filename}. It works with any S3-compatible service
// (AWS S3, MinIO, RustFS).
type S3ArtifactStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ArtifactStoreOption is a functional option for configuring S3ArtifactStore
type S3ArtifactStoreOption func(*S3ArtifactStore)

// WithLogger sets a custom logger for S3ArtifactStore
func WithLogger(logger *zap.Logger) S3ArtifactStoreOption {
	return func(s *S3ArtifactStore) {
		s.logger = logger
	}
}

// NewS3ArtifactStore creates a new S3ArtifactStore from configuration.
func NewS3ArtifactStore(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3ArtifactStoreOption) (*S3ArtifactStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.S3Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	// Without static keys the default chain (env, shared config, IAM role) applies.
	if cfg.S3AccessKeyID != "" || cfg.S3SecretAccessKey != "" {
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			return nil, errors.New("storage access key and secret key must be set together")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	var endpoint string
	if cfg.S3Endpoint != "" {
		endpoint = cfg.S3Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		// S3-compatible stores do not all accept the newer default checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	store := &S3ArtifactStore{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: strings.Trim(cfg.S3Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3ArtifactStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (race condition)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Save uploads the PDF.
func (s *S3ArtifactStore) Save(ctx context.Context, clinicID uuid.UUID, filename string, data []byte) error {
	if len(data) == 0 {
		return shared.NewValidationError("PDF data is empty")
	}
	key, err := s.key(clinicID, filename)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(pdfContentType),
	})
	if err != nil {
		return shared.NewStoreError("upload artifact", err)
	}
	s.logger.Info("PDF stored",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(data)))
	return nil
}

// Open streams the PDF. The caller closes the returned body.
func (s *S3ArtifactStore) Open(ctx context.Context, clinicID uuid.UUID, filename string) (io.ReadCloser, error) {
	key, err := s.key(clinicID, filename)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("report file")
		}
		return nil, shared.NewStoreError("download artifact", err)
	}
	return out.Body, nil
}

// Delete removes the PDF. S3 reports success for missing keys.
func (s *S3ArtifactStore) Delete(ctx context.Context, clinicID uuid.UUID, filename string) error {
	key, err := s.key(clinicID, filename)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return shared.NewStoreError("delete artifact", err)
	}
	return nil
}

// Exists checks if an artifact exists in storage.
func (s *S3ArtifactStore) Exists(ctx context.Context, clinicID uuid.UUID, filename string) (bool, error) {
	key, err := s.key(clinicID, filename)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, shared.NewStoreError("check artifact", err)
	}
	return true, nil
}

// List pages through every object under the store prefix.
func (s *S3ArtifactStore) List(ctx context.Context) ([]printing.StoredArtifact, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var out []printing.StoredArtifact
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, shared.NewStoreError("list artifacts", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			clinicID, filename, ok := printing.ParseArtifactKey(key)
			if !ok {
				continue
			}
			out = append(out, printing.StoredArtifact{
				ClinicID:   clinicID,
				Filename:   filename,
				Size:       aws.ToInt64(obj.Size),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

// Bucket returns the bucket name
func (s *S3ArtifactStore) Bucket() string {
	return s.bucket
}

func (s *S3ArtifactStore) key(clinicID uuid.UUID, filename string) (string, error) {
	if clinicID == uuid.Nil {
		return "", shared.NewValidationError("clinic is required")
	}
	if err := printing.ValidateArtifactName(filename); err != nil {
		return "", err
	}
	key := printing.ArtifactKey(clinicID, filename)
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	return key, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	// Some S3-compatible services return this differently
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey")
}
