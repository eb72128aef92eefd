package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"radarsync/internal/config"
	"radarsync/internal/keys"
	"radarsync/internal/logging"
	"radarsync/internal/models"
)

var logger = logging.For("storage")

// MaxObjectSize bounds what GetObject reads into memory.
const MaxObjectSize = 256 << 20

// S3Service is a client for S3-compatible storage. It archives accepted
// uploads and keeps the last good copy of each official publication.
type S3Service struct {
	client       *minio.Client
	uploadBucket string
	cacheBucket  string
}

// NewS3Service connects to the MinIO server described by cfg.
func NewS3Service(cfg config.MinIO) (*S3Service, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio endpoint, access key and secret key are required")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.Info("connected to MinIO", "endpoint", cfg.Endpoint)
	return &S3Service{client: minioClient, uploadBucket: cfg.UploadBucket, cacheBucket: cfg.CacheBucket}, nil
}

func (s *S3Service) CreateBucket(ctx context.Context, bucketName string, location string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return false, err
		}
		logger.Info("bucket created", "bucket", bucketName)
	}
	return true, nil
}

// EnsureBuckets creates the upload and feed cache buckets when missing.
func (s *S3Service) EnsureBuckets(ctx context.Context) error {
	for _, b := range []string{s.uploadBucket, s.cacheBucket} {
		if b == "" {
			continue
		}
		if _, err := s.CreateBucket(ctx, b, ""); err != nil {
			return fmt.Errorf("bucket %s: %w", b, err)
		}
	}
	return nil
}

// ArchiveUpload stores an accepted user CSV under its content hash. An upload
// archived before is not written again.
func (s *S3Service) ArchiveUpload(ctx context.Context, contentHash, fileName string, content []byte) error {
	objectKey := keys.Upload(contentHash, fileName)

	_, err := s.client.StatObject(ctx, s.uploadBucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		logger.Debug("upload already archived", "bucket", s.uploadBucket, "key", objectKey)
		return nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to check for existing object: %w", err)
	}

	err = s.put(ctx, s.uploadBucket, objectKey, content, "text/csv", map[string]string{"file-name": fileName})
	if err != nil {
		return err
	}
	logger.Info("upload archived", "bucket", s.uploadBucket, "key", objectKey, "file", fileName)
	return nil
}

// PutFeed replaces the cached copy of a publication.
func (s *S3Service) PutFeed(ctx context.Context, src models.Source, name string, data []byte) error {
	return s.put(ctx, s.cacheBucket, keys.FeedCache(src.String(), name), data, "application/octet-stream", nil)
}

// GetFeed returns the cached copy of a publication.
func (s *S3Service) GetFeed(ctx context.Context, src models.Source, name string) ([]byte, error) {
	return s.GetObject(ctx, s.cacheBucket, keys.FeedCache(src.String(), name))
}

// GetObject reads a whole object.
func (s *S3Service) GetObject(ctx context.Context, bucketName string, objectKey string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(io.LimitReader(object, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucketName, objectKey, err)
	}
	if len(data) > MaxObjectSize {
		return nil, fmt.Errorf("object %s/%s exceeds %d bytes", bucketName, objectKey, MaxObjectSize)
	}
	logger.Debug("object retrieved", "bucket", bucketName, "key", objectKey, "bytes", len(data))
	return data, nil
}

func (s *S3Service) put(ctx context.Context, bucketName, objectKey string, data []byte, contentType string, meta map[string]string) error {
	_, err := s.client.PutObject(
		ctx,
		bucketName,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: meta},
	)
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %w", err)
	}
	return nil
}
