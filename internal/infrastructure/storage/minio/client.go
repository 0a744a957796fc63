// Package minio reads specimen images from MinIO or any S3-compatible store.
package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/label-traiter/internal/config"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// ObjectAPI is the part of the S3 API the repository uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

type clientAPI struct {
	c *minio.Client
}

func (a clientAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.c.BucketExists(ctx, bucketName)
}

func (a clientAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return a.c.ListObjects(ctx, bucketName, opts)
}

func (a clientAPI) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return a.c.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

func applyDefaults(cfg *config.MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
}

func newOptions(cfg config.MinIOConfig) *minio.Options {
	return &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
}

// NewObjectAPI connects to cfg.Endpoint and checks that the bucket exists.
func NewObjectAPI(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (ObjectAPI, error) {
	log = logging.OrNop(log)
	applyDefaults(&cfg)

	client, err := minio.New(cfg.Endpoint, newOptions(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to create minio client")
	}
	api := clientAPI{c: client}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ok, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "failed to connect to minio")
	}
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "bucket %s does not exist", cfg.Bucket)
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return api, nil
}
