package minio

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// ObjectRepository reads objects under a key prefix in one bucket.
type ObjectRepository struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger logging.Logger
}

// NewObjectRepository creates a repository.  A non-empty prefix is treated
// as a directory.
func NewObjectRepository(api ObjectAPI, bucket, prefix string, log logging.Logger) *ObjectRepository {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ObjectRepository{api: api, bucket: bucket, prefix: prefix, logger: logging.OrNop(log)}
}

// Bucket is the bucket the repository reads.
func (r *ObjectRepository) Bucket() string { return r.bucket }

// FindByStem returns the key of the first object, in key order, directly
// under the prefix whose name without extension equals stem.  found is
// false when there is none.
func (r *ObjectRepository) FindByStem(ctx context.Context, stem string) (key string, found bool, err error) {
	opts := minio.ListObjectsOptions{Prefix: r.prefix + stem, Recursive: false}

	var matches []string
	for obj := range r.api.ListObjects(ctx, r.bucket, opts) {
		if obj.Err != nil {
			return "", false, errors.Wrapf(obj.Err, errors.ErrCodeUnavailable, "list objects %s/%s", r.bucket, opts.Prefix)
		}
		name := strings.TrimPrefix(obj.Key, r.prefix)
		if strings.Contains(name, "/") {
			continue
		}
		if strings.TrimSuffix(name, path.Ext(name)) == stem {
			matches = append(matches, obj.Key)
		}
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.Strings(matches)
	return matches[0], true, nil
}

// Get downloads an object.
func (r *ObjectRepository) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := r.api.GetObject(ctx, r.bucket, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "get object %s/%s", r.bucket, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "read object %s/%s", r.bucket, key)
	}
	r.logger.Debug("object downloaded", logging.String("key", key), logging.Int("bytes", len(data)))
	return data, nil
}
