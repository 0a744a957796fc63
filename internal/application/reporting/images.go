package reporting

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/label-traiter/pkg/errors"
)

// Image is a specimen image to embed in the report.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DataURI renders the image as a base64 data URI.
func (i *Image) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

func newImage(name string, data []byte) *Image {
	return &Image{Name: name, MIMEType: http.DetectContentType(data), Data: data}
}

// ImageSource finds the image whose file stem matches a label identifier.
// A missing image is (nil, nil).
type ImageSource interface {
	Image(ctx context.Context, identifier string) (*Image, error)
}

// DirImages reads images from a local directory.
type DirImages struct {
	Dir string
}

func (d DirImages) Image(ctx context.Context, identifier string) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(d.Dir, globEscape(identifier)+".*"))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeReportFailed, "search images for %s", identifier)
	}
	sort.Strings(matches)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		base := filepath.Base(path)
		if strings.TrimSuffix(base, filepath.Ext(base)) != identifier {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeReportFailed, "read image %s", path)
		}
		return newImage(base, data), nil
	}
	return nil, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// ObjectStore is the part of minio.ObjectRepository the bucket source uses.
type ObjectStore interface {
	FindByStem(ctx context.Context, stem string) (key string, found bool, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// BucketImages reads images from an object store.
type BucketImages struct {
	Store ObjectStore
}

func (b BucketImages) Image(ctx context.Context, identifier string) (*Image, error) {
	key, found, err := b.Store.FindByStem(ctx, identifier)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeReportFailed, "find image for %s", identifier)
	}
	if !found {
		return nil, nil
	}
	data, err := b.Store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeReportFailed, "download image %s", key)
	}
	return newImage(filepath.Base(key), data), nil
}
