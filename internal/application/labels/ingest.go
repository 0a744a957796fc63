// Package labels ingests specimen-label texts and runs them through entity
// resolution, scoring and filtering.
package labels

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// DefaultPattern selects label files when no pattern is configured.
const DefaultPattern = "*.txt"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Discover lists the label files in dir matching pattern, in lexical order.
// When limit > 0 the list is cut to [offset, offset+limit); otherwise offset
// is ignored.
func Discover(dir, pattern string, limit, offset int) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInputAccess, "label directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrCodeInputAccess, "label directory %s is not a directory", dir)
	}
	if pattern == "" {
		pattern = DefaultPattern
	}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeValidation, "label pattern %q", pattern)
	}
	files := paths[:0]
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			files = append(files, p)
		}
	}
	sort.Strings(files)

	if limit > 0 {
		start := offset
		if start > len(files) {
			start = len(files)
		}
		end := start + limit
		if end > len(files) {
			end = len(files)
		}
		files = files[start:end]
	}
	return files, nil
}

// DecodeText converts raw bytes in the named encoding to a UTF-8 string.
// UTF-8 input must be valid; a leading byte-order mark is dropped.  Other
// names are resolved through the WHATWG encoding index, and bytes that do
// not survive a round trip through that encoding are rejected.
func DecodeText(data []byte, encoding string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	switch name {
	case "", "utf-8", "utf8":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", errors.New(errors.ErrCodeInputEncoding, "text is not valid utf-8")
		}
		return string(data), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeInputEncoding, "unsupported encoding %q", encoding)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeInputEncoding, "decode %s text", encoding)
	}
	// The decoder substitutes U+FFFD for malformed input instead of failing.
	back, err := enc.NewEncoder().Bytes(out)
	if err != nil || !bytes.Equal(back, data) {
		return "", errors.Newf(errors.ErrCodeInputEncoding, "text is not valid %s", encoding)
	}
	return string(out), nil
}

// ReadLabel loads one label file.
func ReadLabel(path, encoding string) (*label.Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInputAccess, "read label %s", path)
	}
	text, err := DecodeText(data, encoding)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, path)
	}
	if encoding == "" {
		encoding = "utf-8"
	}
	return &label.Label{
		Identifier: label.IdentifierFromPath(path),
		Path:       path,
		Text:       text,
		Encoding:   encoding,
	}, nil
}
