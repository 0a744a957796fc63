package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/label-traiter/pkg/errors"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"c.txt": "c", "a.txt": "a", "b.txt": "b", "d.txt": "d", "notes.md": "x",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	names := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = filepath.Base(p)
		}
		return out
	}

	tests := []struct {
		name    string
		pattern string
		limit   int
		offset  int
		want    []string
	}{
		{"all sorted", "", 0, 0, []string{"a.txt", "b.txt", "c.txt", "d.txt"}},
		{"offset ignored without limit", "", 0, 2, []string{"a.txt", "b.txt", "c.txt", "d.txt"}},
		{"limit", "", 2, 0, []string{"a.txt", "b.txt"}},
		{"limit and offset", "", 2, 1, []string{"b.txt", "c.txt"}},
		{"window past end", "", 5, 3, []string{"d.txt"}},
		{"offset past end", "", 2, 10, []string{}},
		{"custom pattern", "*.md", 0, 0, []string{"notes.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(dir, tt.pattern, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestDiscover_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Discover(filepath.Join(dir, "missing"), "", 0, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputAccess))

	file := filepath.Join(dir, "f.txt")
	writeFiles(t, dir, map[string]string{"f.txt": "x"})
	_, err = Discover(file, "", 0, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputAccess))

	_, err = Discover(dir, "[", 0, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		encoding string
		want     string
		code     errors.ErrorCode
	}{
		{name: "utf-8", data: []byte("Déterminé"), encoding: "utf-8", want: "Déterminé"},
		{name: "default utf-8", data: []byte("plain"), want: "plain"},
		{name: "bom dropped", data: append([]byte{0xEF, 0xBB, 0xBF}, "x"...), encoding: "UTF8", want: "x"},
		{name: "invalid utf-8", data: []byte{0xff, 0xfe, 'a'}, encoding: "utf-8", code: errors.ErrCodeInputEncoding},
		{name: "latin-1", data: []byte{'c', 'a', 'f', 0xe9}, encoding: "latin1", want: "café"},
		{name: "windows-1252", data: []byte{0x93, 'q', 0x94}, encoding: "windows-1252", want: "“q”"},
		{name: "shift_jis", data: []byte{0x82, 0xA0}, encoding: "shift_jis", want: "あ"},
		{name: "invalid shift_jis", data: []byte{0x82, 0xA0, 0xFF, 0x81}, encoding: "shift_jis", code: errors.ErrCodeInputEncoding},
		{name: "invalid gbk", data: []byte{0x81, 0x20}, encoding: "gbk", code: errors.ErrCodeInputEncoding},
		{name: "utf-16le", data: []byte{'o', 0x00, 'k', 0x00}, encoding: "utf-16le", want: "ok"},
		{name: "lone utf-16le surrogate", data: []byte{0x00, 0xD8}, encoding: "utf-16le", code: errors.ErrCodeInputEncoding},
		{name: "truncated euc-jp", data: []byte{0x8E}, encoding: "euc-jp", code: errors.ErrCodeInputEncoding},
		{name: "unknown encoding", data: []byte("x"), encoding: "klingon", code: errors.ErrCodeInputEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.data, tt.encoding)
			if tt.code != "" {
				assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadLabel(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"my_label_file.txt": "Quercus alba"})

	lb, err := ReadLabel(filepath.Join(dir, "my_label_file.txt"), "")
	require.NoError(t, err)
	assert.Equal(t, "my_label_file", lb.Identifier)
	assert.Equal(t, "Quercus alba", lb.Text)
	assert.Equal(t, "utf-8", lb.Encoding)

	_, err = ReadLabel(filepath.Join(dir, "gone.txt"), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputAccess))
}
