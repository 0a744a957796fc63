package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/turtacn/label-traiter/internal/domain/dwc"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Names of the file destinations.
const (
	SinkJSONFile = "json_file"
	SinkTraiter  = "traiter_dir"
)

// CombinedFile writes every row into one JSON array.
type CombinedFile struct {
	Path string
}

func (CombinedFile) Name() string { return SinkJSONFile }

func (f CombinedFile) Write(_ context.Context, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	data, err := dwc.Marshal(rows, "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode combined records")
	}
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, errors.ErrCodeExportFailed, "create %s", dir)
		}
	}
	if err := os.WriteFile(f.Path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrCodeExportFailed, "write %s", f.Path)
	}
	return nil
}

func (CombinedFile) Close() error { return nil }

// PerLabelDir writes one <identifier>.json per row holding only the record
// fields.
type PerLabelDir struct {
	Dir string
}

func (PerLabelDir) Name() string { return SinkTraiter }

func (d PerLabelDir) Write(ctx context.Context, rows []Row) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrCodeExportFailed, "create %s", d.Dir)
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := row.RecordJSON()
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeSerialization, "encode record %s", row.Identifier)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "    "); err != nil {
			return errors.Wrapf(err, errors.ErrCodeSerialization, "encode record %s", row.Identifier)
		}
		out.WriteByte('\n')

		path := filepath.Join(d.Dir, row.Identifier+".json")
		if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
			return errors.Wrapf(err, errors.ErrCodeExportFailed, "write %s", path)
		}
	}
	return nil
}

func (PerLabelDir) Close() error { return nil }
