package entity_stream

import (
	"context"
	"os"
	"path/filepath"

	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// DirSource reads engine output from <Dir>/<identifier>.json.  A label with
// no file has no entities.
type DirSource struct {
	dir    string
	opts   Options
	logger logging.Logger
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string, opts Options, logger logging.Logger) *DirSource {
	return &DirSource{dir: dir, opts: opts, logger: logging.OrNop(logger)}
}

// Path returns the entity file consulted for identifier.
func (s *DirSource) Path(identifier string) string {
	return filepath.Join(s.dir, identifier+".json")
}

// Entities implements Source.
func (s *DirSource) Entities(ctx context.Context, identifier, text string) ([]label.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(identifier)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no entity file for label", logging.Identifier(identifier), logging.Path(path))
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrCodeInputAccess, "open entity file %s", path)
	}
	defer f.Close()

	raws, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, identifier)
	}
	entities, err := Build(raws, text, s.opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, identifier)
	}
	return entities, nil
}
