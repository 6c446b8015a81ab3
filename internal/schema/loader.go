package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/sqlagent/sqlagent/internal/storage"
)

// maxObjectSize caps schema documents read from the object store.
const maxObjectSize = 4 << 20

// LoadFile reads a description from a local JSON file.
func LoadFile(path string) (Description, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, path)
		}
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer file.Close()

	desc, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	return desc, nil
}

// Loader resolves the configured schema location on every call so that an
// updated file or object is picked up by the next pipeline run.
type Loader struct {
	// Path is empty for the embedded default, s3://<key> for the object
	// store, or a local file path.
	Path    string
	Objects storage.ObjectStore
	Logger  *slog.Logger
}

func (l Loader) Load(ctx context.Context) (Description, error) {
	location := strings.TrimSpace(l.Path)
	switch {
	case location == "":
		return Default()
	case storage.IsObjectURI(location):
		return l.loadObject(ctx, location)
	default:
		return LoadFile(location)
	}
}

func (l Loader) loadObject(ctx context.Context, location string) (Description, error) {
	key, err := storage.ObjectKeyFromURI(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaNotFound, err)
	}
	if l.Objects == nil {
		return nil, fmt.Errorf("load schema %s: object store is not configured", location)
	}
	obj, err := l.Objects.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, location)
		}
		return nil, fmt.Errorf("load schema %s: %w", location, err)
	}
	defer obj.Close()

	if obj.Info.Size > maxObjectSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrSchemaMalformed, location, obj.Info.Size, maxObjectSize)
	}
	if l.Logger != nil {
		l.Logger.Debug("loading schema from object store", "key", key, "size", obj.Info.Size, "etag", obj.Info.ETag)
	}

	desc, err := Parse(io.LimitReader(obj, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", location, err)
	}
	return desc, nil
}
