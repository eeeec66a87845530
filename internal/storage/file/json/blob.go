package json

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/drakos74/free-som/internal/storage"
	"github.com/rs/zerolog/log"
)

const extension = ".json"

// BlobStorage keeps one json document per key in {root}/{table}/{shard}.
type BlobStorage struct {
	root  string
	table string
	shard string
	debug bool
}

// BlobShard returns a shard factory for the table rooted at dir.
// Each run id maps to its own sub-directory.
func BlobShard(dir, table string) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		if shard == "" {
			return nil, fmt.Errorf("empty shard for table '%s'", table)
		}
		return NewJsonBlob(table, shard, true).WithPath(dir), nil
	}
}

// NewJsonBlob creates a blob storage under the default directory.
func NewJsonBlob(table, shard string, debug bool) *BlobStorage {
	return &BlobStorage{
		root:  storage.DefaultDir,
		table: table,
		shard: shard,
		debug: debug,
	}
}

// WithPath moves the storage root to path.
func (s *BlobStorage) WithPath(path string) *BlobStorage {
	s.root = path
	return s
}

func (s BlobStorage) dir() string {
	return filepath.Join(s.root, s.table, s.shard)
}

func (s BlobStorage) Store(k storage.Key, value interface{}) error {
	file, err := Save(s.dir(), k.Path(), value)
	if err != nil {
		return err
	}
	if s.debug {
		log.Debug().
			Str("table", s.table).
			Str("shard", s.shard).
			Str("file", file).
			Msg("stored")
	}
	return nil
}

func (s BlobStorage) Load(k storage.Key, value interface{}) error {
	return Load(s.dir(), k.Path(), value)
}

// Save encodes value into {dir}/{name}.json and returns the file path.
// The document goes through a temporary file that is renamed into place.
func Save(dir, name string, value interface{}) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("could not create directory '%s': %w", dir, err)
	}
	bb, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("could not encode '%s': %w", name, err)
	}
	tmp, err := ioutil.TempFile(dir, name+"-*")
	if err != nil {
		return "", fmt.Errorf("could not create temporary file in '%s': %w", dir, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(bb); err != nil {
		tmp.Close()
		return "", fmt.Errorf("could not write '%s': %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("could not close '%s': %w", tmp.Name(), err)
	}
	file := filepath.Join(dir, name+extension)
	if err := os.Rename(tmp.Name(), file); err != nil {
		return "", fmt.Errorf("could not move document to '%s': %w", file, err)
	}
	return file, nil
}

// Load decodes {dir}/{name}.json into value.
func Load(dir, name string, value interface{}) error {
	file := filepath.Join(dir, name+extension)
	bb, err := ioutil.ReadFile(file)
	if os.IsNotExist(err) {
		return fmt.Errorf("no document '%s': %w", file, storage.NotFoundErr)
	}
	if err != nil {
		return fmt.Errorf("could not read '%s': %v: %w", file, err, storage.CouldNotLoadErr)
	}
	if err := json.Unmarshal(bb, value); err != nil {
		return fmt.Errorf("could not decode '%s': %v: %w", file, err, storage.CouldNotLoadErr)
	}
	return nil
}
