// Package storage persists tables as JSON documents.
//
// Layout under the work directory:
//
//	catalog.json          list of tables plus creation/modification times
//	tables/<name>.json    one table: definition, counters and every row
//
// Every write replaces a whole file: the new content goes to a temporary
// file in the same directory which is then renamed over the old one.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tuannm99/tinyrdb/internal/catalog"
	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

const (
	FileMode0644 = 0o644 // rw-r--r--
	FileMode0755 = 0o755 // rwxr-xr-x

	catalogFile   = "catalog.json"
	tablesDir     = "tables"
	tableExt      = ".json"
	formatVersion = 1
)

// ErrTableNotFound is returned when a table has no file on disk.
var ErrTableNotFound = errors.New("tinyrdb: table file not found")

// Catalog is the content of catalog.json.
type Catalog struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tables    []string  `json:"tables"`
}

// TableFile is the content of tables/<name>.json.
type TableFile struct {
	Name              string             `json:"name"`
	Columns           []catalog.Column   `json:"columns"`
	Indexes           []catalog.IndexDef `json:"indexes"`
	NextAutoIncrement int64              `json:"next_auto_increment"`
	NextRowID         record.RowID       `json:"next_row_id"`
	Rows              []heap.StoredRow   `json:"rows"`
}

// Store reads and writes one database directory. It is not safe for
// concurrent use; the engine serializes access.
type Store struct {
	dir string
	cat Catalog
	now func() time.Time
}

// Open prepares dir, creating an empty catalog on first use.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir, now: time.Now}
	if err := os.MkdirAll(filepath.Join(dir, tablesDir), FileMode0755); err != nil {
		return nil, sqlerr.Storage(err, "create data directory %s", dir)
	}

	b, err := os.ReadFile(s.catalogPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		now := s.now().UTC()
		s.cat = Catalog{Version: formatVersion, CreatedAt: now, UpdatedAt: now}
		if err := s.writeCatalog(); err != nil {
			return nil, err
		}
		slog.Info("storage: initialized", "dir", dir)
	case err != nil:
		return nil, sqlerr.Storage(err, "read %s", s.catalogPath())
	default:
		if err := json.Unmarshal(b, &s.cat); err != nil {
			return nil, sqlerr.Storage(err, "decode %s", s.catalogPath())
		}
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// Tables lists persisted table names in creation order.
func (s *Store) Tables() []string { return slices.Clone(s.cat.Tables) }

func (s *Store) catalogPath() string { return filepath.Join(s.dir, catalogFile) }

func (s *Store) tablePath(name string) string {
	return filepath.Join(s.dir, tablesDir, name+tableExt)
}

// SaveTable writes the full table and registers it in the catalog.
func (s *Store) SaveTable(t *heap.Table) error {
	doc := TableFile{
		Name:              t.Def.Name,
		Columns:           t.Def.Columns,
		Indexes:           t.Def.Indexes,
		NextAutoIncrement: t.NextAutoIncrement(),
		NextRowID:         t.NextRowID(),
		Rows:              t.Rows(),
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return sqlerr.Storage(err, "encode table %q", doc.Name)
	}
	if err := writeFileAtomic(s.tablePath(doc.Name), b); err != nil {
		return sqlerr.Storage(err, "write table %q", doc.Name)
	}

	if !slices.Contains(s.cat.Tables, doc.Name) {
		s.cat.Tables = append(s.cat.Tables, doc.Name)
	}
	s.cat.UpdatedAt = s.now().UTC()
	return s.writeCatalog()
}

// LoadTable reads one table and rebuilds its indexes.
func (s *Store) LoadTable(name string, order int) (*heap.Table, error) {
	b, err := os.ReadFile(s.tablePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sqlerr.Storage(fmt.Errorf("%w: %s", ErrTableNotFound, name), "load table %q", name)
	}
	if err != nil {
		return nil, sqlerr.Storage(err, "read table %q", name)
	}

	var doc TableFile
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, sqlerr.Storage(err, "decode table %q", name)
	}
	def := &catalog.TableDef{Name: doc.Name, Columns: doc.Columns, Indexes: doc.Indexes}
	t, err := heap.Restore(def, order, doc.Rows, doc.NextRowID, doc.NextAutoIncrement)
	if err != nil {
		return nil, sqlerr.Storage(err, "restore table %q", name)
	}
	return t, nil
}

// LoadAll loads every table named in the catalog. A listed table whose file
// is gone is dropped from the catalog with a warning; any other failure
// aborts the load.
func (s *Store) LoadAll(order int) (map[string]*heap.Table, error) {
	out := make(map[string]*heap.Table, len(s.cat.Tables))
	var missing []string
	for _, name := range s.cat.Tables {
		t, err := s.LoadTable(name, order)
		if errors.Is(err, ErrTableNotFound) {
			slog.Warn("storage: table file missing, dropping it from the catalog", "table", name)
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	if len(missing) > 0 {
		s.cat.Tables = slices.DeleteFunc(s.cat.Tables, func(n string) bool { return slices.Contains(missing, n) })
	}
	return out, nil
}

// DeleteTable removes the table from the catalog, then deletes its file. A
// file left behind by a failed removal is no longer reachable.
func (s *Store) DeleteTable(name string) error {
	prev := s.cat
	s.cat.Tables = slices.DeleteFunc(slices.Clone(s.cat.Tables), func(n string) bool { return n == name })
	s.cat.UpdatedAt = s.now().UTC()
	if err := s.writeCatalog(); err != nil {
		s.cat = prev
		return err
	}
	if err := os.Remove(s.tablePath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("storage: remove dropped table file", "table", name, "err", err)
	}
	return nil
}

// Reset deletes every table and starts a fresh catalog.
func (s *Store) Reset() error {
	if err := os.RemoveAll(filepath.Join(s.dir, tablesDir)); err != nil {
		return sqlerr.Storage(err, "remove tables")
	}
	if err := os.MkdirAll(filepath.Join(s.dir, tablesDir), FileMode0755); err != nil {
		return sqlerr.Storage(err, "create tables directory")
	}
	now := s.now().UTC()
	s.cat = Catalog{Version: formatVersion, CreatedAt: now, UpdatedAt: now}
	return s.writeCatalog()
}

// Stats describes the on-disk footprint.
type Stats struct {
	Tables       int       `json:"tables"`
	Bytes        int64     `json:"bytes"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

func (s *Store) Stats() (Stats, error) {
	st := Stats{Tables: len(s.cat.Tables), CreatedAt: s.cat.CreatedAt, LastModified: s.cat.UpdatedAt}
	err := filepath.WalkDir(s.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, sqlerr.Storage(err, "stat %s", s.dir)
	}
	return st, nil
}

func (s *Store) writeCatalog() error {
	b, err := json.MarshalIndent(s.cat, "", "  ")
	if err != nil {
		return sqlerr.Storage(err, "encode catalog")
	}
	if err := writeFileAtomic(s.catalogPath(), b); err != nil {
		return sqlerr.Storage(err, "write catalog")
	}
	return nil
}

// writeFileAtomic replaces path with data via a synced temp file and rename.
func writeFileAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), FileMode0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
