// Package tinyrdb is the top-level facade for the tinyrdb engine.
package tinyrdb

import (
	"github.com/tuannm99/tinyrdb/internal/engine"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

type (
	Database    = engine.Database
	Options     = engine.Options
	QueryResult = engine.QueryResult
	TableInfo   = engine.TableInfo
	ColumnInfo  = engine.ColumnInfo
	IndexInfo   = engine.IndexInfo
	Stats       = engine.Stats
	Error       = sqlerr.Error
)

// Sentinels for errors.Is against errors returned by Database methods.
var (
	ErrLex            = sqlerr.ErrLex
	ErrParse          = sqlerr.ErrParse
	ErrSchema         = sqlerr.ErrSchema
	ErrType           = sqlerr.ErrType
	ErrConstraint     = sqlerr.ErrConstraint
	ErrStorage        = sqlerr.ErrStorage
	ErrDatabaseClosed = engine.ErrDatabaseClosed
)

// Open opens (or creates) the database stored under dir.
func Open(dir string) (*Database, error) {
	return engine.Open(dir, engine.Options{})
}

// OpenWith is Open with explicit options.
func OpenWith(dir string, opts Options) (*Database, error) {
	return engine.Open(dir, opts)
}
