package formatter

import (
	"context"
	"io"

	"github.com/Clark-Hu/sdqa/internal/catalog"
)

// StorageKind names a backing-store variant.
type StorageKind string

const (
	KindDB      StorageKind = "db"
	KindTSV     StorageKind = "tsv"
	KindArchive StorageKind = "archive"
)

// Storage is a backing store handle. The formatter switches on the
// concrete types declared in this file; other implementations are
// reported as unsupported.
type Storage interface {
	Kind() StorageKind
}

// RelationalStore is the database contract the formatter needs. It doubles
// as the catalog source when the formatter has none configured.
type RelationalStore interface {
	catalog.Loader
	// InsertRatings stores all rows in route.Table inside one transaction.
	InsertRatings(ctx context.Context, route Route, rows []Row) error
	// SelectRatings returns the rows of route.Table whose parent column
	// equals parentID, in insertion order.
	SelectRatings(ctx context.Context, route Route, parentID int64) ([]Row, error)
}

// DBStorage targets a relational database.
type DBStorage struct {
	Store RelationalStore
}

// NewDBStorage wraps a relational store.
func NewDBStorage(store RelationalStore) *DBStorage { return &DBStorage{Store: store} }

func (*DBStorage) Kind() StorageKind { return KindDB }

// TSVStorage reads or writes tab-delimited rows suitable for a database
// bulk load.
type TSVStorage struct {
	W io.Writer
	R io.Reader
}

func (*TSVStorage) Kind() StorageKind { return KindTSV }

// ArchiveStorage reads or writes the whole collection as one binary blob.
type ArchiveStorage struct {
	W io.Writer
	R io.Reader
}

func (*ArchiveStorage) Kind() StorageKind { return KindArchive }
