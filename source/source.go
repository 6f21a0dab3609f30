// Package source reads dataset rows from Parquet files on local disk, S3,
// HTTP or through DuckDB, and yields them one at a time.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/metrico/healpipe/model"
)

// ErrSourceRead wraps every failure to fetch or decode a source.
var ErrSourceRead = errors.New("source read failed")

func readErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSourceRead, fmt.Sprintf(format, args...))
}

// RowSource yields rows in file order. Next returns io.EOF after the last row.
// RowCount is the number of rows the source declares up front.
type RowSource interface {
	RowCount() int
	Next() (model.Row, error)
	Close() error
}

const (
	EngineArrow  = "arrow"
	EngineDuckDB = "duckdb"
)

// S3Options configures the object store client of s3:// urls.
type S3Options struct {
	Endpoint string `mapstructure:"endpoint"`
	Key      string `mapstructure:"key"`
	Secret   string `mapstructure:"secret"`
	Region   string `mapstructure:"region"`
	Secure   bool   `mapstructure:"secure"`
}

// Options tells Open how to turn the columns of a file into rows.
type Options struct {
	Kind    model.Kind
	Columns model.Columns
	// Engine is EngineArrow (default) or EngineDuckDB.
	Engine    string
	BatchSize int64
	S3        S3Options
	HTTP      *http.Client
}

// OptionsFor returns the options of a dataset with the column defaults of
// its kind applied.
func OptionsFor(ds model.Dataset) Options {
	ds = ds.WithDefaults()
	return Options{Kind: ds.Kind, Columns: ds.Columns, Engine: ds.Engine}
}

// Open dispatches on the url scheme: s3://bucket/key, http(s)://, a
// duckdb: prefix or a plain local path.
func Open(ctx context.Context, url string, opts Options) (RowSource, error) {
	if opts.Kind == "" {
		opts.Kind = model.KindIndividual
	}
	if opts.Columns.Cell == "" {
		opts.Columns = model.Dataset{Kind: opts.Kind, Columns: opts.Columns}.WithDefaults().Columns
	}
	switch {
	case strings.HasPrefix(url, "duckdb:"):
		return openDuckDB(ctx, strings.TrimPrefix(url, "duckdb:"), opts)
	case opts.Engine == EngineDuckDB:
		return openDuckDB(ctx, url, opts)
	case strings.HasPrefix(url, "s3://"):
		return openS3(ctx, url, opts)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return openHTTP(ctx, url, opts)
	case opts.Engine != "" && opts.Engine != EngineArrow:
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
	return openFile(ctx, strings.TrimPrefix(url, "file://"), opts)
}
