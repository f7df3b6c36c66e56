package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Loader reads the file at path into a Table.
type Loader func(ctx context.Context, path string, opt Options) (*Table, error)

// ErrUnsupportedFormat is returned by Load for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var loaders = map[string]Loader{}

// RegisterLoader registers a loader for a lowercase file extension (".csv").
func RegisterLoader(ext string, l Loader) { loaders[strings.ToLower(ext)] = l }

// SupportedExtensions lists registered extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(loaders))
	for k := range loaders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load dispatches to the loader registered for the file extension.
func Load(ctx context.Context, path string, opt Options) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), ", "))
	}
	return l(ctx, path, opt)
}

func init() {
	csvLoader := func(_ context.Context, path string, opt Options) (*Table, error) { return LoadCSV(path, opt) }
	RegisterLoader(".csv", csvLoader)
	RegisterLoader(".tsv", csvLoader)
	RegisterLoader(".txt", csvLoader)
	RegisterLoader(".xlsx", func(_ context.Context, path string, opt Options) (*Table, error) { return LoadXLSX(path, opt) })
	sqliteLoader := func(ctx context.Context, path string, opt Options) (*Table, error) {
		if strings.TrimSpace(opt.Source) == "" {
			return nil, fmt.Errorf("sqlite source %s: a table name or query is required", filepath.Base(path))
		}
		return LoadSQLite(ctx, path, opt.Source, opt)
	}
	RegisterLoader(".db", sqliteLoader)
	RegisterLoader(".sqlite", sqliteLoader)
	RegisterLoader(".sqlite3", sqliteLoader)
}
