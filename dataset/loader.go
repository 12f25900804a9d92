package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/shibukawa/dbfixture"
)

// Loader resolves a dataset location declared by a directive into a Dataset.
// The test class identity participates in resolution so that per-class fixture
// directories can shadow shared ones.
type Loader interface {
	LoadDataset(testClass, location string) (*Dataset, error)
}

// FileLoader loads datasets from YAML (.yaml/.yml) or CSV (.csv) files under a base
// directory. A location resolves to <base>/<testClass>/<location> when that file
// exists, otherwise to <base>/<location>.
type FileLoader struct {
	BaseDir string
}

// NewFileLoader creates a FileLoader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{BaseDir: dir}
}

// LoadDataset implements Loader.
func (l *FileLoader) LoadDataset(testClass, location string) (*Dataset, error) {
	path := l.resolve(testClass, location)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dbfixture.ErrDatasetLoad, location, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ds, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", dbfixture.ErrDatasetLoad, location, err)
		}

		return ds, nil
	case ".csv":
		tableName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		table, err := ParseCSV(tableName, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", dbfixture.ErrDatasetLoad, location, err)
		}

		ds := New()
		ds.AddTable(table)

		return ds, nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported dataset format %q", dbfixture.ErrDatasetLoad, location, filepath.Ext(path))
	}
}

func (l *FileLoader) resolve(testClass, location string) string {
	if filepath.IsAbs(location) {
		return location
	}

	if testClass != "" {
		scoped := filepath.Join(l.BaseDir, testClass, location)
		if _, err := os.Stat(scoped); err == nil {
			return scoped
		}
	}

	return filepath.Join(l.BaseDir, location)
}

// ParseYAML parses a YAML dataset document: a mapping of table name to row list.
// Table declaration order and the column order of the first occurrence of each key
// are preserved.
func ParseYAML(data []byte) (*Dataset, error) {
	var doc any

	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("failed to parse dataset YAML: %w", err)
	}

	ds := New()

	if doc == nil {
		return ds, nil
	}

	root, ok := doc.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("dataset YAML root must be a mapping of table names, got %T", doc)
	}

	for _, item := range root {
		tableName := fmt.Sprintf("%v", item.Key)

		table := &Table{Name: tableName}

		rows, ok := item.Value.([]any)
		if !ok && item.Value != nil {
			return nil, fmt.Errorf("table %s: rows must be a sequence, got %T", tableName, item.Value)
		}

		for i, raw := range rows {
			rowMap, ok := raw.(yaml.MapSlice)
			if !ok {
				return nil, fmt.Errorf("table %s: row %d must be a mapping, got %T", tableName, i, raw)
			}

			row := make(Row, len(rowMap))

			for _, cell := range rowMap {
				column := fmt.Sprintf("%v", cell.Key)
				if !table.HasColumn(column) {
					table.Columns = append(table.Columns, column)
				}

				row[column] = normalizeValue(cell.Value)
			}

			table.Rows = append(table.Rows, row)
		}

		ds.AddTable(table)
	}

	return ds, nil
}

// ParseCSV parses a single-table CSV document. The first record is the column header;
// empty cells become NULL.
func ParseCSV(tableName string, data []byte) (*Table, error) {
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, dbfixture.ErrInvalidCSVFormat
	}

	table := &Table{Name: tableName, Columns: records[0]}

	for _, record := range records[1:] {
		row := make(Row, len(table.Columns))

		for i, column := range table.Columns {
			if i >= len(record) || record[i] == "" {
				row[column] = nil
				continue
			}

			row[column] = record[i]
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
