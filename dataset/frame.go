// Package dataset holds the raw tabular data read by the ingestion stage:
// a header plus rows of string cells. Frames are immutable; every operation
// returns a new Frame.
package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// Frame is a table of string cells with named columns.
type Frame struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// New builds a Frame from a header and rows. Every row must have one cell
// per column and column names must be unique.
func New(header []string, rows [][]string) (*Frame, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, errors.NewValidationError("header", "duplicate column name", name)
		}
		index[name] = i
	}
	for _, r := range rows {
		if len(r) != len(header) {
			return nil, errors.NewDimensionError("dataset.New", len(header), len(r), 1)
		}
	}
	return &Frame{header: header, rows: rows, index: index}, nil
}

// ReadCSV loads a comma separated file whose first record is the header.
// A missing file yields an error matching os.ErrNotExist.
func ReadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	fr, err := ReadCSVFrom(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return fr, nil
}

// ReadCSVFrom parses CSV from r. Rows with a different number of fields
// than the header are rejected.
func ReadCSVFrom(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header row")
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return New(header, records[1:])
}

// WriteCSV writes the frame with its header row and no index column,
// creating parent directories as needed.
func (f *Frame) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := f.WriteCSVTo(out); err != nil {
		out.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return out.Close()
}

// WriteCSVTo writes the frame to w.
func (f *Frame) WriteCSVTo(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.header); err != nil {
		return err
	}
	if err := cw.WriteAll(f.rows); err != nil {
		return err
	}
	return cw.Error()
}

// Columns returns a copy of the column names.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.header...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.header)
}

// HasColumn reports whether name is a column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a copy of the cells of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "no such column", name)
	}
	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []string {
	return append([]string(nil), f.rows[i]...)
}

// Select returns the rows at idx, in that order.
func (f *Frame) Select(idx []int) *Frame {
	rows := make([][]string, len(idx))
	for k, i := range idx {
		rows[k] = append([]string(nil), f.rows[i]...)
	}
	return &Frame{header: f.Columns(), rows: rows, index: f.index}
}

// Drop returns the frame without the named column.
func (f *Frame) Drop(name string) (*Frame, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "no such column", name)
	}
	header := make([]string, 0, len(f.header)-1)
	header = append(header, f.header[:j]...)
	header = append(header, f.header[j+1:]...)

	rows := make([][]string, len(f.rows))
	for i, r := range f.rows {
		row := make([]string, 0, len(r)-1)
		row = append(row, r[:j]...)
		rows[i] = append(row, r[j+1:]...)
	}
	return New(header, rows)
}
