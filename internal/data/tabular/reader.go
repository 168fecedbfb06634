// Package tabular reads the delimited expression, differential and metadata
// tables the server is started with.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ConfigError reports an input table that cannot be used. It is fatal at
// startup.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "configuration error: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(path string, err error) error {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigError{Path: path, Err: err}
}

// Delimiters are the candidate field separators, in tie-break order.
const Delimiters = ",\t;|:~!@#$%^&*"

// Table is a raw delimited table: a header row and string records padded to
// the header width.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ReadFile opens and parses path. The table is named after the file's base name.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, configErr(path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, configErr(path, err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Read parses a delimited table. gzip, zstd and zip input is detected from
// its magic bytes. GCT files (first line "#1.2") are recognised and their
// Description column is dropped.
func Read(r io.Reader) (*Table, error) {
	data, err := decompress(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	gct := bytes.HasPrefix(data, []byte("#1.2"))
	if gct {
		data = skipLines(data, 2)
	}

	header := data
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}
	if len(bytes.TrimSpace(header)) == 0 {
		return nil, errors.New("empty table")
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(string(header))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}

	t := &Table{Columns: trimAll(records[0])}
	if rowNamesOnly(records) {
		// R writes row names without a header cell.
		t.Columns = append([]string{""}, t.Columns...)
	}
	for n, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		if len(rec) > len(t.Columns) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", n+2, len(rec), len(t.Columns))
		}
		row := make([]string, len(t.Columns))
		copy(row, trimAll(rec))
		t.Rows = append(t.Rows, row)
	}

	if gct && len(t.Columns) > 1 && strings.EqualFold(t.Columns[1], "Description") {
		t.dropColumn(1)
	}
	return t, nil
}

// rowNamesOnly reports whether every data record has exactly one field more
// than the header.
func rowNamesOnly(records [][]string) bool {
	width := len(records[0])
	seen := false
	for _, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		if len(rec) != width+1 {
			return false
		}
		seen = true
	}
	return seen
}

func blankRecord(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}

func (t *Table) dropColumn(j int) {
	t.Columns = append(t.Columns[:j:j], t.Columns[j+1:]...)
	for i, row := range t.Rows {
		t.Rows[i] = append(row[:j:j], row[j+1:]...)
	}
}

// Column returns the position of the named column.
func (t *Table) Column(name string) (int, bool) {
	for j, c := range t.Columns {
		if c == name {
			return j, true
		}
	}
	return -1, false
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func skipLines(data []byte, n int) []byte {
	for ; n > 0; n-- {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil
		}
		data = data[i+1:]
	}
	return data
}

// sniffDelimiter picks the candidate that occurs most often in the header.
func sniffDelimiter(header string) rune {
	best, bestCount := ',', 0
	for _, c := range Delimiters {
		if n := strings.Count(header, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	zipMagic  = []byte("PK\x03\x04")
)

func decompress(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4)

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)

	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)

	case bytes.HasPrefix(head, zipMagic):
		raw, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return nil, fmt.Errorf("zip: %w", err)
		}
		if len(zr.File) != 1 {
			return nil, fmt.Errorf("zip: expected exactly one file, found %d", len(zr.File))
		}
		f, err := zr.File[0].Open()
		if err != nil {
			return nil, fmt.Errorf("zip: %w", err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(br)
}
