// Package measurements loads and stores photometry tables: delimited text
// measurement tables and FITS binary-table light curves.
package measurements

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lcreduce/pkg/lcreduce"
)

// ErrEmptyTable is returned for input without a header line.
var ErrEmptyTable = errors.New("measurements: empty table")

// Open loads a table by file extension. FITS files also return their header;
// delimited files return a nil header.
func Open(path string) (*lcreduce.Table, *Header, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return ReadFITSFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()
	tbl, err := ReadDelimited(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil, nil
}

// ReadDelimited parses a measurement table. The first non-comment line names
// the columns. Tab, comma and whitespace separators are detected from it.
// Cells that do not parse as numbers load as NaN.
func ReadDelimited(r io.Reader) (*lcreduce.Table, error) {
	br := bufio.NewReader(r)
	var header string
	for {
		line, err := br.ReadString('\n')
		if t := strings.TrimRight(line, "\r\n"); strings.TrimSpace(t) != "" && !strings.HasPrefix(strings.TrimSpace(t), "#") {
			header = t
			break
		}
		if err == io.EOF {
			return nil, ErrEmptyTable
		}
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
	}

	var rows [][]string
	var names []string
	switch {
	case strings.Contains(header, "\t"), strings.Contains(header, ","):
		sep := ','
		if strings.Contains(header, "\t") {
			sep = '\t'
		}
		cr := csv.NewReader(io.MultiReader(strings.NewReader(header+"\n"), br))
		cr.Comma = sep
		cr.Comment = '#'
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		all, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parsing table: %w", err)
		}
		names, rows = all[0], all[1:]
	default:
		names = strings.Fields(header)
		sc := bufio.NewScanner(br)
		sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			rows = append(rows, strings.Fields(line))
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("parsing table: %w", err)
		}
	}

	tbl := lcreduce.NewTable()
	for c, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("col%d", c+1)
		}
		values := make([]float64, len(rows))
		for r, row := range rows {
			values[r] = math.NaN()
			if c < len(row) {
				if v, err := strconv.ParseFloat(strings.TrimSpace(row[c]), 64); err == nil {
					values[r] = v
				}
			}
		}
		if err := tbl.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// WriteDelimited writes the named columns (all columns when cols is empty) as
// a tab-separated table.
func WriteDelimited(w io.Writer, tbl *lcreduce.Table, cols []string) error {
	if len(cols) == 0 {
		cols = tbl.ColumnNames()
	}
	data := make([][]float64, len(cols))
	for i, name := range cols {
		col, ok := tbl.Column(name)
		if !ok {
			return fmt.Errorf("measurements: unknown column %q", name)
		}
		data[i] = col
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
		return err
	}
	buf := make([]byte, 0, 32)
	for r := 0; r < tbl.RowCount(); r++ {
		for c := range data {
			if c > 0 {
				bw.WriteByte('\t')
			}
			buf = strconv.AppendFloat(buf[:0], data[c][r], 'g', 12, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	return nil
}
