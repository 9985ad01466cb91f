// Package export reads and writes the columnar observation dump: one
// space-separated row per coordinate axis, in axis order, then one row of
// observed values.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// ErrMalformed reports a dump that does not follow the columnar layout.
var ErrMalformed = errors.New("malformed observation dump")

// WriteColumnar writes locs and vals to w. Zero observations write nothing.
func WriteColumnar(w io.Writer, locs [][]float64, vals []float64) error {
	if len(locs) != len(vals) {
		return fmt.Errorf("export: %d locations against %d values", len(locs), len(vals))
	}
	if len(vals) == 0 {
		return nil
	}
	dim := len(locs[0])
	for i, loc := range locs {
		if len(loc) != dim {
			return fmt.Errorf("export: location %d has %d axes, first has %d", i, len(loc), dim)
		}
	}
	bw := bufio.NewWriter(w)
	for axis := 0; axis < dim; axis++ {
		for i, loc := range locs {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(loc[axis], 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	for i, v := range vals {
		if i > 0 {
			bw.WriteByte(' ')
		}
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// ReadColumnar parses a dump written by WriteColumnar. An empty reader
// yields no observations.
func ReadColumnar(r io.Reader) ([][]float64, []float64, error) {
	sc := bufio.NewScanner(r)
	// Rows hold every observation of the run, so they outgrow the default
	// scanner buffer on long surveys.
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var rows [][]float64
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("export: %w: row %d: %v", ErrMalformed, len(rows), err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("export: read dump: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("export: %w: need at least one axis row and one value row", ErrMalformed)
	}
	n := len(rows[0])
	for i, row := range rows {
		if len(row) != n {
			return nil, nil, fmt.Errorf("export: %w: row %d has %d columns, first has %d", ErrMalformed, i, len(row), n)
		}
	}
	dim := len(rows) - 1
	locs := make([][]float64, n)
	for i := 0; i < n; i++ {
		loc := make([]float64, dim)
		for axis := 0; axis < dim; axis++ {
			loc[axis] = rows[axis][i]
		}
		locs[i] = loc
	}
	vals := make([]float64, n)
	copy(vals, rows[dim])
	return locs, vals, nil
}

// WriteColumnarFile writes the dump to path, replacing any existing file.
func WriteColumnarFile(path string, locs [][]float64, vals []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteColumnar(f, locs, vals); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadColumnarFile loads a dump from path.
func ReadColumnarFile(path string) ([][]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadColumnar(f)
}

type fileExporter struct {
	path string
}

// File returns an exporter that dumps terminal observations to path.
func File(path string) core.Exporter {
	return fileExporter{path: path}
}

func (f fileExporter) Export(locs [][]float64, vals []float64) error {
	return WriteColumnarFile(f.path, locs, vals)
}
