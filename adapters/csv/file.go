package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/moby/sys/atomicwriter"
)

const filePerm = 0o600

// file persists one table as a CSV file with a header row.
type file[R any] struct {
	path  string
	codec codec[R]
}

func (f *file[R]) Load() ([]R, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		// first run: materialize the header so the layout is visible on disk
		return nil, f.Save(nil)
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", f.path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range f.codec.required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", f.path, col)
		}
	}

	var records []R
	for line := 2; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.path, err)
		}

		values := make(row, len(index))
		for name, i := range index {
			if i < len(fields) {
				values[name] = fields[i]
			}
		}
		rec, err := f.codec.decode(values)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", f.path, line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Save writes the whole table to a temporary file and renames it over the
// old one, so a crash or a concurrent reader never sees a partial table.
func (f *file[R]) Save(records []R) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(f.codec.columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(f.codec.encode(rec)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return atomicwriter.WriteFile(f.path, buf.Bytes(), filePerm)
}
