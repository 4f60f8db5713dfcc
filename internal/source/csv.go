package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Files names the four extracts inside a source directory.
type Files struct {
	Sales      string
	Expenses   string
	Deliveries string
	Shifts     string
}

var DefaultFiles = Files{
	Sales:      "Sales_Master.csv",
	Expenses:   "Expense_Master.csv",
	Deliveries: "Delivery_Master.csv",
	Shifts:     "Shift_Master.csv",
}

// ReadDir reads every extract named in files. A missing file leaves its
// table nil; any other error is returned.
func ReadDir(dir string, files Files) (*Sources, error) {
	src := &Sources{}
	targets := []struct {
		name string
		file string
		dst  **Table
	}{
		{Sales, files.Sales, &src.Sales},
		{Expenses, files.Expenses, &src.Expenses},
		{Deliveries, files.Deliveries, &src.Deliveries},
		{Shifts, files.Shifts, &src.Shifts},
	}

	for _, tg := range targets {
		if tg.file == "" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, tg.file))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tbl, err := ReadCSV(tg.name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tg.file, err)
		}
		*tg.dst = tbl
	}
	return src, nil
}

// ReadCSV parses a header-first CSV stream. Line numbers count the header as 1.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{Name: name}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	tbl := &Table{Name: name}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				fields[col] = rec[i]
			}
		}
		tbl.Append(line, fields)
	}
	return tbl, nil
}
