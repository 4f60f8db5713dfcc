package source

import (
	"strconv"
	"strings"
)

const (
	Sales      = "sales"
	Expenses   = "expenses"
	Deliveries = "deliveries"
	Shifts     = "shifts"
)

// Record is one parsed row of a source extract.
type Record struct {
	Table  string
	Line   int
	Fields map[string]string
}

// ID identifies the record in failure reports, e.g. "sales:17".
func (r Record) ID() string {
	return r.Table + ":" + strconv.Itoa(r.Line)
}

// blanks are the spellings a spreadsheet or dataframe export uses for a
// missing value.
var blanks = map[string]bool{
	"":     true,
	"nan":  true,
	"NaN":  true,
	"NULL": true,
	"null": true,
	"None": true,
	"NaT":  true,
}

// Get returns the trimmed value of col and whether it is present.
func (r Record) Get(col string) (string, bool) {
	v, ok := r.Fields[col]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if blanks[v] {
		return "", false
	}
	return v, true
}

// Has reports whether every column is present.
func (r Record) Has(cols ...string) bool {
	for _, c := range cols {
		if _, ok := r.Get(c); !ok {
			return false
		}
	}
	return true
}

type Table struct {
	Name    string
	Records []Record
}

func NewTable(name string, rows ...map[string]string) *Table {
	t := &Table{Name: name}
	for i, row := range rows {
		t.Append(i+2, row) // line 1 is the header
	}
	return t
}

func (t *Table) Append(line int, fields map[string]string) {
	t.Records = append(t.Records, Record{Table: t.Name, Line: line, Fields: fields})
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Sources is the full set of extracts a load consumes. Any table may be nil.
type Sources struct {
	Sales      *Table
	Expenses   *Table
	Deliveries *Table
	Shifts     *Table
}
