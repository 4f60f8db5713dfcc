package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/source"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05.999999",
	time.RFC3339,
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

var timeLayouts = []string{"15:04:05", "15:04", "3:04 PM", "3:04:05 PM"}

// fieldReader coerces the columns of one record, collecting every problem
// instead of stopping at the first.
type fieldReader struct {
	rec      source.Record
	problems []string
}

func newFieldReader(rec source.Record) *fieldReader {
	return &fieldReader{rec: rec}
}

func (f *fieldReader) Err() error {
	if len(f.problems) == 0 {
		return nil
	}
	return &MalformedRowError{Problems: f.problems}
}

func (f *fieldReader) fail(col, format string, args ...interface{}) {
	f.problems = append(f.problems, col+": "+fmt.Sprintf(format, args...))
}

func (f *fieldReader) required(col string) (string, bool) {
	v, ok := f.rec.Get(col)
	if !ok {
		f.fail(col, "missing")
	}
	return v, ok
}

// Int accepts "12" and the "12.0" a float column turns integers into.
func (f *fieldReader) Int(col string) int64 {
	v, ok := f.required(col)
	if !ok {
		return 0
	}
	return f.parseInt(col, v)
}

func (f *fieldReader) OptInt(col string) *int64 {
	v, ok := f.rec.Get(col)
	if !ok {
		return nil
	}
	n := f.parseInt(col, v)
	return &n
}

func (f *fieldReader) parseInt(col, v string) int64 {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	fl, err := strconv.ParseFloat(v, 64)
	if err != nil || fl != math.Trunc(fl) || math.IsInf(fl, 0) {
		f.fail(col, "%q is not an integer", v)
		return 0
	}
	// 2^63 is exact as a float64; anything at or beyond it has no int64.
	if fl < math.MinInt64 || fl >= -math.MinInt64 {
		f.fail(col, "%q is out of range", v)
		return 0
	}
	return int64(fl)
}

func (f *fieldReader) String(col string) string {
	v, _ := f.required(col)
	return v
}

func (f *fieldReader) OptString(col string) *string {
	v, ok := f.rec.Get(col)
	if !ok {
		return nil
	}
	return &v
}

// Key reads an identifier that a float column may have turned into "12.0".
func (f *fieldReader) Key(col string) string {
	v, ok := f.required(col)
	if !ok {
		return ""
	}
	if strings.HasSuffix(v, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(v, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(v, ".0")
		}
	}
	return v
}

func (f *fieldReader) OptKey(col string) *string {
	if _, ok := f.rec.Get(col); !ok {
		return nil
	}
	v := f.Key(col)
	return &v
}

func (f *fieldReader) Date(col string) time.Time {
	v, ok := f.required(col)
	if !ok {
		return time.Time{}
	}
	t, ok := parseTime(v, dateLayouts)
	if !ok {
		f.fail(col, "%q is not a date", v)
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *fieldReader) OptDate(col string) *time.Time {
	if _, ok := f.rec.Get(col); !ok {
		return nil
	}
	t := f.Date(col)
	return &t
}

func (f *fieldReader) Timestamp(col string) time.Time {
	v, ok := f.required(col)
	if !ok {
		return time.Time{}
	}
	t, ok := parseTime(v, timestampLayouts)
	if !ok {
		f.fail(col, "%q is not a timestamp", v)
		return time.Time{}
	}
	return t.UTC()
}

// Time normalizes a time of day to HH:MM:SS.
func (f *fieldReader) Time(col string) string {
	v, ok := f.required(col)
	if !ok {
		return ""
	}
	t, ok := parseTime(v, timeLayouts)
	if !ok {
		f.fail(col, "%q is not a time of day", v)
		return ""
	}
	return t.Format("15:04:05")
}

func (f *fieldReader) Decimal(col string) decimal.Decimal {
	v, ok := f.required(col)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(v, "$"))
	if err != nil {
		f.fail(col, "%q is not a number", v)
		return decimal.Zero
	}
	return d
}

func (f *fieldReader) OptDecimal(col string) decimal.NullDecimal {
	if _, ok := f.rec.Get(col); !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(f.Decimal(col))
}

// Bool treats a blank value as false.
func (f *fieldReader) Bool(col string) bool {
	v, ok := f.rec.Get(col)
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "true", "t", "yes", "y", "1", "1.0":
		return true
	case "false", "f", "no", "n", "0", "0.0":
		return false
	}
	f.fail(col, "%q is not a boolean", v)
	return false
}

// Enum reads a value that must be one of allowed, compared case-insensitively
// and returned in its canonical spelling.
func (f *fieldReader) Enum(col string, allowed []string) string {
	v, ok := f.required(col)
	if !ok {
		return ""
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a
		}
	}
	f.fail(col, "%q is not one of %s", v, strings.Join(allowed, ", "))
	return ""
}

func parseTime(v string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
