package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the day/month/year layout used by the survey tables.
const DateLayout = "02/01/2006"

// table wraps a CSV reader and resolves columns by header name.
type table struct {
	name    string
	r       *csv.Reader
	columns map[string]int
	row     int
	record  []string
}

func newTable(name string, r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, schemaErr(name, 0, "", "empty table")
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		columns[h] = i
	}
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, schemaErr(name, 0, col, "missing required column")
		}
	}
	cr.FieldsPerRecord = len(header)

	return &table{name: name, r: cr, columns: columns}, nil
}

// next advances to the next data row. It returns false at end of input.
func (t *table) next() (bool, error) {
	rec, err := t.r.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	t.row++
	if err != nil {
		return false, schemaErr(t.name, t.row, "", "%v", err)
	}
	t.record = rec
	return true, nil
}

func (t *table) str(col string) string {
	return strings.TrimSpace(t.record[t.columns[col]])
}

func (t *table) nonEmpty(col string) (string, error) {
	v := t.str(col)
	if v == "" {
		return "", schemaErr(t.name, t.row, col, "empty value")
	}
	return v, nil
}

func (t *table) float(col string) (float64, error) {
	v, err := t.nonEmpty(col)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, schemaErr(t.name, t.row, col, "invalid number %q", v)
	}
	return f, nil
}

// floatIn parses a number and checks lo <= v <= hi.
func (t *table) floatIn(col string, lo, hi float64) (float64, error) {
	f, err := t.float(col)
	if err != nil {
		return 0, err
	}
	if f < lo || f > hi {
		return 0, schemaErr(t.name, t.row, col, "value %g outside [%g, %g]", f, lo, hi)
	}
	return f, nil
}

func (t *table) boolean(col string) (bool, error) {
	v, err := t.nonEmpty(col)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, schemaErr(t.name, t.row, col, "invalid boolean %q", v)
	}
	return b, nil
}

func (t *table) date(col string) (time.Time, error) {
	v, err := t.nonEmpty(col)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, schemaErr(t.name, t.row, col, "invalid date %q, want dd/mm/yyyy", v)
	}
	return d, nil
}

func (t *table) stage(col string) (Stage, error) {
	v, err := t.nonEmpty(col)
	if err != nil {
		return 0, err
	}
	s, err := ParseStage(v)
	if err != nil {
		return 0, schemaErr(t.name, t.row, col, "%v", err)
	}
	return s, nil
}
