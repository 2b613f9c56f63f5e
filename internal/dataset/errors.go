package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrJoinMismatch is returned by strict joins when a survey table references
// sites missing from the site table.
var ErrJoinMismatch = errors.New("survey table references unknown sites")

// SchemaError reports a missing column or an invalid value in an input table.
// Row is the 1-based data row (header excluded); 0 means the header itself.
type SchemaError struct {
	Table  string
	Row    int
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Table)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

func schemaErr(table string, row int, column, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Table: table, Row: row, Column: column, Reason: fmt.Sprintf(format, args...)}
}
