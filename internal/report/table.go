// Package report prints aligned columns of command output.
package report

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"
)

// Table collects rows and writes them with aligned columns.
type Table struct {
	t    *uitable.Table
	rows int
}

// NewTable creates an empty table. Columns are separated by two spaces.
func NewTable() *Table {
	t := uitable.New()
	t.Separator = "  "
	return &Table{t: t}
}

// RightAlign right-justifies column col (zero based).
func (t *Table) RightAlign(col int) {
	t.t.RightAlign(col)
}

// AddRow appends a row of cells.
func (t *Table) AddRow(cells ...interface{}) {
	t.t.AddRow(cells...)
	t.rows++
}

// Len returns the number of rows added.
func (t *Table) Len() int {
	return t.rows
}

// Write prints the table followed by a newline. An empty table prints
// nothing.
func (t *Table) Write(w io.Writer) error {
	if t.rows == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, t.t.String())
	return err
}
