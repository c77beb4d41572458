package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

var errBoom = errors.New("boom")

// fakeGenerator renders one line per operation and records every run it
// was asked to render.
type fakeGenerator struct {
	runs []string
	fail core.OperationType
}

func (g *fakeGenerator) render(run *core.Run) (*core.Fragment, error) {
	if run.Operation == g.fail {
		return nil, errBoom
	}
	g.runs = append(g.runs, fmt.Sprintf("%s%v", run.Operation, run.Positions))

	var (
		body    strings.Builder
		headers []string
		args    []interface{}
	)
	for i, op := range run.Operations {
		pos := run.Positions[i]
		fmt.Fprintf(&body, "%s %s %d;\n", run.Operation, op.Table, pos)
		for _, c := range op.Columns {
			if c.UseCurrentValueParameter {
				headers = append(headers, fmt.Sprintf("p%d_%s INTEGER = ?", pos, c.ColumnName))
				args = append(args, c.Value)
			}
		}
	}

	mapping := core.ResultSetRow
	if run.Operation == core.OperationCreate && !run.Operations[0].RequiresResultPropagation() {
		mapping = core.NoResultSet
	}
	return &core.Fragment{
		Body:    body.String(),
		Header:  strings.Join(headers, ", "),
		Args:    args,
		Mapping: mapping,
	}, nil
}

func (g *fakeGenerator) RenderInsertRun(run *core.Run) (*core.Fragment, error) { return g.render(run) }
func (g *fakeGenerator) RenderUpdateRun(run *core.Run) (*core.Fragment, error) { return g.render(run) }
func (g *fakeGenerator) RenderDeleteRun(run *core.Run) (*core.Fragment, error) { return g.render(run) }

func (g *fakeGenerator) RenderSingle(op *core.WriteOperation, _ int) (string, core.ResultSetMapping, error) {
	if g.fail == core.OperationOther {
		return "", core.NoResultSet, errBoom
	}
	return op.Statement + ";\n", core.NoResultSet, nil
}

// fakeCursor yields rows from a slice and counts the primitives used.
type fakeCursor struct {
	rows []core.Row
	pos  int

	advances       int
	reads          int
	nextResultSets int

	// err is returned by the fetch that would consume rows[failAt].
	err    error
	failAt int
}

func (c *fakeCursor) fetch() (core.Row, bool, error) {
	if c.err != nil && c.pos == c.failAt {
		return nil, false, c.err
	}
	if c.pos >= len(c.rows) {
		return nil, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *fakeCursor) Advance() (bool, error) {
	c.advances++
	_, ok, err := c.fetch()
	return ok, err
}

func (c *fakeCursor) Read() (core.Row, bool, error) {
	c.reads++
	return c.fetch()
}

func (c *fakeCursor) NextResultSet() error {
	c.nextResultSets++
	return nil
}

func writeCol(name string, value interface{}) *core.ColumnModification {
	return &core.ColumnModification{ColumnName: name, IsWrite: true, UseCurrentValueParameter: true, Value: value}
}

func keyCol(name string, value interface{}) *core.ColumnModification {
	return &core.ColumnModification{ColumnName: name, IsKey: true, IsCondition: true, UseOriginalValueParameter: true, OriginalValue: value}
}

func readCol(name string) *core.ColumnModification {
	return &core.ColumnModification{ColumnName: name, IsRead: true}
}

func newOp(kind core.OperationType, table string, cols ...*core.ColumnModification) *core.WriteOperation {
	return &core.WriteOperation{
		Table:     table,
		Operation: kind,
		Columns:   cols,
		Record:    &core.Record{Table: table},
	}
}

func otherOp(statement string) *core.WriteOperation {
	return &core.WriteOperation{Operation: core.OperationOther, Statement: statement}
}

// paramOp returns an insert with n current-value parameters.
func paramOp(n int) *core.WriteOperation {
	cols := make([]*core.ColumnModification, n)
	for i := range cols {
		cols[i] = writeCol(fmt.Sprintf("C%d", i), i)
	}
	return newOp(core.OperationCreate, "T", cols...)
}
