package batch

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// accumulator holds the pending run of one operation type.
type accumulator struct {
	run core.Run
}

func newAccumulator(kind core.OperationType) accumulator {
	return accumulator{run: core.Run{Operation: kind}}
}

// accepts reports whether op can extend the pending run.
func (a *accumulator) accepts(op *core.WriteOperation) bool {
	return a.run.Len() == 0 || shapeCompatible(a.run.Operations[0], op)
}

func (a *accumulator) append(pos int, op *core.WriteOperation) {
	a.run.Operations = append(a.run.Operations, op)
	a.run.Positions = append(a.run.Positions, pos)
}

// take returns the pending run and leaves the accumulator empty.
func (a *accumulator) take() *core.Run {
	run := a.run
	a.run = core.Run{Operation: run.Operation}
	return &run
}

// shapeCompatible reports whether two operations can share one rendered
// fragment: same table and schema, same ordered write columns and same
// ordered read columns.
func shapeCompatible(a, b *core.WriteOperation) bool {
	return a.Table == b.Table &&
		a.Schema == b.Schema &&
		sameColumnNames(a.WriteColumns(), b.WriteColumns()) &&
		sameColumnNames(a.ReadColumns(), b.ReadColumns())
}

func sameColumnNames(a, b []*core.ColumnModification) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ColumnName != b[i].ColumnName {
			return false
		}
	}
	return true
}

// runGrouper assigns operations to the insert, update and delete
// accumulators. Flushed runs and fallback statements go to the cached
// "other" stream, which precedes the pending runs in the block body.
type runGrouper struct {
	synth *synthesizer

	inserts accumulator
	updates accumulator
	deletes accumulator

	other strings.Builder
}

func newRunGrouper(synth *synthesizer) *runGrouper {
	return &runGrouper{
		synth:   synth,
		inserts: newAccumulator(core.OperationCreate),
		updates: newAccumulator(core.OperationUpdate),
		deletes: newAccumulator(core.OperationDelete),
	}
}

// add places the operation at batch position pos.
func (g *runGrouper) add(pos int, op *core.WriteOperation) error {
	switch op.Operation {
	case core.OperationCreate:
		return g.extend(&g.inserts, pos, op)
	case core.OperationUpdate:
		return g.extend(&g.updates, pos, op)
	case core.OperationDelete:
		return g.extend(&g.deletes, pos, op)
	case core.OperationOther:
		// Only the insert run is flushed here; pending updates and
		// deletes keep accumulating past the statement.
		if err := g.flush(&g.inserts); err != nil {
			return err
		}
		text, err := g.synth.synthesizeSingle(pos, op)
		if err != nil {
			return err
		}
		g.other.WriteString(text)
		return nil
	default:
		return fmt.Errorf("%w: unknown operation type %q at position %d", core.ErrInvalidOperation, op.Operation, pos)
	}
}

func (g *runGrouper) extend(acc *accumulator, pos int, op *core.WriteOperation) error {
	if !acc.accepts(op) {
		if err := g.flush(acc); err != nil {
			return err
		}
	}
	acc.append(pos, op)
	return nil
}

func (g *runGrouper) flush(acc *accumulator) error {
	text, err := g.synth.synthesizeRun(acc.take())
	if err != nil {
		return err
	}
	g.other.WriteString(text)
	return nil
}

// body renders the pending runs and returns the complete block body:
// the other stream, then the insert, update and delete runs.
func (g *runGrouper) body() (string, error) {
	var body strings.Builder
	body.WriteString(g.other.String())
	body.WriteString("\n")

	for _, acc := range []*accumulator{&g.inserts, &g.updates, &g.deletes} {
		text, err := g.synth.synthesizeRun(acc.take())
		if err != nil {
			return "", err
		}
		body.WriteString(text)
	}
	return body.String(), nil
}
