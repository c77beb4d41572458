// Package sqlgen renders write operations as Firebird PSQL statements
// for use inside an EXECUTE BLOCK.
//
// Every parameter of a rendered run is declared in the block header as
// p<position>_<column> (current value) or o<position>_<column> (original
// value), where <column> is the index of the column in the operation.
// The arguments of a fragment follow the declaration order.
//
// AffectedRows is the block's only output column. A statement with a read
// column returns its value INTO :AffectedRows, overwriting the counter
// that ROW_COUNT confirmations add to. The column of a suspended row is
// therefore that row's own output and not a total of affected rows;
// confirmation rows are only counted, never read.
package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// ErrUnsupportedReadColumns is returned for operations whose read columns
// cannot be returned through the block's single BIGINT output column.
var ErrUnsupportedReadColumns = errors.New("unsupported read columns")

const (
	confirmRowCount = "IF (ROW_COUNT > 0) THEN\nBEGIN\nAffectedRows = AffectedRows + ROW_COUNT;\nSUSPEND;\nEND\n"
	confirmReturned = "IF (ROW_COUNT > 0) THEN\nSUSPEND;\n"
	countRowCount   = "AffectedRows = AffectedRows + ROW_COUNT;\n"
)

// FirebirdGenerator implements core.StatementGenerator for Firebird.
type FirebirdGenerator struct {
	mapper *TypeMapper
}

// NewFirebirdGenerator creates a new Firebird statement generator.
func NewFirebirdGenerator() *FirebirdGenerator {
	return &FirebirdGenerator{
		mapper: NewTypeMapper(),
	}
}

// RenderInsertRun renders one INSERT per member. Members without a read
// column only add ROW_COUNT to the block counter and produce no row.
func (g *FirebirdGenerator) RenderInsertRun(run *core.Run) (*core.Fragment, error) {
	f := g.newFragment()
	mapping := core.NoResultSet

	for i, op := range run.Operations {
		pos := run.Positions[i]
		returning, err := g.returning(op)
		if err != nil {
			return nil, err
		}
		params, err := f.declareRow(pos, op)
		if err != nil {
			return nil, err
		}

		var columns, values []string
		for idx, col := range op.Columns {
			if !col.IsWrite {
				continue
			}
			value, err := f.value(idx, col, params)
			if err != nil {
				return nil, err
			}
			columns = append(columns, quote(col.ColumnName))
			values = append(values, value)
		}

		if len(columns) == 0 {
			fmt.Fprintf(&f.body, "INSERT INTO %s DEFAULT VALUES%s;\n", tableName(op), returning)
		} else {
			fmt.Fprintf(&f.body, "INSERT INTO %s (%s) VALUES (%s)%s;\n",
				tableName(op), strings.Join(columns, ", "), strings.Join(values, ", "), returning)
		}

		if returning == "" {
			f.body.WriteString(countRowCount)
		} else {
			f.body.WriteString("SUSPEND;\n")
			mapping = core.ResultSetRow
		}
	}
	return f.fragment(mapping), nil
}

// RenderUpdateRun renders one UPDATE per member. Each affected row
// yields one confirmation row.
func (g *FirebirdGenerator) RenderUpdateRun(run *core.Run) (*core.Fragment, error) {
	f := g.newFragment()

	for i, op := range run.Operations {
		pos := run.Positions[i]
		returning, err := g.returning(op)
		if err != nil {
			return nil, err
		}
		params, err := f.declareRow(pos, op)
		if err != nil {
			return nil, err
		}

		var sets []string
		for idx, col := range op.Columns {
			if !col.IsWrite {
				continue
			}
			value, err := f.value(idx, col, params)
			if err != nil {
				return nil, err
			}
			sets = append(sets, quote(col.ColumnName)+" = "+value)
		}
		if len(sets) == 0 {
			return nil, fmt.Errorf("%w: UPDATE on %s at position %d writes no columns", core.ErrInvalidOperation, op.Table, pos)
		}

		where, err := f.where(pos, op, params)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&f.body, "UPDATE %s SET %s WHERE %s%s;\n", tableName(op), strings.Join(sets, ", "), where, returning)
		f.confirm(returning)
	}
	return f.fragment(core.ResultSetRow), nil
}

// RenderDeleteRun renders one DELETE per member. Each affected row
// yields one confirmation row.
func (g *FirebirdGenerator) RenderDeleteRun(run *core.Run) (*core.Fragment, error) {
	f := g.newFragment()

	for i, op := range run.Operations {
		pos := run.Positions[i]
		returning, err := g.returning(op)
		if err != nil {
			return nil, err
		}
		params, err := f.declareRow(pos, op)
		if err != nil {
			return nil, err
		}
		where, err := f.where(pos, op, params)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&f.body, "DELETE FROM %s WHERE %s%s;\n", tableName(op), where, returning)
		f.confirm(returning)
	}
	return f.fragment(core.ResultSetRow), nil
}

// RenderSingle renders the raw statement of an OTHER operation.
func (g *FirebirdGenerator) RenderSingle(op *core.WriteOperation, position int) (string, core.ResultSetMapping, error) {
	statement := strings.TrimSuffix(strings.TrimSpace(op.Statement), ";")
	if statement == "" {
		return "", core.NoResultSet, fmt.Errorf("%w: empty statement at position %d", core.ErrInvalidOperation, position)
	}
	return statement + ";\n", core.NoResultSet, nil
}

// returning renders the RETURNING clause for op's read column, if any.
func (g *FirebirdGenerator) returning(op *core.WriteOperation) (string, error) {
	reads := op.ReadColumns()
	switch {
	case len(reads) == 0:
		return "", nil
	case len(reads) > 1:
		return "", fmt.Errorf("%w: %s on %s reads %d columns, at most one is supported",
			ErrUnsupportedReadColumns, op.Operation, op.Table, len(reads))
	}

	col := reads[0]
	if col.StoreType != "" && !g.mapper.IsIntegral(col.StoreType) {
		return "", fmt.Errorf("%w: column %s of type %s cannot be returned as BIGINT",
			ErrUnsupportedReadColumns, col.ColumnName, col.StoreType)
	}
	return " RETURNING " + quote(col.ColumnName) + " INTO :AffectedRows", nil
}

// fragmentBuilder collects the body, declarations and arguments of one
// run.
type fragmentBuilder struct {
	mapper  *TypeMapper
	body    strings.Builder
	headers []string
	args    []interface{}
}

// rowParams maps column indexes to declared parameter references.
type rowParams struct {
	current  map[int]string
	original map[int]string
}

func (g *FirebirdGenerator) newFragment() *fragmentBuilder {
	return &fragmentBuilder{mapper: g.mapper}
}

func (f *fragmentBuilder) fragment(mapping core.ResultSetMapping) *core.Fragment {
	return &core.Fragment{
		Body:    f.body.String(),
		Header:  strings.Join(f.headers, ", "),
		Args:    f.args,
		Mapping: mapping,
	}
}

// declareRow declares the parameters of op in column order.
func (f *fragmentBuilder) declareRow(pos int, op *core.WriteOperation) (*rowParams, error) {
	params := &rowParams{
		current:  make(map[int]string),
		original: make(map[int]string),
	}
	for i, col := range op.Columns {
		if col.UseCurrentValueParameter {
			ref, err := f.declare(fmt.Sprintf("p%d_%d", pos, i), col, col.Value)
			if err != nil {
				return nil, err
			}
			params.current[i] = ref
		}
		if col.UseOriginalValueParameter {
			ref, err := f.declare(fmt.Sprintf("o%d_%d", pos, i), col, col.OriginalValue)
			if err != nil {
				return nil, err
			}
			params.original[i] = ref
		}
	}
	return params, nil
}

func (f *fragmentBuilder) declare(name string, col *core.ColumnModification, value interface{}) (string, error) {
	storeType := col.StoreType
	if storeType == "" {
		storeType = f.mapper.InferStoreType(value)
	}
	arg, err := f.mapper.ConvertToDBValue(value, storeType)
	if err != nil {
		return "", fmt.Errorf("failed to convert value for column '%s': %w", col.ColumnName, err)
	}
	f.headers = append(f.headers, fmt.Sprintf("%s %s = ?", name, storeType))
	f.args = append(f.args, arg)
	return ":" + name, nil
}

// value renders the new value of a write column.
func (f *fragmentBuilder) value(idx int, col *core.ColumnModification, params *rowParams) (string, error) {
	if ref, ok := params.current[idx]; ok {
		return ref, nil
	}
	lit, err := f.mapper.Literal(col.Value)
	if err != nil {
		return "", fmt.Errorf("column '%s': %w", col.ColumnName, err)
	}
	return lit, nil
}

// where renders the row selection of an UPDATE or DELETE.
func (f *fragmentBuilder) where(pos int, op *core.WriteOperation, params *rowParams) (string, error) {
	var conds []string
	for idx, col := range op.Columns {
		if !col.IsCondition && !col.IsKey {
			continue
		}
		cond, err := f.condition(idx, col, params)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 0 {
		return "", fmt.Errorf("%w: %s on %s at position %d has no key or condition columns",
			core.ErrInvalidOperation, op.Operation, op.Table, pos)
	}
	return strings.Join(conds, " AND "), nil
}

func (f *fragmentBuilder) condition(idx int, col *core.ColumnModification, params *rowParams) (string, error) {
	name := quote(col.ColumnName)
	switch {
	case col.UseOriginalValueParameter:
		if col.OriginalValue == nil {
			return name + " IS NULL", nil
		}
		return name + " = " + params.original[idx], nil
	case col.UseCurrentValueParameter:
		if col.Value == nil {
			return name + " IS NULL", nil
		}
		return name + " = " + params.current[idx], nil
	}

	value := col.OriginalValue
	if value == nil {
		value = col.Value
	}
	if value == nil {
		return name + " IS NULL", nil
	}
	lit, err := f.mapper.Literal(value)
	if err != nil {
		return "", fmt.Errorf("column '%s': %w", col.ColumnName, err)
	}
	return name + " = " + lit, nil
}

func (f *fragmentBuilder) confirm(returning string) {
	if returning == "" {
		f.body.WriteString(confirmRowCount)
		return
	}
	f.body.WriteString(confirmReturned)
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func tableName(op *core.WriteOperation) string {
	if op.Schema == "" {
		return quote(op.Table)
	}
	return quote(op.Schema) + "." + quote(op.Table)
}
