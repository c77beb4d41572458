package core

// ResultSetMapping describes what the response cursor holds for one
// operation of an execute block.
type ResultSetMapping int

const (
	// NoResultSet means the operation produces no row.
	NoResultSet ResultSetMapping = iota

	// ResultSetRow means the operation produces one row that is followed
	// by rows of other operations in the same result set.
	ResultSetRow

	// LastInResultSet means the operation produces the last row of its
	// result set.
	LastInResultSet
)

func (m ResultSetMapping) String() string {
	switch m {
	case NoResultSet:
		return "NoResultSet"
	case ResultSetRow:
		return "ResultSetRow"
	case LastInResultSet:
		return "LastInResultSet"
	default:
		return "Unknown"
	}
}

// Run is a group of shape-compatible operations of the same type that
// are rendered as a single fragment.
type Run struct {
	// Operation is the type shared by all members.
	Operation OperationType

	// Operations are the members in submission order.
	Operations []*WriteOperation

	// Positions holds the batch position of each member.
	Positions []int
}

// Len returns the number of members in the run.
func (r *Run) Len() int {
	return len(r.Operations)
}

// Fragment is the rendered text of one run.
type Fragment struct {
	// Body is appended to the block body.
	Body string

	// Header declares the block parameters used by Body, without the
	// surrounding parentheses. Empty when the run has no parameters.
	Header string

	// Args are bound to the Header placeholders, in declaration order.
	Args []interface{}

	// Mapping is NoResultSet when the run produces no rows and
	// ResultSetRow otherwise.
	Mapping ResultSetMapping
}

// StatementGenerator renders SQL for runs of operations and for single
// operations that cannot be grouped.
type StatementGenerator interface {
	// RenderInsertRun renders all members of an insert run.
	RenderInsertRun(run *Run) (*Fragment, error)

	// RenderUpdateRun renders all members of an update run.
	RenderUpdateRun(run *Run) (*Fragment, error)

	// RenderDeleteRun renders all members of a delete run.
	RenderDeleteRun(run *Run) (*Fragment, error)

	// RenderSingle renders an operation through the fallback path. The
	// fallback path never declares block parameters.
	RenderSingle(op *WriteOperation, position int) (string, ResultSetMapping, error)
}

// Row holds the column values of one materialized result row.
type Row []interface{}

// ResultCursor is the forward-only response of an executed block.
type ResultCursor interface {
	// Advance consumes one row without materializing it and reports
	// whether a row existed.
	Advance() (bool, error)

	// Read consumes one row, materializes its values and reports whether
	// a row existed.
	Read() (Row, bool, error)

	// NextResultSet moves past the current result set.
	NextResultSet() error
}
