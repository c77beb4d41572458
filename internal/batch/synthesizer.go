package batch

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// headerList joins parameter declarations of several runs. The comma is
// written only in front of the second and later non-empty declarations.
type headerList struct {
	text      strings.Builder
	separator string
}

func (h *headerList) append(fragment string) {
	if fragment == "" {
		return
	}
	h.text.WriteString(h.separator)
	h.text.WriteString(fragment)
	h.separator = ","
}

func (h *headerList) empty() bool {
	return h.text.Len() == 0
}

func (h *headerList) String() string {
	return h.text.String()
}

// synthesizer renders runs through the statement generator and records
// the result set mapping of every batch position.
type synthesizer struct {
	generator core.StatementGenerator

	headers headerList
	args    []interface{}

	// mappings is indexed by batch position.
	mappings []core.ResultSetMapping
}

func newSynthesizer(generator core.StatementGenerator, size int) *synthesizer {
	return &synthesizer{
		generator: generator,
		mappings:  make([]core.ResultSetMapping, size),
	}
}

// synthesizeRun renders a complete run and returns its body text. An
// empty run renders nothing.
func (s *synthesizer) synthesizeRun(run *core.Run) (string, error) {
	if run == nil || run.Len() == 0 {
		return "", nil
	}

	var (
		fragment *core.Fragment
		err      error
	)
	switch run.Operation {
	case core.OperationCreate:
		fragment, err = s.generator.RenderInsertRun(run)
	case core.OperationUpdate:
		fragment, err = s.generator.RenderUpdateRun(run)
	case core.OperationDelete:
		fragment, err = s.generator.RenderDeleteRun(run)
	default:
		return "", fmt.Errorf("%w: %s operations cannot be grouped", core.ErrInvalidOperation, run.Operation)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render %s run of %d operation(s) starting at position %d: %w",
			run.Operation, run.Len(), run.Positions[0], err)
	}
	if fragment == nil {
		return "", fmt.Errorf("generator returned no fragment for %s run starting at position %d",
			run.Operation, run.Positions[0])
	}

	s.headers.append(fragment.Header)
	s.args = append(s.args, fragment.Args...)

	last := run.Len() - 1
	for i, pos := range run.Positions {
		switch {
		case fragment.Mapping == core.NoResultSet:
			s.mappings[pos] = core.NoResultSet
		case i == last:
			s.mappings[pos] = core.LastInResultSet
		default:
			s.mappings[pos] = core.ResultSetRow
		}
	}
	return fragment.Body, nil
}

// synthesizeSingle renders op through the fallback path. The fallback
// path contributes no header declarations.
func (s *synthesizer) synthesizeSingle(pos int, op *core.WriteOperation) (string, error) {
	text, mapping, err := s.generator.RenderSingle(op, pos)
	if err != nil {
		return "", fmt.Errorf("failed to render %s operation at position %d: %w", op.Operation, pos, err)
	}
	s.mappings[pos] = mapping
	return text, nil
}
