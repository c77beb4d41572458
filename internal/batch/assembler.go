package batch

import (
	"strings"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

const (
	blockPrefix   = "EXECUTE BLOCK "
	blockReturns  = "RETURNS (AffectedRows BIGINT) AS BEGIN"
	blockInit     = "AffectedRows=0;"
	blockEpilogue = "END;"
)

// Block is an assembled EXECUTE BLOCK and the arguments bound to the
// placeholders of its parameter header.
type Block struct {
	Text string
	Args []interface{}
}

// assembly is the outcome of compiling one batch.
type assembly struct {
	block    *Block
	mappings []core.ResultSetMapping
}

// assemble groups ops into runs, renders them and wraps the body into
// the block preamble and epilogue. It keeps no state between calls.
func assemble(generator core.StatementGenerator, ops []*core.WriteOperation) (*assembly, error) {
	synth := newSynthesizer(generator, len(ops))
	grouper := newRunGrouper(synth)

	for pos, op := range ops {
		if err := grouper.add(pos, op); err != nil {
			return nil, err
		}
	}

	body, err := grouper.body()
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	text.WriteString(blockPrefix)
	if !synth.headers.empty() {
		text.WriteString("( ")
		text.WriteString(synth.headers.String())
		text.WriteString(") ")
	}
	text.WriteString(blockReturns)
	text.WriteString("\n")
	text.WriteString(blockInit)
	text.WriteString(body)
	text.WriteString(blockEpilogue)

	return &assembly{
		block: &Block{
			Text: strings.TrimSpace(text.String()),
			Args: synth.args,
		},
		mappings: synth.mappings,
	}, nil
}
