package batch

import (
	"github.com/rzpsarthak13/blockwriter/internal/core"
)

const (
	// MaxRowCount is the hard limit of operations in one block.
	MaxRowCount = 256

	// MaxParameterCount is the hard limit of block parameters. The
	// parameter count must stay strictly below it.
	MaxParameterCount = 1000
)

// admissionController decides whether another operation fits into the
// current block.
type admissionController struct {
	maxRowCount int

	// parameterCount starts at 1: one slot belongs to the block's own
	// output parameter.
	parameterCount int
}

func newAdmissionController(maxRowCount int) *admissionController {
	if maxRowCount <= 0 || maxRowCount > MaxRowCount {
		maxRowCount = MaxRowCount
	}
	return &admissionController{
		maxRowCount:    maxRowCount,
		parameterCount: 1,
	}
}

// canAdmit reports whether op may join a batch currently holding size
// operations. A positive answer commits op's parameters to the running
// count, so the caller must add op right away.
func (a *admissionController) canAdmit(size int, op *core.WriteOperation) bool {
	if size >= a.maxRowCount {
		return false
	}

	additional := op.ParameterCount()
	if a.parameterCount+additional >= MaxParameterCount {
		return false
	}

	a.parameterCount += additional
	return true
}
