package block

import "github.com/klingnet-chain/core/pkg/tx"

// Block is a header plus the inputs, outputs and kernels it commits to.
// Unlike an account-model block, there is no single flat transaction
// list: a block's body is the union of every transaction's inputs,
// outputs and kernels once cut-through has removed outputs spent by
// inputs within the same block.
type Block struct {
	Header  Header
	Inputs  []tx.Input
	Outputs []tx.Output
	Kernels []tx.Kernel
}

// NewBlock assembles a block body from its header and components.
func NewBlock(header Header, inputs []tx.Input, outputs []tx.Output, kernels []tx.Kernel) *Block {
	return &Block{Header: header, Inputs: inputs, Outputs: outputs, Kernels: kernels}
}
