package tx

// OutputFeatures flags the special handling an output requires beyond a
// plain spendable UTXO.
type OutputFeatures uint8

const (
	OutputDefault          OutputFeatures = 0
	OutputCoinbase         OutputFeatures = 1 << 0
	OutputMintNonFungible  OutputFeatures = 1 << 1
)

func (f OutputFeatures) IsCoinbase() bool        { return f&OutputCoinbase != 0 }
func (f OutputFeatures) IsMintNonFungible() bool { return f&OutputMintNonFungible != 0 }

// KernelFeatures flags the special handling a kernel requires.
type KernelFeatures uint8

const (
	KernelDefault  KernelFeatures = 0
	KernelCoinbase KernelFeatures = 1 << 0
	KernelBurn     KernelFeatures = 1 << 1
)

func (f KernelFeatures) IsCoinbase() bool { return f&KernelCoinbase != 0 }
func (f KernelFeatures) IsBurn() bool     { return f&KernelBurn != 0 }
