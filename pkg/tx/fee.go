package tx

// MinFeeForWeight returns the minimum acceptable fee for a transaction of
// the given weight at the given fee-per-gram rate. A transaction whose
// recorded kernel fees fall short of this is rejected by the unconfirmed
// pool before it is ever broadcast.
func MinFeeForWeight(weight uint64, feePerGram uint64) uint64 {
	return weight * feePerGram
}

// MeetsMinFee reports whether the transaction's total kernel fee covers
// its own weight at the given fee-per-gram rate.
func (t *Transaction) MeetsMinFee(feePerGram uint64) bool {
	return t.TotalFee() >= MinFeeForWeight(t.Weight(), feePerGram)
}
