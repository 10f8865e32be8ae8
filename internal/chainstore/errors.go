package chainstore

import "errors"

// Result-shaping sentinels for AddBlock, matching the engine's public
// contract: Ok(reorg_info) | OrphanBlock | BlockExists | Invalid(reason).
var (
	ErrBlockExists         = errors.New("chainstore: block already known")
	ErrOrphan              = errors.New("chainstore: parent unknown, stored as orphan")
	ErrBeyondPruningHorizon = errors.New("chainstore: requested state is beyond the pruning horizon")
	ErrGenesisAlreadySet   = errors.New("chainstore: chain already has a genesis block")
	ErrNoGenesis           = errors.New("chainstore: chain has no genesis block yet")
	ErrMMRRootMismatch     = errors.New("chainstore: candidate block's declared MMR root does not match the computed root")
	ErrOrphanPoolFull      = errors.New("chainstore: orphan pool is at capacity")
	ErrReorgAborted        = errors.New("chainstore: reorg aborted, chain restored to its pre-reorg tip")
)
