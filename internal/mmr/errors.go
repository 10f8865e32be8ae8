package mmr

import "errors"

// ErrPositionOutOfRange is returned when a position does not name a leaf
// that has ever been pushed.
var ErrPositionOutOfRange = errors.New("mmr: position out of range")

// ErrAlreadyDeleted is returned by Delete when the position is already
// marked spent.
var ErrAlreadyDeleted = errors.New("mmr: position already deleted")

// ErrBeyondPruningHorizon is returned when a historical query or a
// rewind reaches back past the oldest checkpoint the accumulator still
// keeps individually addressable. Once checkpoints fold into the
// horizon checkpoint, the heights they used to represent individually
// are gone for good.
var ErrBeyondPruningHorizon = errors.New("mmr: beyond pruning horizon")

// ErrNothingToRewind is returned when Rewind is asked to undo more
// checkpoints than are currently retained.
var ErrNothingToRewind = errors.New("mmr: not enough checkpoints to rewind")
