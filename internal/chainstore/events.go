package chainstore

import (
	"github.com/klingnet-chain/core/pkg/block"
	"github.com/klingnet-chain/core/pkg/types"
)

// EventKind distinguishes a plain extension from a reorg.
type EventKind int

const (
	EventBlockAdded EventKind = iota
	EventReorg
)

// Event is published once per chain-altering commit. For a reorg,
// Removed is reported before Added, matching the ordering guarantee
// each subscriber sees.
type Event struct {
	Kind    EventKind
	Added   []*block.Block
	Removed []*block.Block
}

// ReorgInfo is returned in the Ok(reorg_info) branch of AddBlock; empty
// (Removed == nil) for a plain extension.
type ReorgInfo struct {
	Removed []types.Hash
	Added   []types.Hash
}

// subscriber is a bounded, per-reader ordered event channel. When a slow
// consumer's channel is full, the event is lost for that subscriber
// rather than allowed to stall block acceptance; the subscriber itself
// stays registered until its cancel function runs.
type subscriber struct {
	ch     chan Event
	closed bool
}

const defaultSubscriberCapacity = 64

// Subscribe returns a channel of chain events and a cancel function.
// Dropping the receiver (not reading, then calling cancel, or simply
// letting it be garbage collected after cancel) stops delivery; a full
// channel causes that subscriber's events to be dropped rather than
// blocking the committing writer.
func (cs *ChainStore) Subscribe() (<-chan Event, func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, defaultSubscriberCapacity)}
	cs.subscribers = append(cs.subscribers, sub)

	cancel := func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		sub.closed = true
		for i, s := range cs.subscribers {
			if s == sub {
				cs.subscribers = append(cs.subscribers[:i], cs.subscribers[i+1:]...)
				break
			}
		}
		close(sub.ch)
	}
	return sub.ch, cancel
}

// publish delivers ev to every live subscriber without blocking; a full
// subscriber channel drops the event for that subscriber. Callers must
// hold cs.mu (publish does not lock itself, so it can be the last step
// of an already-locked commit or reorg) so Subscribe/cancel never
// mutates cs.subscribers concurrently with this range.
func (cs *ChainStore) publish(ev Event) {
	for _, sub := range cs.subscribers {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
